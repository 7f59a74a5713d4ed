// Package api serves the climate controller to presentation clients (the
// web dashboard and wall panels) over HTTP and WebSocket.
//
// Routes, all under /api/v1:
//
//	GET    /health                    dependency checks
//	GET    /metrics                   Prometheus exposition
//	GET    /devices                   every unit with optimistic state
//	GET    /devices/{id}
//	POST   /devices/{id}/commands     {kind, value} -> 202 {handle}
//	GET    /devices/{id}/polling
//	POST   /devices/{id}/polling      {interval_ms?}
//	DELETE /devices/{id}/polling
//	POST   /devices/{id}/analysis     {start_time, end_time, timeout_ms?}
//	GET    /overview
//	GET    /outdoor
//	PUT    /session                   {token}
//	GET    /ws                        push events
//
// Commands are asynchronous: the 202 carries a handle and the outcome
// arrives on the WebSocket as device.updated, plus command.failed when the
// command was rolled back. Outdoor weather arrives as outdoor.updated.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
