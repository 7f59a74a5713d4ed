// Package device provides the Device Registry for Gray Logic Climate.
//
// The Device Registry is the single in-memory model of every climate unit
// in a session. The API, the command dispatcher and the telemetry poller all
// share one Registry; none of them keeps its own copy of device truth.
//
// # Architecture
//
//	┌───────────────────┐   intent / result   ┌────────────────────────────┐
//	│ command.Dispatcher│────────────────────▶│                            │
//	└───────────────────┘                     │          Registry          │
//	┌───────────────────┐     telemetry       │                            │
//	│ telemetry.Poller  │────────────────────▶│ • optimistic control state │
//	└───────────────────┘                     │ • confirmed snapshot       │
//	                                          │ • per-field readings       │
//	┌───────────────────┐   Get / List        │ • outdoor conditions       │
//	│ api.Server        │◀────────────────────│                            │
//	└───────────────────┘   OnChange events   └────────────────────────────┘
//
// # Sequence numbers
//
// Every command carries a per-device seq and mutates one control field.
// ApplyCommandIntent shows the new value at once and records seq as pending
// for that field. ApplyCommandResult only acts on the result for a field's
// pending seq; results for older commands on the same field are dropped, so
// a slow response can never overwrite a newer optimistic value. Applied
// confirms the field, Rejected and TransportFailed restore its confirmed
// value. Other fields keep their own pending intents.
//
// # Telemetry
//
// ApplyTelemetry compares each field's observation time with the stored
// reading, so an out-of-date field is skipped without discarding the rest of
// the sample. A unit is stale when its last telemetry is older than its
// threshold, or when none has arrived yet.
//
// # Usage
//
//	registry := device.NewRegistry(2 * time.Minute)
//	registry.SetLogger(log)
//	if err := registry.Load(units); err != nil {
//	    return err
//	}
//
//	unit, err := registry.Get("ac-1")
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use.
package device
