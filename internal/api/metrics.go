package api

import "github.com/prometheus/client_golang/prometheus"

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_climate_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graylogic_climate_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graylogic_climate_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)
	wsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_websocket_dropped_total",
			Help: "Events dropped because a client's send buffer was full",
		},
	)
)

// MetricsCollectors returns collectors for the api package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, requestDuration, wsClients, wsDropped}
}
