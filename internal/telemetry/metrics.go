package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_climate_telemetry_polls_total",
			Help: "Telemetry fetches by source and result",
		},
		[]string{"source", "result"},
	)
	lastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graylogic_climate_telemetry_last_success_timestamp_seconds",
			Help: "Unix time of the last successful fetch per source",
		},
		[]string{"source"},
	)
	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graylogic_climate_telemetry_subscriptions",
			Help: "Devices currently being polled",
		},
	)
)

// MetricsCollectors returns collectors for the telemetry package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{pollsTotal, lastSuccess, activeSubscriptions}
}
