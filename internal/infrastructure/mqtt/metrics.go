package mqtt

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_mqtt_published_total",
			Help: "Messages acknowledged by the MQTT broker",
		},
	)
	publishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_mqtt_publish_failures_total",
			Help: "JSON publishes that were refused or timed out",
		},
	)
	connectedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graylogic_climate_mqtt_connected",
			Help: "1 while the MQTT client is connected",
		},
	)
)

// MetricsCollectors returns collectors for the mqtt package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{publishedTotal, publishFailuresTotal, connectedGauge}
}
