package influxdb

import "github.com/prometheus/client_golang/prometheus"

var (
	pointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_climate_influxdb_points_total",
			Help: "Points queued for InfluxDB by measurement",
		},
		[]string{"measurement"},
	)
	writeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_influxdb_write_errors_total",
			Help: "Asynchronous InfluxDB batch write failures",
		},
	)
)

// MetricsCollectors returns collectors for the influxdb package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{pointsTotal, writeErrorsTotal}
}
