package analysis

import "github.com/prometheus/client_golang/prometheus"

var (
	subResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_climate_analysis_subresults_total",
			Help: "Analysis sub-results by source and status",
		},
		[]string{"source", "status"},
	)
	timedOutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_analysis_timed_out_total",
			Help: "Analysis runs cut short by the caller's deadline",
		},
	)
)

// MetricsCollectors returns collectors for the analysis package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{subResultsTotal, timedOutTotal}
}
