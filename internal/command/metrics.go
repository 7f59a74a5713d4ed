package command

import "github.com/prometheus/client_golang/prometheus"

var (
	issuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_climate_commands_issued_total",
			Help: "Commands issued by kind",
		},
		[]string{"kind"},
	)
	outcomeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylogic_climate_command_outcomes_total",
			Help: "Command outcomes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_command_retries_total",
			Help: "Command retries after a transport error",
		},
	)
	supersededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_command_superseded_total",
			Help: "Command results ignored because a newer command was pending",
		},
	)
)

// MetricsCollectors returns collectors for the command package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{issuedTotal, outcomeTotal, retriesTotal, supersededTotal}
}
