package credential

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshSuccess = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_credential_refresh_success_total",
			Help: "Successful OAuth2 token refreshes",
		},
	)
	refreshFailure = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "graylogic_climate_credential_refresh_failure_total",
			Help: "Failed OAuth2 token refreshes",
		},
	)
)

// MetricsCollectors returns collectors for the credential package.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{refreshSuccess, refreshFailure}
}
