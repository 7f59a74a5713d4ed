// Package upstream is the transport layer for the climate control API and
// the outdoor weather service.
//
// Client covers the bearer-authenticated REST endpoints:
//
//	GET  /temperature/current            CurrentTemperature
//	GET  /temperature/history            TemperatureHistory
//	GET  /status/metrics                 StatusMetrics
//	POST /control/temperature            SetTemperature
//	POST /control/power                  SetPower
//	GET  /analysis/cost/{id}             CostAnalysis
//	POST /analysis/anomaly/detect/{id}   DetectAnomalies
//	POST /analysis/optimize/llm/{id}     Recommendations
//
// WeatherClient reads current conditions from an OpenWeatherMap-compatible
// endpoint without authentication.
//
// # Errors
//
// Every returned error wraps one of ErrTransport, ErrAuth, ErrRejected or
// ErrMalformedResponse. HTTP status failures also carry a *StatusError:
//
//	var se *upstream.StatusError
//	if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
//	    // ...
//	}
package upstream
