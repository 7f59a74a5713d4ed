// Package telemetry polls telemetry sources and feeds the device registry.
//
// Poller.Start subscribes a device to a set of sources. Every source runs on
// its own timer, so a slow or failing source never delays the others. A
// failed fetch is logged and counted; the registry keeps the last good
// value and the unit turns stale once nothing has arrived for its
// threshold.
//
// Poller.Stop is idempotent. When it returns, no fetch started by the
// subscription can write to the registry anymore: results are applied
// under the subscription lock and dropped once the subscription is marked
// stopped.
//
// # Sources
//
//   - IndoorTemperature reads /temperature/current for the unit's zone.
//   - SystemMetrics reads the /status/metrics summary for the unit's system.
//   - OutdoorWeather reads current weather for the site. It has its own
//     30 minute cadence and writes the registry's outdoor conditions.
package telemetry
