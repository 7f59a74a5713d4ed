// Package influxdb records climate telemetry in InfluxDB v2.
//
// Every telemetry sample the registry accepts becomes one point in the
// climate_telemetry measurement, tagged with device_id ("outdoor" for
// weather samples) and source, with one float field per reading. Final
// command outcomes go to climate_command so dashboards can overlay them.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelemetry("ac-living", "indoor_temperature",
//	    map[string]float64{"temperature": 21.5}, time.Now())
//
// Writes are batched per influxdb.batch_size and influxdb.flush_interval
// (seconds). Batch failures are delivered to the SetOnError callback.
package influxdb
