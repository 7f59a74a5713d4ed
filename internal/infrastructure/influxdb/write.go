package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTelemetry = "climate_telemetry"
	MeasurementCommand   = "climate_command"
)

// outdoorDeviceTag tags samples that belong to no unit.
const outdoorDeviceTag = "outdoor"

// WriteTelemetry records one accepted telemetry sample as a single point
// in climate_telemetry, one field per reading. An empty deviceID is tagged
// "outdoor".
func (c *Client) WriteTelemetry(deviceID, source string, fields map[string]float64, observedAt time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(telemetryPoint(deviceID, source, fields, observedAt))
	pointsTotal.WithLabelValues(MeasurementTelemetry).Inc()
}

// WriteCommandOutcome records a final command outcome in climate_command.
func (c *Client) WriteCommandOutcome(deviceID, kind, outcome string, seq int64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(deviceID, kind, outcome, seq, at))
	pointsTotal.WithLabelValues(MeasurementCommand).Inc()
}

func telemetryPoint(deviceID, source string, fields map[string]float64, observedAt time.Time) *write.Point {
	if deviceID == "" {
		deviceID = outdoorDeviceTag
	}
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	values := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		values[name] = v
	}
	return write.NewPoint(
		MeasurementTelemetry,
		map[string]string{"device_id": deviceID, "source": source},
		values,
		observedAt,
	)
}

func commandPoint(deviceID, kind, outcome string, seq int64, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementCommand,
		map[string]string{"device_id": deviceID, "kind": kind, "outcome": outcome},
		map[string]interface{}{"seq": seq},
		at,
	)
}
