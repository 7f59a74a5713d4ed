package influxdb

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/config"
)

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "graylogic-dev-token",
		Org:           "graylogic",
		Bucket:        "climate",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	if _, err := Connect(cfg); !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1"
	if _, err := Connect(cfg); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(testConfig())
	if opts.BatchSize() != 10 || opts.FlushInterval() != 1000 {
		t.Errorf("batch/flush = %d/%d, want 10/1000", opts.BatchSize(), opts.FlushInterval())
	}

	cfg := testConfig()
	cfg.BatchSize, cfg.FlushInterval = 0, -1
	opts = clientOptions(cfg)
	if opts.BatchSize() != defaultBatchSize || opts.FlushInterval() != 10000 {
		t.Errorf("defaults = %d/%d, want %d/10000", opts.BatchSize(), opts.FlushInterval(), defaultBatchSize)
	}
}

func TestTelemetryPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := write.PointToLineProtocol(
		telemetryPoint("ac-1", "system_metrics", map[string]float64{"power_w": 1000, "energy_kwh": 1.5}, at),
		time.Second,
	)

	want := "climate_telemetry,device_id=ac-1,source=system_metrics energy_kwh=1.5,power_w=1000"
	if !strings.HasPrefix(line, want) {
		t.Errorf("line = %q, want prefix %q", line, want)
	}
	if !strings.Contains(line, " 1772366400") {
		t.Errorf("line = %q, want observed timestamp", line)
	}
}

func TestTelemetryPoint_Outdoor(t *testing.T) {
	p := telemetryPoint("", "outdoor_weather", map[string]float64{"temperature": 8.2}, time.Now())
	line := write.PointToLineProtocol(p, time.Second)
	if !strings.Contains(line, "device_id=outdoor") {
		t.Errorf("line = %q, want device_id=outdoor", line)
	}
}

func TestCommandPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := write.PointToLineProtocol(commandPoint("ac-1", "SetPower", "Rejected", 7, at), time.Second)
	want := "climate_command,device_id=ac-1,kind=SetPower,outcome=Rejected seq=7i"
	if !strings.HasPrefix(line, want) {
		t.Errorf("line = %q, want prefix %q", line, want)
	}
}

func TestClosedClient_NoOps(t *testing.T) {
	c := &Client{}
	c.WriteTelemetry("ac-1", "indoor_temperature", map[string]float64{"temperature": 20}, time.Now())
	c.WriteCommandOutcome("ac-1", "SetPower", "Applied", 1, time.Now())
	c.Flush()
	if c.IsConnected() {
		t.Error("IsConnected() = true for zero client")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// TestIntegration_WriteTelemetry needs the dev InfluxDB from docker-compose.
func TestIntegration_WriteTelemetry(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION=1 to run against a local InfluxDB")
	}
	client, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})

	client.WriteTelemetry("int-test", "indoor_temperature", map[string]float64{"temperature": 21.5}, time.Now())
	client.Flush()
	select {
	case err := <-errs:
		t.Errorf("write error = %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
