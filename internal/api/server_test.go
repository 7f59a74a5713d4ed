package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-climate/internal/analysis"
	"github.com/nerrad567/gray-logic-climate/internal/command"
	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-climate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-climate/internal/telemetry"
)

type okController struct{}

func (okController) SetTemperature(context.Context, string, int, device.Mode) error { return nil }
func (okController) SetPower(context.Context, string, bool) error                   { return nil }

type stubSource struct{}

func (stubSource) ID() string { return "stub" }
func (stubSource) Fetch(_ context.Context, unit device.DeviceUnit) (device.TelemetrySample, error) {
	return device.TelemetrySample{
		DeviceID:   unit.ID,
		ObservedAt: time.Now(),
		Fields:     map[string]float64{device.FieldTemperature: 21},
	}, nil
}

type fakeAnalyzer struct {
	res analysis.Result
	err error

	mu       sync.Mutex
	deadline time.Time
}

func (f *fakeAnalyzer) Run(ctx context.Context, deviceID string, w analysis.Window) (analysis.Result, error) {
	f.mu.Lock()
	f.deadline, _ = ctx.Deadline()
	f.mu.Unlock()
	if f.err != nil {
		return f.res, f.err
	}
	res := f.res
	res.DeviceID, res.Window = deviceID, w
	return res, nil
}

type fakeSessions struct {
	token string
	err   error
}

func (f *fakeSessions) SetToken(_ context.Context, token string) error {
	f.token = token
	return f.err
}

type testEnv struct {
	server   *Server
	registry *device.Registry
	analyzer *fakeAnalyzer
	poller   *telemetry.Poller
	handler  http.Handler
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()

	reg := device.NewRegistry(time.Minute)
	err := reg.Load([]device.UnitConfig{
		{ID: "ac-1", Name: "Living Room", SystemID: "sys-1", TargetTemperature: 22, Mode: device.ModeCool, PowerOn: true},
		{ID: "ac-2", Name: "Bedroom", TargetTemperature: 20, Mode: device.ModeHeat},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	dispatcher := command.NewDispatcher(reg, okController{}, command.Options{})
	t.Cleanup(dispatcher.Close)
	poller := telemetry.NewPoller(reg, telemetry.Options{})
	t.Cleanup(poller.Close)
	analyzer := &fakeAnalyzer{}

	deps := Deps{
		Logger:   logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test"),
		Registry: reg,
		Commands: dispatcher,
		Poller:   poller,
		Analysis: analyzer,
		Sources:  func() []telemetry.Source { return []telemetry.Source{stubSource{}} },
		Version:  "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{server: srv, registry: reg, analyzer: analyzer, poller: poller, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New(Deps{}) succeeded, want error")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Checks = map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
		}
	})
	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if id := w.Header().Get("X-Request-ID"); id == "" {
		t.Error("X-Request-ID not set")
	}

	env = newTestEnv(t, func(d *Deps) {
		d.Checks = map[string]HealthCheck{
			"database": func(context.Context) error { return nil },
			"mqtt":     func(context.Context) error { return errors.New("not connected") },
		}
	})
	w = env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, w, &body)
	if body.Status != "degraded" || body.Checks["mqtt"] != "not connected" || body.Checks["database"] != "ok" {
		t.Errorf("body = %+v", body)
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(t, http.MethodGet, "/api/v1/metrics", ""); w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("metrics without handler status = %d, want 404/405", w.Code)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(MetricsCollectors()...)
	env = newTestEnv(t, func(d *Deps) { d.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{}) })
	env.do(t, http.MethodGet, "/api/v1/devices", "")

	w := env.do(t, http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "graylogic_climate_http_requests_total") {
		t.Error("request counter missing from exposition")
	}
}

func TestDevices(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list struct {
		Devices []device.DeviceUnit `json:"devices"`
		Count   int                 `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 2 || list.Devices[0].ID != "ac-1" || list.Devices[1].ID != "ac-2" {
		t.Errorf("list = %+v", list)
	}

	w = env.do(t, http.MethodGet, "/api/v1/devices/ac-1", "")
	var unit device.DeviceUnit
	decode(t, w, &unit)
	if w.Code != http.StatusOK || unit.Name != "Living Room" || unit.TargetTemperature != 22 {
		t.Errorf("get = %d %+v", w.Code, unit)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/devices/ac-9", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/overview", "")
	var ov device.Overview
	decode(t, w, &ov)
	if ov.Units != 2 || ov.PoweredOn != 1 {
		t.Errorf("overview = %+v", ov)
	}

	if w := env.do(t, http.MethodGet, "/api/v1/outdoor", ""); w.Code != http.StatusOK {
		t.Errorf("outdoor status = %d", w.Code)
	}
}

func TestIssueCommand_Accepted(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/v1/devices/ac-1/commands", `{"kind":"SetTemperature","value":24}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Handle command.Handle `json:"handle"`
	}
	decode(t, w, &body)
	if body.Handle.ID == "" || body.Handle.DeviceID != "ac-1" || body.Handle.Seq != 1 {
		t.Errorf("handle = %+v", body.Handle)
	}

	unit, err := env.registry.Get("ac-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if unit.TargetTemperature != 24 {
		t.Errorf("TargetTemperature = %d, want optimistic 24", unit.TargetTemperature)
	}
}

func TestIssueCommand_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"out of range", "/api/v1/devices/ac-1/commands", `{"kind":"SetTemperature","value":99}`, http.StatusBadRequest, ErrCodeValidation},
		{"fractional", "/api/v1/devices/ac-1/commands", `{"kind":"SetTemperature","value":22.5}`, http.StatusBadRequest, ErrCodeValidation},
		{"bad mode", "/api/v1/devices/ac-1/commands", `{"kind":"SetMode","value":"Dry"}`, http.StatusBadRequest, ErrCodeValidation},
		{"power not bool", "/api/v1/devices/ac-1/commands", `{"kind":"SetPower","value":"on"}`, http.StatusBadRequest, ErrCodeValidation},
		{"unknown kind", "/api/v1/devices/ac-1/commands", `{"kind":"SetFanSpeed","value":3}`, http.StatusBadRequest, ErrCodeValidation},
		{"missing kind", "/api/v1/devices/ac-1/commands", `{"value":3}`, http.StatusBadRequest, ErrCodeValidation},
		{"bad json", "/api/v1/devices/ac-1/commands", `{"kind":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown device", "/api/v1/devices/ac-9/commands", `{"kind":"SetPower","value":true}`, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			var e Error
			decode(t, w, &e)
			if e.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", e.Code, tt.wantErr)
			}
		})
	}

	unit, _ := env.registry.Get("ac-1")
	if unit.Pending() || unit.TargetTemperature != 22 {
		t.Errorf("rejected requests changed the unit: %+v", unit)
	}
}

func TestPolling(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/v1/devices/ac-1/polling", "")
	var idle struct {
		Polling bool `json:"polling"`
	}
	decode(t, w, &idle)
	if w.Code != http.StatusOK || idle.Polling {
		t.Errorf("idle status = %d %+v", w.Code, idle)
	}

	w = env.do(t, http.MethodPost, "/api/v1/devices/ac-1/polling", `{"interval_ms":3600000}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start status = %d body = %s", w.Code, w.Body.String())
	}
	var started struct {
		Polling bool             `json:"polling"`
		Status  telemetry.Status `json:"status"`
	}
	decode(t, w, &started)
	if !started.Polling || started.Status.Interval != time.Hour || len(started.Status.Sources) != 1 {
		t.Errorf("started = %+v", started)
	}

	// An empty body uses the default interval.
	if w := env.do(t, http.MethodPost, "/api/v1/devices/ac-2/polling", ""); w.Code != http.StatusCreated {
		t.Errorf("start without body status = %d", w.Code)
	}
	st, err := env.poller.Status("ac-2")
	if err != nil || st.Interval != defaultPollInterval {
		t.Errorf("ac-2 status = %+v, %v", st, err)
	}

	if w := env.do(t, http.MethodDelete, "/api/v1/devices/ac-1/polling", ""); w.Code != http.StatusNoContent {
		t.Errorf("stop status = %d", w.Code)
	}
	if _, err := env.poller.Status("ac-1"); !errors.Is(err, telemetry.ErrNotPolling) {
		t.Errorf("Status() after stop error = %v", err)
	}

	if w := env.do(t, http.MethodPost, "/api/v1/devices/ac-9/polling", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device start status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/api/v1/devices/ac-9/polling", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown device stop status = %d, want 404", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/v1/devices/ac-1/polling", `{"interval_ms":-5}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative interval status = %d, want 400", w.Code)
	}
}

func TestRunAnalysis(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.AnalysisTimeout = 30 * time.Second })
	body := `{"start_time":"2026-03-01T00:00:00Z","end_time":"2026-03-02T00:00:00Z","timeout_ms":2000}`

	env.analyzer.res = analysis.Result{Recommendations: []string{"Close the blinds"}}
	w := env.do(t, http.MethodPost, "/api/v1/devices/ac-1/analysis", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var res analysis.Result
	decode(t, w, &res)
	if res.DeviceID != "ac-1" || len(res.Recommendations) != 1 || res.TimedOut {
		t.Errorf("result = %+v", res)
	}
	env.analyzer.mu.Lock()
	remaining := time.Until(env.analyzer.deadline)
	env.analyzer.mu.Unlock()
	if remaining > 2*time.Second {
		t.Errorf("deadline %v away, want timeout_ms applied", remaining)
	}

	env.analyzer.res = analysis.Result{TimedOut: true}
	env.analyzer.err = analysis.ErrTimedOut
	w = env.do(t, http.MethodPost, "/api/v1/devices/ac-1/analysis", body)
	decode(t, w, &res)
	if w.Code != http.StatusOK || !res.TimedOut {
		t.Errorf("timed out = %d %+v, want 200 with timed_out", w.Code, res)
	}

	env.analyzer.err = analysis.ErrInvalidWindow
	if w := env.do(t, http.MethodPost, "/api/v1/devices/ac-1/analysis", body); w.Code != http.StatusBadRequest {
		t.Errorf("invalid window status = %d, want 400", w.Code)
	}
	env.analyzer.err = device.ErrDeviceNotFound
	if w := env.do(t, http.MethodPost, "/api/v1/devices/ac-9/analysis", body); w.Code != http.StatusNotFound {
		t.Errorf("unknown device status = %d, want 404", w.Code)
	}
}

func TestSetSession(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(t, http.MethodPut, "/api/v1/session", `{"token":"abc"}`); w.Code != http.StatusConflict {
		t.Errorf("without session store status = %d, want 409", w.Code)
	}

	sessions := &fakeSessions{}
	env = newTestEnv(t, func(d *Deps) { d.Sessions = sessions })
	if w := env.do(t, http.MethodPut, "/api/v1/session", `{"token":"abc"}`); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if sessions.token != "abc" {
		t.Errorf("token = %q, want abc", sessions.token)
	}

	sessions.err = errors.New("disk full")
	if w := env.do(t, http.MethodPut, "/api/v1/session", `{"token":"def"}`); w.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want 500", w.Code)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})

	r := httptest.NewRequest(http.MethodOptions, "/api/v1/devices", nil)
	r.Header.Set("Origin", "http://panel.local")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://panel.local" {
		t.Errorf("preflight = %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	r.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	env.handler.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		f    command.Failure
		want string
	}{
		{
			command.Failure{DeviceID: "ac-1", Kind: device.CommandSetTemperature, Value: 24, Outcome: device.OutcomeRejected, Reason: "rejected"},
			"Could not set temperature to 24°C ac-1: rejected",
		},
		{
			command.Failure{DeviceID: "ac-1", Kind: device.CommandSetPower, Value: true, Outcome: device.OutcomeTransportFailed, Reason: "transport"},
			"Could not turn on ac-1: the unit did not respond",
		},
		{
			command.Failure{DeviceID: "ac-1", Kind: device.CommandSetPower, Value: "on", Outcome: device.OutcomeRejected, Reason: "rejected"},
			"Could not turn off ac-1: rejected",
		},
		{
			command.Failure{DeviceID: "ac-2", Kind: device.CommandSetMode, Value: device.ModeHeat, Outcome: device.OutcomeRejected, Reason: "auth"},
			"Could not switch mode to Heat ac-2: auth",
		},
	}
	for _, tt := range tests {
		if got := failureMessage(tt.f); got != tt.want {
			t.Errorf("failureMessage() = %q, want %q", got, tt.want)
		}
	}
}
