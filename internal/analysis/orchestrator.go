package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/upstream"
)

// DefaultSourceTimeout bounds each analysis request.
const DefaultSourceTimeout = 15 * time.Second

// reasonCallerTimeout marks sub-results cut off by the caller's context.
const reasonCallerTimeout = "caller_timeout"

// Logger is the logging interface used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the upstream surface the orchestrator calls.
// *upstream.Client satisfies it.
type Client interface {
	TemperatureHistory(ctx context.Context, deviceID, zoneID string, start, end time.Time) ([]upstream.HistoryPoint, error)
	DetectAnomalies(ctx context.Context, systemID string, data []upstream.HistoryPoint) ([]upstream.Anomaly, error)
	CostAnalysis(ctx context.Context, systemID string, start, end time.Time) (upstream.CostSummary, error)
	Recommendations(ctx context.Context, systemID, query string, reqContext map[string]any) ([]string, error)
}

// Registry looks up the unit being analysed.
type Registry interface {
	Get(id string) (*device.DeviceUnit, error)
}

// Orchestrator fans analysis requests out and merges the results.
type Orchestrator struct {
	client        Client
	registry      Registry
	sourceTimeout time.Duration
	logger        Logger
}

// NewOrchestrator creates an Orchestrator. A non-positive sourceTimeout
// means DefaultSourceTimeout.
func NewOrchestrator(client Client, registry Registry, sourceTimeout time.Duration) *Orchestrator {
	if sourceTimeout <= 0 {
		sourceTimeout = DefaultSourceTimeout
	}
	return &Orchestrator{
		client:        client,
		registry:      registry,
		sourceTimeout: sourceTimeout,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.logger = logger
}

// Run analyses deviceID over w.
//
// Run waits for all three requests. If ctx ends first it returns the
// sub-results resolved so far, defaults for the rest, TimedOut set and
// ErrTimedOut. Upstream failures never produce an error.
func (o *Orchestrator) Run(ctx context.Context, deviceID string, w Window) (Result, error) {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return Result{}, fmt.Errorf("%w: %s to %s", ErrInvalidWindow, w.Start, w.End)
	}
	unit, err := o.registry.Get(deviceID)
	if err != nil {
		return Result{}, err
	}

	// Buffered so late finishers never block after Run returns.
	anomCh := make(chan Outcome[[]upstream.Anomaly], 1)
	costCh := make(chan Outcome[upstream.CostSummary], 1)
	recsCh := make(chan Outcome[[]string], 1)

	go func() { anomCh <- o.anomalies(ctx, unit, w) }()
	go func() { costCh <- o.cost(ctx, unit, w) }()
	go func() { recsCh <- o.recommendations(ctx, unit, w) }()

	var (
		anomalies = defaultAnomalies(reasonCallerTimeout)
		cost      = defaultCost(reasonCallerTimeout)
		recs      = defaultRecommendations(reasonCallerTimeout)
		timedOut  bool
	)

	for pending := 3; pending > 0 && !timedOut; {
		select {
		case anomalies = <-anomCh:
			pending--
		case cost = <-costCh:
			pending--
		case recs = <-recsCh:
			pending--
		case <-ctx.Done():
			timedOut = true
		}
	}

	if timedOut {
		// Keep anything that resolved alongside the deadline.
		select {
		case anomalies = <-anomCh:
		default:
		}
		select {
		case cost = <-costCh:
		default:
		}
		select {
		case recs = <-recsCh:
		default:
		}
	}

	res := merge(deviceID, w, anomalies, cost, recs)
	for _, name := range []string{SourceAnomalies, SourceCost, SourceRecommendations} {
		subResultsTotal.WithLabelValues(name, string(res.Sources[name].Status)).Inc()
	}

	if timedOut {
		res.TimedOut = true
		timedOutTotal.Inc()
		o.logger.Warn("analysis timed out",
			"device_id", deviceID,
			"defaulted", defaulted(res),
			"error", ctx.Err(),
		)
		return res, fmt.Errorf("%w: %w", ErrTimedOut, ctx.Err())
	}

	o.logger.Debug("analysis complete",
		"device_id", deviceID,
		"anomalies", len(res.Anomalies),
		"recommendations", len(res.Recommendations),
		"defaulted", defaulted(res),
	)
	return res, nil
}

func (o *Orchestrator) anomalies(ctx context.Context, unit *device.DeviceUnit, w Window) Outcome[[]upstream.Anomaly] {
	ctx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	defer cancel()

	history, err := o.client.TemperatureHistory(ctx, unit.ID, unit.ZoneID, w.Start, w.End)
	if err != nil {
		return defaultAnomalies(o.reason(unit.ID, SourceAnomalies, err))
	}
	found, err := o.client.DetectAnomalies(ctx, unit.SystemID, history)
	if err != nil {
		return defaultAnomalies(o.reason(unit.ID, SourceAnomalies, err))
	}
	return Success(found)
}

func (o *Orchestrator) cost(ctx context.Context, unit *device.DeviceUnit, w Window) Outcome[upstream.CostSummary] {
	ctx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	defer cancel()

	summary, err := o.client.CostAnalysis(ctx, unit.SystemID, w.Start, w.End)
	if err != nil {
		return defaultCost(o.reason(unit.ID, SourceCost, err))
	}
	return Success(summary)
}

func (o *Orchestrator) recommendations(ctx context.Context, unit *device.DeviceUnit, w Window) Outcome[[]string] {
	ctx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	defer cancel()

	suggestions, err := o.client.Recommendations(ctx, unit.SystemID, recommendationQuery(unit), recommendationContext(unit, w))
	if err != nil {
		return defaultRecommendations(o.reason(unit.ID, SourceRecommendations, err))
	}
	return Success(suggestions)
}

// reason logs a defaulted sub-result and returns its reason label.
func (o *Orchestrator) reason(deviceID, source string, err error) string {
	reason := upstream.Category(err)
	o.logger.Warn("analysis source defaulted",
		"device_id", deviceID,
		"source", source,
		"reason", reason,
		"error", err,
	)
	return reason
}

func recommendationQuery(unit *device.DeviceUnit) string {
	power := "off"
	if unit.PowerOn {
		power = "on"
	}
	return fmt.Sprintf("How can %s use less energy? It is %s, in %s mode, set to %d°C.",
		unit.Name, power, unit.Mode, unit.TargetTemperature)
}

func recommendationContext(unit *device.DeviceUnit, w Window) map[string]any {
	readings := make(map[string]float64, len(unit.Readings))
	for name, rd := range unit.Readings {
		readings[name] = rd.Value
	}
	return map[string]any{
		"device_id":          unit.ID,
		"name":               unit.Name,
		"target_temperature": unit.TargetTemperature,
		"mode":               unit.Mode,
		"power_on":           unit.PowerOn,
		"readings":           readings,
		"start_time":         w.Start.UTC().Format(time.RFC3339),
		"end_time":           w.End.UTC().Format(time.RFC3339),
	}
}

func defaulted(res Result) []string {
	var names []string
	for name, rep := range res.Sources {
		if rep.Status == StatusDefault {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
