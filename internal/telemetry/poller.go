package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/upstream"
)

// Default poller settings.
const (
	DefaultFetchTimeout    = 15 * time.Second
	DefaultStaleMultiplier = 2
)

// Logger is the logging interface used by the poller.
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

// Source fetches one telemetry sample for a unit.
type Source interface {
	ID() string
	Fetch(ctx context.Context, unit device.DeviceUnit) (device.TelemetrySample, error)
}

// IntervalSource is a Source with its own polling cadence. The poller uses
// Interval instead of the subscription interval when it is positive.
type IntervalSource interface {
	Source
	Interval() time.Duration
}

// Registry is the subset of device.Registry the poller writes to.
type Registry interface {
	Get(id string) (*device.DeviceUnit, error)
	ApplyTelemetry(sample device.TelemetrySample) error
	SetStaleThreshold(id string, d time.Duration) error
}

// Options configures a Poller. Zero fields take the defaults.
type Options struct {
	// FetchTimeout bounds each fetch.
	FetchTimeout time.Duration
	// StaleMultiplier sets the unit's stale threshold to this many intervals.
	StaleMultiplier int
}

// SourceStatus is the polling state of one source.
type SourceStatus struct {
	SourceID            string        `json:"source_id"`
	Interval            time.Duration `json:"interval"`
	LastSuccess         *time.Time    `json:"last_success,omitempty"`
	LastAttempt         *time.Time    `json:"last_attempt,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// Status is the polling state of one device.
type Status struct {
	DeviceID  string         `json:"device_id"`
	Interval  time.Duration  `json:"interval"`
	StartedAt time.Time      `json:"started_at"`
	Sources   []SourceStatus `json:"sources"`
}

// Poller runs telemetry subscriptions, one per device.
type Poller struct {
	registry Registry
	opts     Options

	// lifecycle serialises Start, Stop and Close.
	lifecycle sync.Mutex

	mu     sync.Mutex
	subs   map[string]*subscription
	closed bool
	logger Logger
	now    func() time.Time
}

// subscription owns the timers of one device. mu serialises registry
// writes with stop, so nothing is applied after stop returns.
type subscription struct {
	deviceID  string
	interval  time.Duration
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	stopped bool

	statusMu sync.Mutex
	status   map[string]*SourceStatus
	order    []string
}

// NewPoller creates a Poller writing to registry.
func NewPoller(registry Registry, opts Options) *Poller {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.StaleMultiplier <= 0 {
		opts.StaleMultiplier = DefaultStaleMultiplier
	}
	return &Poller{
		registry: registry,
		opts:     opts,
		subs:     make(map[string]*subscription),
		logger:   noopLogger{},
		now:      time.Now,
	}
}

// SetLogger sets the logger.
func (p *Poller) SetLogger(logger Logger) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

// Start polls sources for deviceID every interval. Each source is fetched
// once immediately. Starting a device that is already polling replaces
// its subscription.
func (p *Poller) Start(deviceID string, sources []Source, interval time.Duration) error {
	if len(sources) == 0 {
		return ErrNoSources
	}
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		if seen[src.ID()] {
			return fmt.Errorf("%w: %q", ErrDuplicateSource, src.ID())
		}
		seen[src.ID()] = true
	}
	if _, err := p.registry.Get(deviceID); err != nil {
		return err
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	old := p.subs[deviceID]
	delete(p.subs, deviceID)
	logger := p.logger
	p.mu.Unlock()

	if old != nil {
		old.stop()
		activeSubscriptions.Dec()
	}

	if err := p.registry.SetStaleThreshold(deviceID, time.Duration(p.opts.StaleMultiplier)*interval); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		deviceID:  deviceID,
		interval:  interval,
		startedAt: p.now(),
		cancel:    cancel,
		status:    make(map[string]*SourceStatus, len(sources)),
	}
	for _, src := range sources {
		every := interval
		if is, ok := src.(IntervalSource); ok && is.Interval() > 0 {
			every = is.Interval()
		}
		sub.status[src.ID()] = &SourceStatus{SourceID: src.ID(), Interval: every}
		sub.order = append(sub.order, src.ID())
	}

	p.mu.Lock()
	p.subs[deviceID] = sub
	p.mu.Unlock()

	for _, src := range sources {
		sub.wg.Add(1)
		go p.runSource(ctx, sub, src, sub.status[src.ID()].Interval)
	}

	activeSubscriptions.Inc()
	logger.Info("polling started",
		"device_id", deviceID,
		"interval", interval,
		"sources", sub.order,
	)
	return nil
}

// Stop cancels every timer for deviceID. It is safe to call more than once
// and for devices that are not polling.
func (p *Poller) Stop(deviceID string) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	sub := p.subs[deviceID]
	delete(p.subs, deviceID)
	logger := p.logger
	p.mu.Unlock()

	if sub == nil {
		return
	}
	sub.stop()
	activeSubscriptions.Dec()
	logger.Info("polling stopped", "device_id", deviceID)
}

// Status returns the polling state for deviceID.
func (p *Poller) Status(deviceID string) (Status, error) {
	p.mu.Lock()
	sub := p.subs[deviceID]
	p.mu.Unlock()

	if sub == nil {
		return Status{}, ErrNotPolling
	}
	return sub.snapshot(), nil
}

// Active returns the IDs of devices currently polling, sorted.
func (p *Poller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every subscription. Start fails afterwards.
func (p *Poller) Close() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	p.closed = true
	subs := p.subs
	p.subs = make(map[string]*subscription)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
		activeSubscriptions.Dec()
	}
}

func (p *Poller) runSource(ctx context.Context, sub *subscription, src Source, every time.Duration) {
	defer sub.wg.Done()

	p.poll(ctx, sub, src)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, sub, src)
		}
	}
}

func (p *Poller) poll(ctx context.Context, sub *subscription, src Source) {
	p.mu.Lock()
	logger := p.logger
	p.mu.Unlock()

	unit, err := p.registry.Get(sub.deviceID)
	if err != nil {
		logger.Error("polling unknown device", "device_id", sub.deviceID, "source", src.ID(), "error", err)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	sample, err := src.Fetch(fetchCtx, *unit)
	cancel()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.stopped {
		return
	}

	if err == nil {
		if sample.SourceID == "" {
			sample.SourceID = src.ID()
		}
		err = p.registry.ApplyTelemetry(sample)
	}

	failures := sub.record(src.ID(), p.now(), err)
	if err != nil {
		pollsTotal.WithLabelValues(src.ID(), "failure").Inc()
		logger.Warn("telemetry fetch failed",
			"device_id", sub.deviceID,
			"source", src.ID(),
			"reason", upstream.Category(err),
			"consecutive_failures", failures,
			"error", err,
		)
		return
	}

	pollsTotal.WithLabelValues(src.ID(), "success").Inc()
	lastSuccess.WithLabelValues(src.ID()).Set(float64(p.now().Unix()))
	logger.Debug("telemetry applied",
		"device_id", sub.deviceID,
		"source", src.ID(),
		"fields", len(sample.Fields),
	)
}

// record updates the source status and returns its consecutive failures.
func (s *subscription) record(sourceID string, now time.Time, err error) int {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	st := s.status[sourceID]
	st.LastAttempt = &now
	if err != nil {
		st.ConsecutiveFailures++
		st.LastError = err.Error()
		return st.ConsecutiveFailures
	}
	st.ConsecutiveFailures = 0
	st.LastError = ""
	st.LastSuccess = &now
	return 0
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *subscription) snapshot() Status {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	st := Status{
		DeviceID:  s.deviceID,
		Interval:  s.interval,
		StartedAt: s.startedAt,
		Sources:   make([]SourceStatus, 0, len(s.order)),
	}
	for _, id := range s.order {
		src := *s.status[id]
		if src.LastSuccess != nil {
			t := *src.LastSuccess
			src.LastSuccess = &t
		}
		if src.LastAttempt != nil {
			t := *src.LastAttempt
			src.LastAttempt = &t
		}
		st.Sources = append(st.Sources, src)
	}
	return st
}
