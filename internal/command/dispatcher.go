package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/upstream"
)

// Default dispatcher settings.
const (
	DefaultCommandTimeout = 10 * time.Second
	DefaultRetryBackoff   = 500 * time.Millisecond
	DefaultMinTemperature = 16
	DefaultMaxTemperature = 30
)

// Logger is the logging interface used by the dispatcher.
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

// Registry is the subset of device.Registry the dispatcher needs.
type Registry interface {
	Get(id string) (*device.DeviceUnit, error)
	ApplyCommandIntent(req device.CommandRequest) error
	ApplyCommandResult(res device.CommandResult) (bool, error)
}

// Controller sends control commands to the upstream.
// *upstream.Client satisfies it.
type Controller interface {
	SetTemperature(ctx context.Context, systemID string, temperature int, mode device.Mode) error
	SetPower(ctx context.Context, systemID string, on bool) error
}

// Options configures a Dispatcher. Zero fields take the defaults.
type Options struct {
	CommandTimeout time.Duration
	RetryBackoff   time.Duration
	MinTemperature int
	MaxTemperature int
}

func (o Options) withDefaults() Options {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.MinTemperature == 0 && o.MaxTemperature == 0 {
		o.MinTemperature = DefaultMinTemperature
		o.MaxTemperature = DefaultMaxTemperature
	}
	return o
}

// Failure describes a command that was rolled back.
type Failure struct {
	HandleID string                `json:"handle_id"`
	DeviceID string                `json:"device_id"`
	Seq      int64                 `json:"seq"`
	Kind     device.CommandKind    `json:"kind"`
	Value    any                   `json:"value"`
	Outcome  device.CommandOutcome `json:"outcome"`
	Reason   string                `json:"reason"`
	Err      error                 `json:"-"`
}

// Dispatcher issues commands against a shared registry.
type Dispatcher struct {
	registry Registry
	ctrl     Controller
	opts     Options

	mu      sync.Mutex // Protects devices, closed, onFailure, logger
	devices map[string]*deviceSeq
	closed  bool

	onFailure func(Failure)
	logger    Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(registry Registry, ctrl Controller, opts Options) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		registry: registry,
		ctrl:     ctrl,
		opts:     opts.withDefaults(),
		devices:  make(map[string]*deviceSeq),
		logger:   noopLogger{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetLogger sets the logger.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = logger
}

// SetOnFailure registers fn to be called after a command is rolled back.
// fn runs on the command's goroutine.
func (d *Dispatcher) SetOnFailure(fn func(Failure)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFailure = fn
}

// Issue validates value, applies it to the registry optimistically and
// sends the command in the background.
//
// Issue returns an error only when the command could not be started:
// unknown device, bad value or a closed dispatcher. Upstream failures are
// reported through the returned Handle.
func (d *Dispatcher) Issue(deviceID string, kind device.CommandKind, value any) (*Handle, error) {
	if _, err := d.registry.Get(deviceID); err != nil {
		return nil, err
	}

	req, err := d.buildRequest(deviceID, kind, value)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	ds, ok := d.devices[deviceID]
	if !ok {
		ds = &deviceSeq{}
		d.devices[deviceID] = ds
	}
	d.wg.Add(1)
	logger := d.logger
	d.mu.Unlock()

	h, systemID, control, err := d.begin(ds, req)
	if err != nil {
		d.wg.Done()
		return nil, err
	}
	req.Seq = h.Seq

	issuedTotal.WithLabelValues(string(kind)).Inc()
	logger.Debug("command issued",
		"handle_id", h.ID,
		"device_id", deviceID,
		"kind", kind,
		"seq", req.Seq,
		"value", req.Value(),
	)

	go d.run(h, req, systemID, control)
	return h, nil
}

// deviceSeq serialises seq allocation for one device.
type deviceSeq struct {
	mu   sync.Mutex
	last int64
}

// begin allocates the next seq for the device and applies the intent.
// Only the device's own lock is held across the registry calls.
func (d *Dispatcher) begin(ds *deviceSeq, req device.CommandRequest) (*Handle, string, device.ControlState, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	unit, err := d.registry.Get(req.DeviceID)
	if err != nil {
		return nil, "", device.ControlState{}, err
	}
	seq := ds.last
	if unit.LastConfirmedSeq > seq {
		seq = unit.LastConfirmedSeq
	}
	if unit.PendingSeq != nil && *unit.PendingSeq > seq {
		seq = *unit.PendingSeq
	}
	req.Seq = seq + 1

	if applyErr := d.registry.ApplyCommandIntent(req); applyErr != nil {
		return nil, "", device.ControlState{}, applyErr
	}
	ds.last = req.Seq

	// The wire payload carries every control field, so read them back
	// after the intent landed.
	current, err := d.registry.Get(req.DeviceID)
	if err != nil {
		return nil, "", device.ControlState{}, err
	}
	return newHandle(uuid.NewString(), req), current.SystemID, current.Control(), nil
}

// Close cancels in-flight commands and waits for them to reconcile.
// Cancelled commands roll back.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) run(h *Handle, req device.CommandRequest, systemID string, control device.ControlState) {
	defer d.wg.Done()

	attempts, err := d.send(req, systemID, control)
	outcome := upstream.Classify(err)

	changed, applyErr := d.registry.ApplyCommandResult(device.CommandResult{
		DeviceID: req.DeviceID,
		Seq:      req.Seq,
		Outcome:  outcome,
	})

	d.mu.Lock()
	logger := d.logger
	onFailure := d.onFailure
	d.mu.Unlock()

	if applyErr != nil {
		logger.Error("reconciling command result",
			"device_id", req.DeviceID,
			"seq", req.Seq,
			"error", applyErr,
		)
	}

	outcomeTotal.WithLabelValues(string(req.Kind), string(outcome)).Inc()
	if !changed && applyErr == nil {
		supersededTotal.Inc()
	}

	if outcome != device.OutcomeApplied {
		logger.Warn("command failed",
			"handle_id", h.ID,
			"device_id", req.DeviceID,
			"kind", req.Kind,
			"seq", req.Seq,
			"outcome", outcome,
			"reason", upstream.Category(err),
			"attempts", attempts,
			"error", err,
		)
		if changed && onFailure != nil {
			onFailure(Failure{
				HandleID: h.ID,
				DeviceID: req.DeviceID,
				Seq:      req.Seq,
				Kind:     req.Kind,
				Value:    req.Value(),
				Outcome:  outcome,
				Reason:   upstream.Category(err),
				Err:      err,
			})
		}
	}

	h.finish(Outcome{
		Result: device.CommandResult{
			DeviceID: req.DeviceID,
			Seq:      req.Seq,
			Outcome:  outcome,
		},
		Err:        err,
		Superseded: !changed && applyErr == nil,
		Attempts:   attempts,
	})
}

// send performs the request, retrying once after a transport error.
func (d *Dispatcher) send(req device.CommandRequest, systemID string, control device.ControlState) (int, error) {
	err := d.attempt(req, systemID, control)
	if err == nil || !upstream.IsRetryable(err) {
		return 1, err
	}

	retriesTotal.Inc()
	timer := time.NewTimer(d.opts.RetryBackoff)
	defer timer.Stop()
	select {
	case <-d.ctx.Done():
		return 1, fmt.Errorf("%w: %w", err, d.ctx.Err())
	case <-timer.C:
	}

	return 2, d.attempt(req, systemID, control)
}

func (d *Dispatcher) attempt(req device.CommandRequest, systemID string, control device.ControlState) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.opts.CommandTimeout)
	defer cancel()

	switch req.Kind {
	case device.CommandSetTemperature, device.CommandSetMode:
		return d.ctrl.SetTemperature(ctx, systemID, control.TargetTemperature, control.Mode)
	case device.CommandSetPower:
		return d.ctrl.SetPower(ctx, systemID, req.PowerOn)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
}

func (d *Dispatcher) buildRequest(deviceID string, kind device.CommandKind, value any) (device.CommandRequest, error) {
	req := device.CommandRequest{DeviceID: deviceID, Kind: kind}

	switch kind {
	case device.CommandSetTemperature:
		t, err := toInt(value)
		if err != nil {
			return req, err
		}
		if t < d.opts.MinTemperature || t > d.opts.MaxTemperature {
			return req, fmt.Errorf("%w: temperature %d outside %d..%d",
				ErrInvalidValue, t, d.opts.MinTemperature, d.opts.MaxTemperature)
		}
		req.Temperature = t
	case device.CommandSetMode:
		var s string
		switch v := value.(type) {
		case device.Mode:
			s = string(v)
		case string:
			s = v
		default:
			return req, fmt.Errorf("%w: mode must be a string, got %T", ErrInvalidValue, value)
		}
		m, err := device.ParseMode(s)
		if err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		req.Mode = m
	case device.CommandSetPower:
		on, ok := value.(bool)
		if !ok {
			return req, fmt.Errorf("%w: power must be a bool, got %T", ErrInvalidValue, value)
		}
		req.PowerOn = on
	default:
		return req, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return req, nil
}

// toInt accepts Go integers and integral JSON numbers.
func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: temperature must be a whole number, got %v", ErrInvalidValue, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: temperature must be a whole number, got %s", ErrInvalidValue, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: temperature must be a number, got %T", ErrInvalidValue, value)
	}
}

// IsValidationError reports whether err came from value validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrUnknownKind)
}
