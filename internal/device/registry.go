package device

import (
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DefaultOutdoorStaleThreshold is twice the outdoor weather cadence.
const DefaultOutdoorStaleThreshold = 60 * time.Minute

// entry is the registry's private record for one unit.
type entry struct {
	unit       DeviceUnit   // displayed state, Stale is computed on read
	confirmed  ControlState // last server-confirmed control fields
	staleAfter time.Duration

	// pending holds the newest unresolved intent per command kind. Each kind
	// mutates exactly one control field.
	pending map[CommandKind]CommandRequest
}

// pendingSeq returns the highest unresolved seq, or nil.
func (e *entry) pendingSeq() *int64 {
	var latest *int64
	for _, req := range e.pending {
		if latest == nil || req.Seq > *latest {
			seq := req.Seq
			latest = &seq
		}
	}
	return latest
}

// Registry is the single owned model of all climate units for a session.
//
// Units are registered once via Load and are never removed. Mutations go
// through ApplyCommandIntent, ApplyCommandResult and ApplyTelemetry. They are
// serialised under one lock, so each call is applied atomically and in the
// order callers complete, not the order they were issued.
//
// All public methods are thread-safe.
type Registry struct {
	mu         sync.RWMutex // Protects order, units, outdoor
	order      []string
	units      map[string]*entry
	outdoor    OutdoorConditions
	outdoorTTL time.Duration
	staleAfter time.Duration

	// Changes are queued under mu and delivered by one drainer at a time,
	// so OnChange sees them in mutation order.
	onChange func(Change)
	queue    []Change
	draining bool

	now    func() time.Time
	logger Logger
}

// NewRegistry creates an empty registry.
// staleAfter is the default telemetry staleness threshold for each unit.
func NewRegistry(staleAfter time.Duration) *Registry {
	return &Registry{
		units:      make(map[string]*entry),
		outdoor:    OutdoorConditions{Readings: make(map[string]Reading)},
		outdoorTTL: DefaultOutdoorStaleThreshold,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock replaces the time source used for staleness.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// SetOnChange registers a callback invoked after every accepted mutation.
//
// Deliveries are serialised and arrive in mutation order. The callback
// receives copies and may read the registry.
func (r *Registry) SetOnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// SetStaleThreshold sets the telemetry staleness threshold for one unit.
func (r *Registry) SetStaleThreshold(id string, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.units[id]
	if !ok {
		return ErrDeviceNotFound
	}
	e.staleAfter = d
	return nil
}

// SetOutdoorStaleThreshold sets the staleness threshold for outdoor conditions.
func (r *Registry) SetOutdoorStaleThreshold(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outdoorTTL = d
}

// Load registers units in the given order.
//
// The whole batch is rejected if any unit is invalid or already registered.
func (r *Registry) Load(units []UnitConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if u.ID == "" {
			return fmt.Errorf("%w: id is required", ErrInvalidDevice)
		}
		if _, err := ParseMode(string(u.Mode)); err != nil {
			return fmt.Errorf("unit %q: %w", u.ID, err)
		}
		if _, exists := r.units[u.ID]; exists || seen[u.ID] {
			return fmt.Errorf("%w: %s", ErrDeviceExists, u.ID)
		}
		seen[u.ID] = true
	}

	for _, u := range units {
		systemID := u.SystemID
		if systemID == "" {
			systemID = u.ID
		}
		control := ControlState{
			TargetTemperature: u.TargetTemperature,
			Mode:              u.Mode,
			PowerOn:           u.PowerOn,
		}
		e := &entry{
			unit: DeviceUnit{
				ID:       u.ID,
				Name:     u.Name,
				SystemID: systemID,
				ZoneID:   u.ZoneID,
				Readings: make(map[string]Reading),
			},
			confirmed:  control,
			staleAfter: r.staleAfter,
			pending:    make(map[CommandKind]CommandRequest),
		}
		setControl(&e.unit, control)
		r.units[u.ID] = e
		r.order = append(r.order, u.ID)
	}

	r.logger.Info("device registry loaded", "count", len(units))
	return nil
}

// Get returns a copy of the unit with the given ID.
func (r *Registry) Get(id string) (*DeviceUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.units[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return r.snapshot(e), nil
}

// List returns copies of all units in registration order.
func (r *Registry) List() []DeviceUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]DeviceUnit, 0, len(r.order))
	for _, id := range r.order {
		units = append(units, *r.snapshot(r.units[id]))
	}
	return units
}

// Outdoor returns a copy of the current outdoor conditions.
func (r *Registry) Outdoor() *OutdoorConditions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outdoorSnapshot()
}

// Overview summarises all units.
func (r *Registry) Overview() Overview {
	units := r.List()

	var ov Overview
	var tempSum int
	for i := range units {
		u := &units[i]
		ov.Units++
		tempSum += u.TargetTemperature
		if u.PowerOn {
			ov.PoweredOn++
		}
		if u.Stale {
			ov.Stale++
		}
		if u.Pending() {
			ov.Pending++
		}
		if rd, ok := u.Readings[FieldEnergyKWh]; ok {
			ov.TotalEnergyKWh += rd.Value
		}
	}
	if ov.Units > 0 {
		ov.AverageTemperature = float64(tempSum) / float64(ov.Units)
	}
	return ov
}

// ApplyCommandIntent writes the request's value optimistically and marks
// req.Seq as pending for the field it mutates. Readers see the new value
// immediately. An older intent still pending for the same field is
// superseded and its result will be ignored.
func (r *Registry) ApplyCommandIntent(req CommandRequest) error {
	r.mu.Lock()

	e, ok := r.units[req.DeviceID]
	if !ok {
		r.mu.Unlock()
		return ErrDeviceNotFound
	}

	latest := e.unit.LastConfirmedSeq
	if e.unit.PendingSeq != nil && *e.unit.PendingSeq > latest {
		latest = *e.unit.PendingSeq
	}
	if req.Seq <= latest {
		r.mu.Unlock()
		return fmt.Errorf("%w: seq %d, latest %d", ErrStaleSequence, req.Seq, latest)
	}

	if err := applyField(&e.unit, req); err != nil {
		r.mu.Unlock()
		return err
	}
	e.pending[req.Kind] = req
	e.unit.PendingSeq = e.pendingSeq()

	r.publish(Change{Kind: ChangeIntent, Unit: r.snapshot(e)})
	return nil
}

// ApplyCommandResult reconciles a server response with the unit.
//
// Only the field the command mutated is touched. A result whose seq is not
// the pending seq for that field belongs to a superseded or already
// resolved command and is ignored. The first return value reports whether
// the result changed state.
//
// Applied moves the field into the confirmed state. Rejected and
// TransportFailed restore the field's last confirmed value. Fields with
// their own pending intents are left alone either way.
func (r *Registry) ApplyCommandResult(res CommandResult) (bool, error) {
	r.mu.Lock()

	e, ok := r.units[res.DeviceID]
	if !ok {
		r.mu.Unlock()
		return false, ErrDeviceNotFound
	}

	var (
		req   CommandRequest
		found bool
	)
	for _, p := range e.pending {
		if p.Seq == res.Seq {
			req, found = p, true
			break
		}
	}
	if !found {
		pending := int64(0)
		if e.unit.PendingSeq != nil {
			pending = *e.unit.PendingSeq
		}
		r.mu.Unlock()
		r.logger.Debug("stale command result ignored",
			"device_id", res.DeviceID,
			"seq", res.Seq,
			"pending_seq", pending,
			"outcome", res.Outcome,
		)
		return false, nil
	}

	var kind ChangeKind
	switch res.Outcome {
	case OutcomeApplied:
		confirmField(&e.confirmed, req)
		if res.Seq > e.unit.LastConfirmedSeq {
			e.unit.LastConfirmedSeq = res.Seq
		}
		kind = ChangeConfirmed
	case OutcomeRejected, OutcomeTransportFailed:
		restoreField(&e.unit, e.confirmed, req.Kind)
		kind = ChangeRollback
	default:
		r.mu.Unlock()
		return false, fmt.Errorf("%w: outcome %q", ErrInvalidCommand, res.Outcome)
	}
	delete(e.pending, req.Kind)
	e.unit.PendingSeq = e.pendingSeq()

	if kind == ChangeRollback {
		r.logger.Info("command rolled back",
			"device_id", res.DeviceID,
			"seq", res.Seq,
			"kind", req.Kind,
			"outcome", res.Outcome,
		)
	}

	r.publish(Change{Kind: kind, Unit: r.snapshot(e)})
	return true, nil
}

// ApplyTelemetry merges a sample into the registry.
//
// Each field is compared with the stored reading independently: a field
// observed before the stored one is skipped, the rest of the sample still
// applies. Samples with no DeviceID update the outdoor conditions; there a
// field must be strictly newer than the stored reading.
func (r *Registry) ApplyTelemetry(sample TelemetrySample) error {
	r.mu.Lock()

	observed := sample.ObservedAt
	if observed.IsZero() {
		observed = r.now()
	}

	var (
		readings map[string]Reading
		lastAt   **time.Time
		e        *entry
	)
	if sample.DeviceID == "" {
		readings = r.outdoor.Readings
		lastAt = &r.outdoor.LastTelemetryAt
	} else {
		var ok bool
		e, ok = r.units[sample.DeviceID]
		if !ok {
			r.mu.Unlock()
			return ErrDeviceNotFound
		}
		readings = e.unit.Readings
		lastAt = &e.unit.LastTelemetryAt
	}

	accepted := make(map[string]float64, len(sample.Fields))
	for name, value := range sample.Fields {
		cur, ok := readings[name]
		if ok && observed.Before(cur.ObservedAt) {
			continue
		}
		// Outdoor conditions are site-wide and reach the registry once per
		// subscribed unit, so an observation already stored is a repeat.
		if ok && e == nil && observed.Equal(cur.ObservedAt) {
			continue
		}
		readings[name] = Reading{Value: value, ObservedAt: observed, Source: sample.SourceID}
		accepted[name] = value
	}

	if len(accepted) == 0 {
		r.mu.Unlock()
		r.logger.Debug("telemetry sample discarded as out of date",
			"device_id", sample.DeviceID,
			"source", sample.SourceID,
			"observed_at", observed,
		)
		return nil
	}

	if *lastAt == nil || observed.After(**lastAt) {
		t := observed
		*lastAt = &t
	}

	applied := sample
	applied.ObservedAt = observed
	applied.Fields = accepted

	if e == nil {
		if sample.Description != "" {
			r.outdoor.Description = sample.Description
		}
		r.publish(Change{Kind: ChangeOutdoor, Outdoor: r.outdoorSnapshot(), Sample: &applied})
		return nil
	}
	r.publish(Change{Kind: ChangeTelemetry, Unit: r.snapshot(e), Sample: &applied})
	return nil
}

// publish queues the change, releases r.mu and drains the queue unless
// another goroutine is already draining it. It must be called with r.mu
// held for writing.
func (r *Registry) publish(c Change) {
	if r.onChange == nil {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, c)
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	r.mu.Unlock()

	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.draining = false
			r.mu.Unlock()
			return
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		fn := r.onChange
		r.mu.Unlock()

		if fn != nil {
			fn(next)
		}
	}
}

// snapshot returns a copy of the entry with staleness evaluated at now.
// Caller must hold r.mu.
func (r *Registry) snapshot(e *entry) *DeviceUnit {
	u := e.unit.DeepCopy()
	now := r.now()
	u.Stale = isStale(u.LastTelemetryAt, now, e.staleAfter)
	markStaleReadings(u.Readings, now, e.staleAfter)
	return u
}

// outdoorSnapshot returns a copy of the outdoor conditions. Caller must hold r.mu.
func (r *Registry) outdoorSnapshot() *OutdoorConditions {
	o := r.outdoor.DeepCopy()
	now := r.now()
	o.Stale = isStale(o.LastTelemetryAt, now, r.outdoorTTL)
	markStaleReadings(o.Readings, now, r.outdoorTTL)
	return o
}

// isStale reports whether telemetry last seen at last is older than threshold.
// Telemetry that has never arrived is stale.
func isStale(last *time.Time, now time.Time, threshold time.Duration) bool {
	if last == nil {
		return true
	}
	if threshold <= 0 {
		return false
	}
	return now.Sub(*last) > threshold
}

func markStaleReadings(readings map[string]Reading, now time.Time, threshold time.Duration) {
	for name, rd := range readings {
		at := rd.ObservedAt
		rd.Stale = isStale(&at, now, threshold)
		readings[name] = rd
	}
}

func setControl(u *DeviceUnit, c ControlState) {
	u.TargetTemperature = c.TargetTemperature
	u.Mode = c.Mode
	u.PowerOn = c.PowerOn
}

// applyField writes the one control field req mutates.
func applyField(u *DeviceUnit, req CommandRequest) error {
	switch req.Kind {
	case CommandSetTemperature:
		u.TargetTemperature = req.Temperature
	case CommandSetMode:
		u.Mode = req.Mode
	case CommandSetPower:
		u.PowerOn = req.PowerOn
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCommand, req.Kind)
	}
	return nil
}

func confirmField(c *ControlState, req CommandRequest) {
	switch req.Kind {
	case CommandSetTemperature:
		c.TargetTemperature = req.Temperature
	case CommandSetMode:
		c.Mode = req.Mode
	case CommandSetPower:
		c.PowerOn = req.PowerOn
	}
}

// restoreField copies the field kind mutates from c back into u.
func restoreField(u *DeviceUnit, c ControlState, kind CommandKind) {
	switch kind {
	case CommandSetTemperature:
		u.TargetTemperature = c.TargetTemperature
	case CommandSetMode:
		u.Mode = c.Mode
	case CommandSetPower:
		u.PowerOn = c.PowerOn
	}
}
