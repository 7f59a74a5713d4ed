package device

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source for staleness tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testUnits() []UnitConfig {
	return []UnitConfig{
		{ID: "ac-1", Name: "Living Room AC", SystemID: "sys-1", ZoneID: "zone-a", TargetTemperature: 24, Mode: ModeCool, PowerOn: true},
		{ID: "ac-2", Name: "Bedroom AC", SystemID: "sys-2", TargetTemperature: 22, Mode: ModeHeat},
		{ID: "ac-3", Name: "Kitchen AC", TargetTemperature: 26, Mode: ModeFan, PowerOn: true},
	}
}

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	r := NewRegistry(2 * time.Minute)
	r.SetClock(clock.Now)
	if err := r.Load(testUnits()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return r, clock
}

func mustGet(t *testing.T, r *Registry, id string) *DeviceUnit {
	t.Helper()
	u, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", id, err)
	}
	return u
}

func TestRegistry_Load(t *testing.T) {
	r, _ := newTestRegistry(t)

	t.Run("list preserves registration order", func(t *testing.T) {
		units := r.List()
		want := []string{"ac-1", "ac-2", "ac-3"}
		if len(units) != len(want) {
			t.Fatalf("List() len = %d, want %d", len(units), len(want))
		}
		for i, id := range want {
			if units[i].ID != id {
				t.Errorf("List()[%d].ID = %q, want %q", i, units[i].ID, id)
			}
		}
	})

	t.Run("system id defaults to unit id", func(t *testing.T) {
		if got := mustGet(t, r, "ac-3").SystemID; got != "ac-3" {
			t.Errorf("SystemID = %q, want %q", got, "ac-3")
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := r.Load([]UnitConfig{{ID: "ac-1", Mode: ModeCool}})
		if !errors.Is(err, ErrDeviceExists) {
			t.Errorf("Load() error = %v, want ErrDeviceExists", err)
		}
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		err := r.Load([]UnitConfig{{ID: "ac-9", Mode: "Turbo"}})
		if !errors.Is(err, ErrInvalidMode) {
			t.Errorf("Load() error = %v, want ErrInvalidMode", err)
		}
		if _, err := r.Get("ac-9"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("Get(ac-9) error = %v, want ErrDeviceNotFound", err)
		}
	})
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r, _ := newTestRegistry(t)
	if _, err := r.Get("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Get_ReturnsCopy(t *testing.T) {
	r, _ := newTestRegistry(t)
	if err := r.ApplyTelemetry(TelemetrySample{
		SourceID: "indoor", DeviceID: "ac-1", Fields: map[string]float64{"temperature": 21.5},
	}); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}

	u := mustGet(t, r, "ac-1")
	u.TargetTemperature = 99
	u.Readings["temperature"] = Reading{Value: -1}

	again := mustGet(t, r, "ac-1")
	if again.TargetTemperature != 24 {
		t.Errorf("TargetTemperature = %d, want 24", again.TargetTemperature)
	}
	if again.Readings["temperature"].Value != 21.5 {
		t.Errorf("temperature = %v, want 21.5", again.Readings["temperature"].Value)
	}
}

func TestRegistry_ApplyCommandIntent(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.ApplyCommandIntent(CommandRequest{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 1, Temperature: 20})
	if err != nil {
		t.Fatalf("ApplyCommandIntent() error = %v", err)
	}

	u := mustGet(t, r, "ac-1")
	if u.TargetTemperature != 20 {
		t.Errorf("TargetTemperature = %d, want 20", u.TargetTemperature)
	}
	if u.PendingSeq == nil || *u.PendingSeq != 1 {
		t.Errorf("PendingSeq = %v, want 1", u.PendingSeq)
	}
	if u.LastConfirmedSeq != 0 {
		t.Errorf("LastConfirmedSeq = %d, want 0", u.LastConfirmedSeq)
	}

	t.Run("older seq rejected", func(t *testing.T) {
		err := r.ApplyCommandIntent(CommandRequest{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 1, Temperature: 18})
		if !errors.Is(err, ErrStaleSequence) {
			t.Errorf("ApplyCommandIntent() error = %v, want ErrStaleSequence", err)
		}
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		err := r.ApplyCommandIntent(CommandRequest{DeviceID: "ac-2", Kind: "Reboot", Seq: 1})
		if !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("ApplyCommandIntent() error = %v, want ErrInvalidCommand", err)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		err := r.ApplyCommandIntent(CommandRequest{DeviceID: "nope", Kind: CommandSetPower, Seq: 1})
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("ApplyCommandIntent() error = %v, want ErrDeviceNotFound", err)
		}
	})
}

func TestRegistry_ApplyCommandResult(t *testing.T) {
	tests := []struct {
		name          string
		outcome       CommandOutcome
		wantTemp      int
		wantConfirmed int64
	}{
		{name: "applied confirms", outcome: OutcomeApplied, wantTemp: 19, wantConfirmed: 1},
		{name: "rejected rolls back", outcome: OutcomeRejected, wantTemp: 24, wantConfirmed: 0},
		{name: "transport failure rolls back", outcome: OutcomeTransportFailed, wantTemp: 24, wantConfirmed: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(t)
			if err := r.ApplyCommandIntent(CommandRequest{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 1, Temperature: 19}); err != nil {
				t.Fatalf("ApplyCommandIntent() error = %v", err)
			}

			changed, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: tt.outcome})
			if err != nil {
				t.Fatalf("ApplyCommandResult() error = %v", err)
			}
			if !changed {
				t.Error("ApplyCommandResult() changed = false, want true")
			}

			u := mustGet(t, r, "ac-1")
			if u.TargetTemperature != tt.wantTemp {
				t.Errorf("TargetTemperature = %d, want %d", u.TargetTemperature, tt.wantTemp)
			}
			if u.LastConfirmedSeq != tt.wantConfirmed {
				t.Errorf("LastConfirmedSeq = %d, want %d", u.LastConfirmedSeq, tt.wantConfirmed)
			}
			if u.PendingSeq != nil {
				t.Errorf("PendingSeq = %d, want nil", *u.PendingSeq)
			}
		})
	}
}

func TestRegistry_ApplyCommandResult_StaleAckIgnored(t *testing.T) {
	r, _ := newTestRegistry(t)

	// SetTemperature(22) then SetTemperature(20); seq 2 confirms first.
	for _, req := range []CommandRequest{
		{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 1, Temperature: 22},
		{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 2, Temperature: 20},
	} {
		if err := r.ApplyCommandIntent(req); err != nil {
			t.Fatalf("ApplyCommandIntent(seq %d) error = %v", req.Seq, err)
		}
	}

	t.Run("older result while newer pending", func(t *testing.T) {
		changed, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: OutcomeRejected})
		if err != nil {
			t.Fatalf("ApplyCommandResult() error = %v", err)
		}
		if changed {
			t.Error("changed = true, want false")
		}
		u := mustGet(t, r, "ac-1")
		if u.TargetTemperature != 20 {
			t.Errorf("TargetTemperature = %d, want 20", u.TargetTemperature)
		}
		if u.PendingSeq == nil || *u.PendingSeq != 2 {
			t.Errorf("PendingSeq = %v, want 2", u.PendingSeq)
		}
	})

	if _, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 2, Outcome: OutcomeApplied}); err != nil {
		t.Fatalf("ApplyCommandResult(seq 2) error = %v", err)
	}

	t.Run("older result after newer confirmed", func(t *testing.T) {
		changed, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: OutcomeApplied})
		if err != nil {
			t.Fatalf("ApplyCommandResult() error = %v", err)
		}
		if changed {
			t.Error("changed = true, want false")
		}
		u := mustGet(t, r, "ac-1")
		if u.TargetTemperature != 20 {
			t.Errorf("TargetTemperature = %d, want 20", u.TargetTemperature)
		}
		if u.LastConfirmedSeq != 2 {
			t.Errorf("LastConfirmedSeq = %d, want 2", u.LastConfirmedSeq)
		}
	})
}

func TestRegistry_ApplyCommandResult_RollbackRestoresConfirmed(t *testing.T) {
	r, _ := newTestRegistry(t)

	steps := []struct {
		req     CommandRequest
		outcome CommandOutcome
	}{
		{CommandRequest{DeviceID: "ac-2", Kind: CommandSetMode, Seq: 1, Mode: ModeCool}, OutcomeApplied},
		{CommandRequest{DeviceID: "ac-2", Kind: CommandSetPower, Seq: 2, PowerOn: true}, OutcomeTransportFailed},
	}
	for _, s := range steps {
		if err := r.ApplyCommandIntent(s.req); err != nil {
			t.Fatalf("ApplyCommandIntent(seq %d) error = %v", s.req.Seq, err)
		}
		if _, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-2", Seq: s.req.Seq, Outcome: s.outcome}); err != nil {
			t.Fatalf("ApplyCommandResult(seq %d) error = %v", s.req.Seq, err)
		}
	}

	u := mustGet(t, r, "ac-2")
	if u.Mode != ModeCool {
		t.Errorf("Mode = %q, want %q", u.Mode, ModeCool)
	}
	if u.PowerOn {
		t.Error("PowerOn = true, want false after rollback")
	}
	if u.LastConfirmedSeq != 1 {
		t.Errorf("LastConfirmedSeq = %d, want 1", u.LastConfirmedSeq)
	}
}

func TestRegistry_ApplyCommandResult_InterleavedFields(t *testing.T) {
	r, _ := newTestRegistry(t)

	// ac-1 starts at 24 and powered on.
	for _, req := range []CommandRequest{
		{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 1, Temperature: 22},
		{DeviceID: "ac-1", Kind: CommandSetPower, Seq: 2, PowerOn: false},
	} {
		if err := r.ApplyCommandIntent(req); err != nil {
			t.Fatalf("ApplyCommandIntent(seq %d) error = %v", req.Seq, err)
		}
	}

	changed, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 2, Outcome: OutcomeRejected})
	if err != nil || !changed {
		t.Fatalf("ApplyCommandResult(seq 2) = %v, %v; want true, nil", changed, err)
	}
	u := mustGet(t, r, "ac-1")
	if u.TargetTemperature != 22 {
		t.Errorf("TargetTemperature = %d, want 22 while its command is in flight", u.TargetTemperature)
	}
	if !u.PowerOn {
		t.Error("PowerOn = false, want true after rollback")
	}
	if u.PendingSeq == nil || *u.PendingSeq != 1 {
		t.Errorf("PendingSeq = %v, want 1", u.PendingSeq)
	}

	changed, err = r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: OutcomeApplied})
	if err != nil || !changed {
		t.Fatalf("ApplyCommandResult(seq 1) = %v, %v; want true, nil", changed, err)
	}
	u = mustGet(t, r, "ac-1")
	if u.TargetTemperature != 22 {
		t.Errorf("TargetTemperature = %d, want 22", u.TargetTemperature)
	}
	if u.LastConfirmedSeq != 1 {
		t.Errorf("LastConfirmedSeq = %d, want 1", u.LastConfirmedSeq)
	}
	if u.PendingSeq != nil {
		t.Errorf("PendingSeq = %d, want nil", *u.PendingSeq)
	}

	// 22 is now the confirmed value a later rollback returns to.
	if err := r.ApplyCommandIntent(CommandRequest{DeviceID: "ac-1", Kind: CommandSetTemperature, Seq: 3, Temperature: 18}); err != nil {
		t.Fatalf("ApplyCommandIntent(seq 3) error = %v", err)
	}
	if _, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 3, Outcome: OutcomeTransportFailed}); err != nil {
		t.Fatalf("ApplyCommandResult(seq 3) error = %v", err)
	}
	if got := mustGet(t, r, "ac-1").TargetTemperature; got != 22 {
		t.Errorf("TargetTemperature after rollback = %d, want 22", got)
	}
}

func TestRegistry_ApplyCommandResult_ConfirmLeavesOtherFieldsPending(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, req := range []CommandRequest{
		{DeviceID: "ac-1", Kind: CommandSetPower, Seq: 1, PowerOn: false},
		{DeviceID: "ac-1", Kind: CommandSetMode, Seq: 2, Mode: ModeHeat},
	} {
		if err := r.ApplyCommandIntent(req); err != nil {
			t.Fatalf("ApplyCommandIntent(seq %d) error = %v", req.Seq, err)
		}
	}

	// Confirming the mode must not confirm the unacknowledged power change.
	if _, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 2, Outcome: OutcomeApplied}); err != nil {
		t.Fatalf("ApplyCommandResult(seq 2) error = %v", err)
	}
	if _, err := r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: OutcomeRejected}); err != nil {
		t.Fatalf("ApplyCommandResult(seq 1) error = %v", err)
	}

	u := mustGet(t, r, "ac-1")
	if u.Mode != ModeHeat {
		t.Errorf("Mode = %q, want %q", u.Mode, ModeHeat)
	}
	if !u.PowerOn {
		t.Error("PowerOn = false, want the confirmed true")
	}
	if u.LastConfirmedSeq != 2 {
		t.Errorf("LastConfirmedSeq = %d, want 2", u.LastConfirmedSeq)
	}
	if u.PendingSeq != nil {
		t.Errorf("PendingSeq = %d, want nil", *u.PendingSeq)
	}
}

func TestRegistry_ApplyTelemetry_PerFieldOrdering(t *testing.T) {
	r, clock := newTestRegistry(t)
	t0 := clock.Now()

	if err := r.ApplyTelemetry(TelemetrySample{
		SourceID:   "indoor",
		DeviceID:   "ac-1",
		ObservedAt: t0,
		Fields:     map[string]float64{"temperature": 23, "humidity": 40},
	}); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}
	if err := r.ApplyTelemetry(TelemetrySample{
		SourceID:   "metrics",
		DeviceID:   "ac-1",
		ObservedAt: t0.Add(time.Minute),
		Fields:     map[string]float64{"humidity": 45},
	}); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}

	// Older than humidity's reading, newer than temperature's.
	if err := r.ApplyTelemetry(TelemetrySample{
		SourceID:   "indoor",
		DeviceID:   "ac-1",
		ObservedAt: t0.Add(30 * time.Second),
		Fields:     map[string]float64{"temperature": 25, "humidity": 30},
	}); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}

	u := mustGet(t, r, "ac-1")
	if got := u.Readings["temperature"].Value; got != 25 {
		t.Errorf("temperature = %v, want 25", got)
	}
	if got := u.Readings["humidity"].Value; got != 45 {
		t.Errorf("humidity = %v, want 45", got)
	}
	if u.LastTelemetryAt == nil || !u.LastTelemetryAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastTelemetryAt = %v, want %v", u.LastTelemetryAt, t0.Add(time.Minute))
	}
}

func TestRegistry_ApplyTelemetry_UnknownDevice(t *testing.T) {
	r, _ := newTestRegistry(t)
	err := r.ApplyTelemetry(TelemetrySample{SourceID: "indoor", DeviceID: "ghost", Fields: map[string]float64{"temperature": 1}})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("ApplyTelemetry() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Staleness(t *testing.T) {
	r, clock := newTestRegistry(t)

	if !mustGet(t, r, "ac-1").Stale {
		t.Error("Stale = false before any telemetry, want true")
	}

	if err := r.ApplyTelemetry(TelemetrySample{
		SourceID: "indoor", DeviceID: "ac-1", ObservedAt: clock.Now(),
		Fields: map[string]float64{"temperature": 22},
	}); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}
	if mustGet(t, r, "ac-1").Stale {
		t.Error("Stale = true right after telemetry, want false")
	}

	clock.Advance(2 * time.Minute)
	if mustGet(t, r, "ac-1").Stale {
		t.Error("Stale = true at exactly the threshold, want false")
	}

	clock.Advance(time.Second)
	u := mustGet(t, r, "ac-1")
	if !u.Stale {
		t.Error("Stale = false past the threshold, want true")
	}
	if !u.Readings["temperature"].Stale {
		t.Error("reading Stale = false past the threshold, want true")
	}

	if err := r.SetStaleThreshold("ac-1", 10*time.Minute); err != nil {
		t.Fatalf("SetStaleThreshold() error = %v", err)
	}
	if mustGet(t, r, "ac-1").Stale {
		t.Error("Stale = true after raising threshold, want false")
	}
}

func TestRegistry_Outdoor(t *testing.T) {
	r, clock := newTestRegistry(t)
	r.SetOutdoorStaleThreshold(time.Hour)

	if err := r.ApplyTelemetry(TelemetrySample{
		SourceID:    "weather",
		ObservedAt:  clock.Now(),
		Fields:      map[string]float64{FieldTemperature: 31, FieldHumidity: 16},
		Description: "clear sky",
	}); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}

	o := r.Outdoor()
	if o.Stale {
		t.Error("outdoor Stale = true, want false")
	}
	if o.Readings[FieldTemperature].Value != 31 {
		t.Errorf("outdoor temperature = %v, want 31", o.Readings[FieldTemperature].Value)
	}
	if o.Description != "clear sky" {
		t.Errorf("Description = %q, want %q", o.Description, "clear sky")
	}

	// Outdoor telemetry never touches unit freshness.
	if !mustGet(t, r, "ac-1").Stale {
		t.Error("unit Stale = false after outdoor sample, want true")
	}
}

func TestRegistry_Outdoor_DuplicateSampleIgnored(t *testing.T) {
	r, clock := newTestRegistry(t)

	var outdoorEvents int
	r.SetOnChange(func(c Change) {
		if c.Kind == ChangeOutdoor {
			outdoorEvents++
		}
	})

	sample := TelemetrySample{
		SourceID:   "weather",
		ObservedAt: clock.Now(),
		Fields:     map[string]float64{FieldTemperature: 12, FieldHumidity: 60},
	}
	// Every unit's subscription reports the same observation.
	for i := 0; i < 3; i++ {
		if err := r.ApplyTelemetry(sample); err != nil {
			t.Fatalf("ApplyTelemetry() error = %v", err)
		}
	}
	if outdoorEvents != 1 {
		t.Errorf("outdoor events = %d, want 1", outdoorEvents)
	}

	sample.ObservedAt = clock.Now().Add(30 * time.Minute)
	if err := r.ApplyTelemetry(sample); err != nil {
		t.Fatalf("ApplyTelemetry() error = %v", err)
	}
	if outdoorEvents != 2 {
		t.Errorf("outdoor events = %d, want 2 after a newer observation", outdoorEvents)
	}
}

func TestRegistry_Overview(t *testing.T) {
	r, clock := newTestRegistry(t)
	for _, s := range []TelemetrySample{
		{SourceID: "metrics", DeviceID: "ac-1", ObservedAt: clock.Now(), Fields: map[string]float64{FieldEnergyKWh: 1.5}},
		{SourceID: "metrics", DeviceID: "ac-2", ObservedAt: clock.Now(), Fields: map[string]float64{FieldEnergyKWh: 2.5}},
	} {
		if err := r.ApplyTelemetry(s); err != nil {
			t.Fatalf("ApplyTelemetry() error = %v", err)
		}
	}

	ov := r.Overview()
	if ov.Units != 3 {
		t.Errorf("Units = %d, want 3", ov.Units)
	}
	if ov.PoweredOn != 2 {
		t.Errorf("PoweredOn = %d, want 2", ov.PoweredOn)
	}
	if ov.Stale != 1 {
		t.Errorf("Stale = %d, want 1", ov.Stale)
	}
	if ov.AverageTemperature != 24 {
		t.Errorf("AverageTemperature = %v, want 24", ov.AverageTemperature)
	}
	if ov.TotalEnergyKWh != 4 {
		t.Errorf("TotalEnergyKWh = %v, want 4", ov.TotalEnergyKWh)
	}
}

func TestRegistry_OnChange_Order(t *testing.T) {
	r, _ := newTestRegistry(t)

	var kinds []ChangeKind
	r.SetOnChange(func(c Change) {
		kinds = append(kinds, c.Kind)
		// Reads from the callback must not deadlock.
		if c.Unit != nil {
			_, _ = r.Get(c.Unit.ID)
		}
	})

	_ = r.ApplyCommandIntent(CommandRequest{DeviceID: "ac-1", Kind: CommandSetPower, Seq: 1, PowerOn: false})
	_, _ = r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: OutcomeRejected})
	_, _ = r.ApplyCommandResult(CommandResult{DeviceID: "ac-1", Seq: 1, Outcome: OutcomeApplied}) // stale, no event
	_ = r.ApplyTelemetry(TelemetrySample{SourceID: "weather", Fields: map[string]float64{FieldTemperature: 10}})

	want := []ChangeKind{ChangeIntent, ChangeRollback, ChangeOutdoor}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	r, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.ApplyTelemetry(TelemetrySample{
				SourceID: "indoor", DeviceID: "ac-1",
				Fields: map[string]float64{"temperature": float64(i)},
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()

	if _, ok := mustGet(t, r, "ac-1").Readings["temperature"]; !ok {
		t.Error("temperature reading missing after concurrent writes")
	}
}
