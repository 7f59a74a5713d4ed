package device

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the operating mode of a climate unit.
type Mode string

// Operating modes supported by the control endpoint.
const (
	ModeCool Mode = "Cool"
	ModeHeat Mode = "Heat"
	ModeFan  Mode = "Fan"
)

// AllModes returns all valid operating modes.
func AllModes() []Mode {
	return []Mode{ModeCool, ModeHeat, ModeFan}
}

// ParseMode converts a case-insensitive mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range AllModes() {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// CommandKind identifies which control field a command mutates.
type CommandKind string

// Command kinds.
const (
	CommandSetTemperature CommandKind = "SetTemperature"
	CommandSetPower       CommandKind = "SetPower"
	CommandSetMode        CommandKind = "SetMode"
)

// CommandOutcome is the server-side result of a command.
type CommandOutcome string

// Command outcomes.
const (
	OutcomeApplied         CommandOutcome = "Applied"
	OutcomeRejected        CommandOutcome = "Rejected"
	OutcomeTransportFailed CommandOutcome = "TransportFailed"
)

// ControlState is the set of fields commands can change.
type ControlState struct {
	TargetTemperature int  `json:"target_temperature"`
	Mode              Mode `json:"mode"`
	PowerOn           bool `json:"power_on"`
}

// Reading is a single telemetry field value with the time it was observed.
type Reading struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
	Stale      bool      `json:"stale"`
}

// DeviceUnit is one controllable climate unit tracked by the registry.
//
// Control fields (TargetTemperature, Mode, PowerOn) show the optimistic value:
// the highest-seq intent still awaiting a result, or the confirmed value
// when nothing is pending.
type DeviceUnit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SystemID string `json:"system_id"`
	ZoneID   string `json:"zone_id,omitempty"`

	TargetTemperature int  `json:"target_temperature"`
	Mode              Mode `json:"mode"`
	PowerOn           bool `json:"power_on"`

	// PendingSeq is the highest seq still awaiting a result on any field.
	LastConfirmedSeq int64  `json:"last_confirmed_seq"`
	PendingSeq       *int64 `json:"pending_seq,omitempty"`

	Readings        map[string]Reading `json:"readings,omitempty"`
	LastTelemetryAt *time.Time         `json:"last_telemetry_at,omitempty"`
	Stale           bool               `json:"stale"`
}

// Control returns the unit's displayed control fields.
func (u *DeviceUnit) Control() ControlState {
	return ControlState{
		TargetTemperature: u.TargetTemperature,
		Mode:              u.Mode,
		PowerOn:           u.PowerOn,
	}
}

// Pending reports whether a command is in flight for the unit.
func (u *DeviceUnit) Pending() bool {
	return u.PendingSeq != nil
}

// DeepCopy creates an independent copy of the unit.
func (u *DeviceUnit) DeepCopy() *DeviceUnit {
	if u == nil {
		return nil
	}
	cpy := *u
	if u.PendingSeq != nil {
		seq := *u.PendingSeq
		cpy.PendingSeq = &seq
	}
	if u.LastTelemetryAt != nil {
		t := *u.LastTelemetryAt
		cpy.LastTelemetryAt = &t
	}
	if u.Readings != nil {
		cpy.Readings = make(map[string]Reading, len(u.Readings))
		for k, v := range u.Readings {
			cpy.Readings[k] = v
		}
	}
	return &cpy
}

// UnitConfig describes a unit at initial registry load.
type UnitConfig struct {
	ID                string
	Name              string
	SystemID          string
	ZoneID            string
	TargetTemperature int
	Mode              Mode
	PowerOn           bool
}

// CommandRequest is a single control mutation for one device.
// Only the field selected by Kind is meaningful.
type CommandRequest struct {
	DeviceID    string      `json:"device_id"`
	Kind        CommandKind `json:"kind"`
	Seq         int64       `json:"seq"`
	Temperature int         `json:"temperature,omitempty"`
	Mode        Mode        `json:"mode,omitempty"`
	PowerOn     bool        `json:"power_on,omitempty"`
}

// Value returns the request's value for logging and events.
func (r CommandRequest) Value() any {
	switch r.Kind {
	case CommandSetTemperature:
		return r.Temperature
	case CommandSetMode:
		return r.Mode
	case CommandSetPower:
		return r.PowerOn
	default:
		return nil
	}
}

// CommandResult reports the outcome of a CommandRequest.
type CommandResult struct {
	DeviceID string         `json:"device_id"`
	Seq      int64          `json:"seq"`
	Outcome  CommandOutcome `json:"outcome"`
}

// TelemetrySample is one fetch from a telemetry source.
// DeviceID is empty for samples that describe outdoor conditions.
type TelemetrySample struct {
	SourceID   string             `json:"source_id"`
	DeviceID   string             `json:"device_id,omitempty"`
	ObservedAt time.Time          `json:"observed_at"`
	Fields     map[string]float64 `json:"fields"`
	// Description is free text some sources attach (weather summary).
	Description string `json:"description,omitempty"`
}

// Outdoor field names written by weather sources.
const (
	FieldTemperature   = "temperature"
	FieldHumidity      = "humidity"
	FieldWindSpeed     = "wind_speed"
	FieldPrecipitation = "precipitation"
	FieldSunrise       = "sunrise"
	FieldSunset        = "sunset"
	FieldEnergyKWh     = "energy_kwh"
)

// OutdoorConditions holds telemetry that belongs to no device.
type OutdoorConditions struct {
	Readings        map[string]Reading `json:"readings"`
	Description     string             `json:"description,omitempty"`
	LastTelemetryAt *time.Time         `json:"last_telemetry_at,omitempty"`
	Stale           bool               `json:"stale"`
}

// DeepCopy creates an independent copy of the conditions.
func (o *OutdoorConditions) DeepCopy() *OutdoorConditions {
	if o == nil {
		return nil
	}
	cpy := *o
	if o.LastTelemetryAt != nil {
		t := *o.LastTelemetryAt
		cpy.LastTelemetryAt = &t
	}
	cpy.Readings = make(map[string]Reading, len(o.Readings))
	for k, v := range o.Readings {
		cpy.Readings[k] = v
	}
	return &cpy
}

// Overview is the system-wide summary shown on the admin dashboard.
type Overview struct {
	Units              int     `json:"units"`
	PoweredOn          int     `json:"powered_on"`
	Stale              int     `json:"stale"`
	Pending            int     `json:"pending"`
	AverageTemperature float64 `json:"average_target_temperature"`
	TotalEnergyKWh     float64 `json:"total_energy_kwh"`
}

// ChangeKind describes what caused a registry change.
type ChangeKind string

// Change kinds emitted by the registry.
const (
	ChangeIntent    ChangeKind = "intent"
	ChangeConfirmed ChangeKind = "confirmed"
	ChangeRollback  ChangeKind = "rollback"
	ChangeTelemetry ChangeKind = "telemetry"
	ChangeOutdoor   ChangeKind = "outdoor"
)

// Change is delivered to the OnChange callback after an accepted mutation.
// Unit is nil for outdoor changes; Outdoor is nil otherwise. Sample is set
// for telemetry changes and holds only the accepted fields.
type Change struct {
	Kind    ChangeKind
	Unit    *DeviceUnit
	Outdoor *OutdoorConditions
	Sample  *TelemetrySample
}
