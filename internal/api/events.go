package api

import (
	"fmt"

	"github.com/nerrad567/gray-logic-climate/internal/command"
	"github.com/nerrad567/gray-logic-climate/internal/device"
)

// Event channels pushed over /api/v1/ws.
const (
	EventDeviceUpdated  = "device.updated"
	EventCommandFailed  = "command.failed"
	EventOutdoorUpdated = "outdoor.updated"
)

// AllEventChannels lists every channel a client is subscribed to by default.
func AllEventChannels() []string {
	return []string{EventDeviceUpdated, EventCommandFailed, EventOutdoorUpdated}
}

// DeviceEvent is the payload of device.updated.
type DeviceEvent struct {
	Cause  device.ChangeKind  `json:"cause"`
	Device *device.DeviceUnit `json:"device"`
}

// OutdoorEvent is the payload of outdoor.updated.
type OutdoorEvent struct {
	Outdoor *device.OutdoorConditions `json:"outdoor"`
}

// CommandFailedEvent is the payload of command.failed. Message is ready to
// show as a toast.
type CommandFailedEvent struct {
	command.Failure
	Message string `json:"message"`
}

// DeviceChanged pushes a registry change to subscribed clients.
func (h *Hub) DeviceChanged(c device.Change) {
	switch {
	case c.Outdoor != nil:
		h.Broadcast(EventOutdoorUpdated, OutdoorEvent{Outdoor: c.Outdoor})
	case c.Unit != nil:
		h.Broadcast(EventDeviceUpdated, DeviceEvent{Cause: c.Kind, Device: c.Unit})
	}
}

// CommandFailed pushes a rolled-back command to subscribed clients.
func (h *Hub) CommandFailed(f command.Failure) {
	h.Broadcast(EventCommandFailed, CommandFailedEvent{
		Failure: f,
		Message: failureMessage(f),
	})
}

func failureMessage(f command.Failure) string {
	var what string
	switch f.Kind {
	case device.CommandSetTemperature:
		what = fmt.Sprintf("set temperature to %v°C", f.Value)
	case device.CommandSetMode:
		what = fmt.Sprintf("switch mode to %v", f.Value)
	case device.CommandSetPower:
		if on, _ := f.Value.(bool); on { // Non-bool reads as off
			what = "turn on"
		} else {
			what = "turn off"
		}
	default:
		what = string(f.Kind)
	}

	if f.Outcome == device.OutcomeTransportFailed {
		return fmt.Sprintf("Could not %s %s: the unit did not respond", what, f.DeviceID)
	}
	return fmt.Sprintf("Could not %s %s: %s", what, f.DeviceID, f.Reason)
}
