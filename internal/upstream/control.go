package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-climate/internal/device"
)

type temperatureCommand struct {
	SystemID    string      `json:"system_id"`
	Temperature int         `json:"temperature"`
	Mode        device.Mode `json:"mode"`
}

type powerCommand struct {
	SystemID string `json:"system_id"`
	State    bool   `json:"state"`
}

// ack is the optional body of a control response.
type ack struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SetTemperature posts a target temperature and mode for a system.
func (c *Client) SetTemperature(ctx context.Context, systemID string, temperature int, mode device.Mode) error {
	return c.control(ctx, "control_temperature", "/control/temperature", temperatureCommand{
		SystemID:    systemID,
		Temperature: temperature,
		Mode:        mode,
	})
}

// SetPower switches a system on or off.
func (c *Client) SetPower(ctx context.Context, systemID string, on bool) error {
	return c.control(ctx, "control_power", "/control/power", powerCommand{
		SystemID: systemID,
		State:    on,
	})
}

// control posts a command. A 2xx response is an ack unless its JSON body
// explicitly reports failure; non-JSON bodies are accepted as acks.
func (c *Client) control(ctx context.Context, endpoint, path string, payload any) error {
	data, err := c.do(ctx, endpoint, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}

	var a ack
	if len(data) == 0 || json.Unmarshal(data, &a) != nil {
		return nil
	}
	if a.Success != nil && !*a.Success {
		return fmt.Errorf("%w: %s", ErrRejected, a.Message)
	}
	switch strings.ToLower(a.Status) {
	case "error", "failed", "rejected":
		return fmt.Errorf("%w: %s", ErrRejected, a.Message)
	}
	return nil
}
