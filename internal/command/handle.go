package command

import (
	"context"

	"github.com/nerrad567/gray-logic-climate/internal/device"
)

// Outcome is the final state of an issued command.
type Outcome struct {
	Result device.CommandResult `json:"result"`
	// Err is the last upstream error, nil when applied.
	Err error `json:"-"`
	// Superseded is true when a newer command for the same field was
	// issued before this result arrived, so the registry ignored it.
	Superseded bool `json:"superseded"`
	Attempts   int  `json:"attempts"`
}

// Handle identifies an issued command. Callers that do not care about the
// outcome may drop it.
type Handle struct {
	ID       string             `json:"id"`
	DeviceID string             `json:"device_id"`
	Seq      int64              `json:"seq"`
	Kind     device.CommandKind `json:"kind"`

	done    chan struct{}
	outcome Outcome
}

func newHandle(id string, req device.CommandRequest) *Handle {
	return &Handle{
		ID:       id,
		DeviceID: req.DeviceID,
		Seq:      req.Seq,
		Kind:     req.Kind,
		done:     make(chan struct{}),
	}
}

// Done is closed once the command has been reconciled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the command is reconciled or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) finish(o Outcome) {
	h.outcome = o
	close(h.done)
}
