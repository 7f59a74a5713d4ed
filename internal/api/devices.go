package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-climate/internal/command"
	"github.com/nerrad567/gray-logic-climate/internal/device"
)

// commandRequest is the body of POST /devices/{id}/commands.
type commandRequest struct {
	Kind  device.CommandKind `json:"kind"`
	Value any                `json:"value"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	units := s.deps.Registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": units,
		"count":   len(units),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	unit, err := s.deps.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

func (s *Server) handleOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Overview())
}

func (s *Server) handleOutdoor(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Outdoor())
}

// handleIssueCommand accepts a command and returns its handle straight
// away. The outcome arrives as a device.updated (and, on failure,
// command.failed) event.
func (s *Server) handleIssueCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Kind == "" {
		writeValidationError(w, "kind is required")
		return
	}

	handle, err := s.deps.Commands.Issue(id, req.Kind, req.Value)
	switch {
	case err == nil:
	case command.IsValidationError(err):
		writeValidationError(w, err.Error())
		return
	case errors.Is(err, command.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "shutting down")
		return
	default:
		s.writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"handle": handle})
}

// writeDeviceError maps registry errors to responses.
func (s *Server) writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrStaleSequence):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		s.logger.Error("device request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
