package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-climate/internal/device"
	"github.com/nerrad567/gray-logic-climate/internal/telemetry"
)

// pollingRequest is the optional body of POST /devices/{id}/polling.
type pollingRequest struct {
	IntervalMS int64 `json:"interval_ms"`
}

func (s *Server) handleStartPolling(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req pollingRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.IntervalMS < 0 {
		writeValidationError(w, "interval_ms must be positive")
		return
	}
	interval := s.deps.PollInterval
	if req.IntervalMS > 0 {
		interval = time.Duration(req.IntervalMS) * time.Millisecond
	}

	err := s.deps.Poller.Start(id, s.deps.Sources(), interval)
	switch {
	case err == nil:
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
		return
	case errors.Is(err, telemetry.ErrInvalidInterval), errors.Is(err, telemetry.ErrNoSources),
		errors.Is(err, telemetry.ErrDuplicateSource):
		writeValidationError(w, err.Error())
		return
	default:
		s.logger.Error("starting telemetry polling failed", "device_id", id, "error", err)
		writeInternalError(w, "could not start polling")
		return
	}

	s.writePollingStatus(w, id, http.StatusCreated)
}

// handleStopPolling is idempotent for known devices.
func (s *Server) handleStopPolling(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Registry.Get(id); err != nil {
		s.writeDeviceError(w, err)
		return
	}
	s.deps.Poller.Stop(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePollingStatus(w http.ResponseWriter, r *http.Request) {
	s.writePollingStatus(w, chi.URLParam(r, "id"), http.StatusOK)
}

func (s *Server) writePollingStatus(w http.ResponseWriter, id string, code int) {
	st, err := s.deps.Poller.Status(id)
	if errors.Is(err, telemetry.ErrNotPolling) {
		if _, gerr := s.deps.Registry.Get(id); gerr != nil {
			s.writeDeviceError(w, gerr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"device_id": id, "polling": false})
		return
	}
	if err != nil {
		s.writeDeviceError(w, err)
		return
	}
	writeJSON(w, code, map[string]any{"polling": true, "status": st})
}
