package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-climate/internal/analysis"
	"github.com/nerrad567/gray-logic-climate/internal/device"
)

// analysisRequest is the body of POST /devices/{id}/analysis.
type analysisRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	TimeoutMS int64     `json:"timeout_ms"`
}

// handleRunAnalysis answers 200 even when the caller timeout cut some
// sources short; the body then has timed_out set.
func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req analysisRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.TimeoutMS < 0 {
		writeValidationError(w, "timeout_ms must be positive")
		return
	}
	timeout := s.deps.AnalysisTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	res, err := s.deps.Analysis.Run(ctx, id, analysis.Window{Start: req.StartTime, End: req.EndTime})
	switch {
	case err == nil, errors.Is(err, analysis.ErrTimedOut):
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, analysis.ErrInvalidWindow):
		writeValidationError(w, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	default:
		s.logger.Error("analysis failed", "device_id", id, "error", err)
		writeInternalError(w, "analysis failed")
	}
}
