package api

import (
	"net/http"
)

// sessionRequest is the body of PUT /session.
type sessionRequest struct {
	Token string `json:"token"`
}

// handleSetSession installs the bearer token obtained by the login flow.
// An empty token signs the session out.
func (s *Server) handleSetSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		writeError(w, http.StatusConflict, ErrCodeConflict, "upstream credentials are not session based")
		return
	}

	var req sessionRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.deps.Sessions.SetToken(r.Context(), req.Token); err != nil {
		s.logger.Error("saving session token failed", "error", err)
		writeInternalError(w, "could not save session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
