package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tvcastd/tvcast/internal/atv"
)

// handlePairStart opens a pairing session for one protocol on one device.
//
// Starting a new session while one is active supersedes the old one; the
// response status tells the UI whether to prompt for a PIN.
func (s *Server) handlePairStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Protocol string `json:"protocol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Protocol == "" {
		writeBadRequest(w, "protocol is required")
		return
	}

	result, err := s.pairing.Start(r.Context(), id, req.Protocol)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// AirPlay often pairs without a PIN, so the session can complete here.
	if result.Outcome == atv.OutcomeCompleted {
		s.publishDeviceEvent(id, "paired")
	}
	writeOK(w, http.StatusOK, result)
}

// handlePairPin submits the on-screen PIN for the active session.
// The PIN itself is never logged.
func (s *Server) handlePairPin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Pin = strings.TrimSpace(req.Pin)
	if req.Pin == "" {
		writeBadRequest(w, "pin is required")
		return
	}

	if err := s.pairing.SubmitPin(r.Context(), id, req.Pin); err != nil {
		writeDomainError(w, err)
		return
	}

	s.publishDeviceEvent(id, "paired")
	writeOK(w, http.StatusOK, map[string]any{
		"status":  "COMPLETED",
		"message": "Pairing completed",
	})
}
