package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tvcastd/tvcast/internal/dispatch"
	"github.com/tvcastd/tvcast/internal/stream"
)

// handlePlay dispatches a URL to a device.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		DeviceID string `json:"device_id"`
		Quality  string `json:"quality"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.dispatch.Play(r.Context(), dispatch.PlayRequest{
		URL:      req.URL,
		DeviceID: req.DeviceID,
		Quality:  req.Quality,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeOK(w, http.StatusOK, result)
}

// handleStop halts playback on the default device.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatch.Stop(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"stopped": true})
}

// handleActivity returns recent dispatch activity, newest first.
// The limit parameter is capped by what the ring retains.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := s.activity.List(limit)
	writeOK(w, http.StatusOK, map[string]any{"activity": entries, "count": len(entries)})
}

// handleStream serves a prepared stream job as chunked fragmented MP4.
//
// This endpoint is consumed by the Apple TV, not by UIs: dispatch hands
// the device a URL pointing here and the device pulls for the duration
// of playback. The response has no content length; it ends when the
// transform finishes or the device disconnects.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := s.streams.Get(id)
	if err != nil {
		if errors.Is(err, stream.ErrJobNotFound) {
			writeNotFound(w, "stream not found or expired")
			return
		}
		writeInternalError(w, "failed to load stream")
		return
	}

	if job.State() == stream.StateFailed {
		writeError(w, http.StatusBadGateway, ErrCodeTransformFailed, "stream transform failed")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			// Device went away; the job janitor reclaims the transform.
			return
		case chunk, ok := <-job.Chunks():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
	}
}
