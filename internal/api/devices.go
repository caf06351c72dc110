package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/store"
)

// deviceView is the wire representation of a device. Credentials never
// appear here; pairing state is exposed only as booleans and protocol
// names.
type deviceView struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Address         string         `json:"address"`
	Protocols       []atv.Protocol `json:"protocols"`
	PairedProtocols []atv.Protocol `json:"paired_protocols"`
	IsPaired        bool           `json:"is_paired"`
	IsDefault       bool           `json:"is_default"`
	CreatedAt       time.Time      `json:"created_at"`
	LastSeen        *time.Time     `json:"last_seen,omitempty"`
}

func newDeviceView(d *store.Device, defaultID string) deviceView {
	return deviceView{
		ID:              d.ID,
		Name:            d.Name,
		Address:         d.Address,
		Protocols:       d.Protocols,
		PairedProtocols: d.PairedProtocols(),
		IsPaired:        d.IsPaired(),
		IsDefault:       d.ID == defaultID,
		CreatedAt:       d.CreatedAt,
		LastSeen:        d.LastSeen,
	}
}

// defaultDeviceID returns the current default device ID, or empty.
func (s *Server) defaultDeviceID(r *http.Request) string {
	def, err := s.repo.GetDefault(r.Context())
	if err != nil {
		return ""
	}
	return def.ID
}

// handleScan sweeps the network and returns everything found.
// Discovered devices are upserted so last_seen stays current; stored
// credentials are never touched by a rescan.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	started := time.Now()
	discovered, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error("scan failed", "error", err)
		writeInternalError(w, "network scan failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordScan(len(discovered), time.Since(started))
	}

	now := time.Now().UTC()
	defaultID := s.defaultDeviceID(r)
	views := make([]deviceView, 0, len(discovered))

	for _, d := range discovered {
		dev := &store.Device{
			ID:        d.ID,
			Name:      d.Name,
			Address:   d.Address,
			Protocols: d.Protocols,
			LastSeen:  &now,
		}
		if err := s.repo.Upsert(ctx, dev); err != nil {
			s.logger.Warn("failed to persist discovered device", "device_id", d.ID, "error", err)
			continue
		}
		// Re-read to pick up credentials and created_at.
		stored, err := s.repo.GetByID(ctx, d.ID)
		if err != nil {
			continue
		}
		views = append(views, newDeviceView(stored, defaultID))
	}

	writeOK(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleListDevices returns all known devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.repo.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	defaultID := s.defaultDeviceID(r)
	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, newDeviceView(&devices[i], defaultID))
	}

	writeOK(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleAddDevice registers a device by address without a scan.
//
// The address is probed first; if nothing answers, the device is
// registered anyway with the protocols an Apple TV is assumed to
// advertise, so pre-provisioning an offline device works.
func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		writeBadRequest(w, "address is required")
		return
	}
	if req.Name == "" {
		req.Name = "Apple TV"
	}

	ctx := r.Context()
	var lastSeen *time.Time

	protocols, err := s.scanner.Probe(ctx, req.Address)
	switch {
	case err == nil:
		now := time.Now().UTC()
		lastSeen = &now
	case errors.Is(err, atv.ErrUnreachable):
		protocols = []atv.Protocol{atv.ProtocolAirPlay, atv.ProtocolCompanion}
	default:
		s.logger.Error("probe failed", "address", req.Address, "error", err)
		writeInternalError(w, "probe failed")
		return
	}

	dev := &store.Device{
		ID:        atv.FallbackID(req.Address, req.Name),
		Name:      req.Name,
		Address:   req.Address,
		Protocols: protocols,
		LastSeen:  lastSeen,
	}
	if err := s.repo.Upsert(ctx, dev); err != nil {
		writeInternalError(w, "failed to save device")
		return
	}

	stored, err := s.repo.GetByID(ctx, dev.ID)
	if err != nil {
		writeInternalError(w, "failed to save device")
		return
	}

	writeOK(w, http.StatusCreated, newDeviceView(stored, s.defaultDeviceID(r)))
}

// handleUpdateDevice renames or re-addresses a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Name    *string `json:"name"`
		Address *string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	name, address := existing.Name, existing.Address
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil && strings.TrimSpace(*req.Address) != "" {
		address = strings.TrimSpace(*req.Address)
	}

	if err := s.repo.UpdateDetails(ctx, id, name, address); err != nil {
		writeDomainError(w, err)
		return
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, http.StatusOK, newDeviceView(updated, s.defaultDeviceID(r)))
}

// handleDeleteDevice removes a device. Any pairing session in flight is
// cancelled and the default pointer is cleared if it referenced it.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.pairing != nil {
		s.pairing.Cancel(id)
	}

	if err := s.repo.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	s.publishDeviceEvent(id, "removed")
	writeOK(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleGetDefault returns the default dispatch target, or device_id
// null when none is set.
func (s *Server) handleGetDefault(w http.ResponseWriter, r *http.Request) {
	def, err := s.repo.GetDefault(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNoDefaultDevice) {
			writeOK(w, http.StatusOK, map[string]any{"device_id": nil})
			return
		}
		writeInternalError(w, "failed to load default device")
		return
	}

	writeOK(w, http.StatusOK, newDeviceView(def, def.ID))
}

// handleSetDefault points the default at a known device.
func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	if err := s.repo.SetDefault(r.Context(), req.DeviceID); err != nil {
		writeDomainError(w, err)
		return
	}

	s.publishDeviceEvent(req.DeviceID, "default_changed")
	writeOK(w, http.StatusOK, map[string]any{"device_id": req.DeviceID})
}
