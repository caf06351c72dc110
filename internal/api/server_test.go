package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tvcastd/tvcast/internal/activity"
	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/dispatch"
	"github.com/tvcastd/tvcast/internal/infrastructure/config"
	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
	"github.com/tvcastd/tvcast/internal/pairing"
	"github.com/tvcastd/tvcast/internal/store"
	"github.com/tvcastd/tvcast/internal/stream"
)

// ─── Test doubles ──────────────────────────────────────────────────

type stubScanner struct {
	devices  []atv.DiscoveredDevice
	scanErr  error
	probe    []atv.Protocol
	probeErr error
}

func (s *stubScanner) Scan(_ context.Context) ([]atv.DiscoveredDevice, error) {
	return s.devices, s.scanErr
}

func (s *stubScanner) Probe(_ context.Context, _ string) ([]atv.Protocol, error) {
	return s.probe, s.probeErr
}

type stubHandshake struct {
	outcome     atv.PairingOutcome
	credentials string
	pinErr      error
	closed      bool
}

func (h *stubHandshake) Outcome() atv.PairingOutcome { return h.outcome }
func (h *stubHandshake) Credentials() string         { return h.credentials }
func (h *stubHandshake) Close() error                { h.closed = true; return nil }

func (h *stubHandshake) SubmitPin(_ context.Context, _ string) (string, error) {
	if h.pinErr != nil {
		return "", h.pinErr
	}
	return h.credentials, nil
}

type stubPairer struct {
	handshake *stubHandshake
	err       error
}

func (p *stubPairer) BeginPairing(_ context.Context, _ string, _ atv.Protocol) (atv.Handshake, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.handshake, nil
}

type stubController struct {
	played   []string
	launched []string
	stops    int
	playErr  error
}

func (c *stubController) PlayURL(_ context.Context, _, _, url string) error {
	c.played = append(c.played, url)
	return c.playErr
}

func (c *stubController) LaunchApp(_ context.Context, _, _, link string) error {
	c.launched = append(c.launched, link)
	return nil
}

func (c *stubController) Stop(_ context.Context, _, _ string) error {
	c.stops++
	return nil
}

type stubResolver struct {
	single *stream.Resolved
	err    error
}

func (r *stubResolver) ResolveSingle(_ context.Context, _, _ string) (*stream.Resolved, error) {
	return r.single, r.err
}

func (r *stubResolver) ResolveSplit(_ context.Context, _, _ string) (*stream.SplitStreams, error) {
	return nil, stream.ErrResolveFailed
}

type stubScanRecorder struct {
	counts []int
}

func (r *stubScanRecorder) RecordScan(deviceCount int, _ time.Duration) {
	r.counts = append(r.counts, deviceCount)
}

type stubEventPublisher struct {
	events []string // "deviceID:event"
	err    error
}

func (p *stubEventPublisher) PublishDeviceEvent(deviceID, event string) error {
	p.events = append(p.events, deviceID+":"+event)
	return p.err
}

// envelope mirrors the response wrapper for assertions.
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *Error          `json:"error"`
}

// ─── Harness ───────────────────────────────────────────────────────

type harness struct {
	srv        *Server
	router     http.Handler
	repo       store.Repository
	scanner    *stubScanner
	pairer     *stubPairer
	controller *stubController
	streams    *stream.Service
	log        *activity.Log
	recorder   *stubScanRecorder
	publisher  *stubEventPublisher
}

// setupTestDB creates an in-memory database with the schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	schema := `
		CREATE TABLE devices (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			address     TEXT NOT NULL,
			protocols   TEXT NOT NULL DEFAULT '[]',
			credentials TEXT NOT NULL DEFAULT '{}',
			created_at  TEXT NOT NULL,
			last_seen   TEXT
		);
		CREATE TABLE default_device (
			row_id    INTEGER PRIMARY KEY CHECK (row_id = 1),
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE
		);`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

func newTestServer(t *testing.T) *harness {
	t.Helper()

	repo := store.NewSQLiteRepository(setupTestDB(t))
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	h := &harness{
		repo:       repo,
		scanner:    &stubScanner{},
		pairer:     &stubPairer{},
		controller: &stubController{},
		log:        activity.NewLog(20),
		recorder:   &stubScanRecorder{},
		publisher:  &stubEventPublisher{},
	}

	streamCfg := config.StreamConfig{
		BaseURL:        "http://127.0.0.1:8090",
		FFmpegBinary:   "echo",
		SessionTTL:     60,
		PrewarmBytes:   1,
		PrewarmTimeout: 5,
	}
	h.streams = stream.NewService(streamCfg, &stubResolver{}, logger)
	t.Cleanup(h.streams.Close)

	orch := dispatch.NewOrchestrator(
		repo,
		h.controller,
		h.streams,
		&stubResolver{single: &stream.Resolved{URL: "https://cdn.example.com/resolved.mp4"}},
		dispatch.NewClassifier([]string{"netflix.com"}),
		h.log,
		nil,
		logger,
	)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read: 5,
				Idle: 5,
			},
		},
		Logger:   logger,
		Repo:     repo,
		Scanner:  h.scanner,
		Pairing:  pairing.NewManager(repo, h.pairer, logger),
		Dispatch: orch,
		Activity: h.log,
		Streams:  h.streams,
		Metrics:  h.recorder,
		Events:   h.publisher,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(logger)
	go srv.hub.Run(context.Background())

	h.srv = srv
	h.router = srv.buildRouter()
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v; body: %s", err, w.Body.String())
	}
	return env
}

func (h *harness) seedDevice(t *testing.T, creds map[atv.Protocol]string, makeDefault bool) {
	t.Helper()
	ctx := context.Background()

	dev := &store.Device{
		ID:        "atv-1",
		Name:      "Living Room",
		Address:   "10.0.0.5",
		Protocols: []atv.Protocol{atv.ProtocolAirPlay, atv.ProtocolCompanion},
	}
	if err := h.repo.Upsert(ctx, dev); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
	for p, c := range creds {
		if err := h.repo.SetCredential(ctx, dev.ID, p, c); err != nil {
			t.Fatalf("seeding credential: %v", err)
		}
	}
	if makeDefault {
		if err := h.repo.SetDefault(ctx, dev.ID); err != nil {
			t.Fatalf("seeding default: %v", err)
		}
	}
}

// ─── Health and middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health body = %v", resp)
	}
}

func TestRequestID_Generated(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodGet, "/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q", got)
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodGet, "/api/appletv/devices", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	if !env.OK {
		t.Fatal("envelope ok = false")
	}

	var data struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Count != 0 {
		t.Errorf("count = %d, want 0", data.Count)
	}
}

func TestScan_PersistsDevices(t *testing.T) {
	h := newTestServer(t)
	h.scanner.devices = []atv.DiscoveredDevice{
		{ID: "aabbcc", Name: "Living Room", Address: "10.0.0.5", Protocols: []atv.Protocol{atv.ProtocolAirPlay}},
		{ID: "ddeeff", Name: "Bedroom", Address: "10.0.0.6", Protocols: []atv.Protocol{atv.ProtocolAirPlay, atv.ProtocolCompanion}},
	}

	w := h.do(t, http.MethodGet, "/api/appletv/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	dev, err := h.repo.GetByID(context.Background(), "aabbcc")
	if err != nil {
		t.Fatalf("scanned device not persisted: %v", err)
	}
	if dev.LastSeen == nil {
		t.Error("last_seen not stamped by scan")
	}
	if dev.IsPaired() {
		t.Error("fresh device reported as paired")
	}
}

func TestAddDevice_UnreachableAssumesProtocols(t *testing.T) {
	h := newTestServer(t)
	h.scanner.probeErr = atv.ErrUnreachable

	w := h.do(t, http.MethodPost, "/api/appletv/add", `{"address":"10.0.0.9","name":"Office"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var view deviceView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if len(view.Protocols) != 2 {
		t.Errorf("assumed protocols = %v, want airplay+companion", view.Protocols)
	}
	if view.LastSeen != nil {
		t.Error("unreachable device should have no last_seen")
	}
}

func TestUpdateDevice_Unknown(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodPatch, "/api/appletv/devices/ghost", `{"name":"x"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	env := decodeEnvelope(t, w)
	if env.OK || env.Error == nil || env.Error.Code != ErrCodeUnknownDevice {
		t.Errorf("envelope = %+v, want UNKNOWN_DEVICE", env)
	}
}

func TestDeleteDevice_ClearsDefault(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, nil, true)

	w := h.do(t, http.MethodDelete, "/api/appletv/devices/atv-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d; body: %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodGet, "/api/appletv/default", "")
	env := decodeEnvelope(t, w)

	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if id, present := data["device_id"]; !present || id != nil {
		t.Errorf("default after delete = %v, want null device_id", data)
	}
}

func TestSetDefault_Unknown(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodPost, "/api/appletv/default", `{"device_id":"ghost"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != ErrCodeUnknownDevice {
		t.Errorf("error = %+v, want UNKNOWN_DEVICE", env.Error)
	}
}

// ─── Pairing ───────────────────────────────────────────────────────

func TestPairFlow_PinRequired(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, nil, false)
	h.pairer.handshake = &stubHandshake{
		outcome:     atv.OutcomePinRequired,
		credentials: "cred-blob",
	}

	w := h.do(t, http.MethodPost, "/api/appletv/atv-1/pair/start", `{"protocol":"airplay"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d; body: %s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var start struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &start); err != nil {
		t.Fatalf("unmarshal start: %v", err)
	}
	if start.Status != string(atv.OutcomePinRequired) {
		t.Errorf("start status = %q, want PIN_REQUIRED", start.Status)
	}

	w = h.do(t, http.MethodPost, "/api/appletv/atv-1/pair/pin", `{"pin":"1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pin status = %d; body: %s", w.Code, w.Body.String())
	}

	dev, err := h.repo.GetByID(context.Background(), "atv-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if cred, ok := dev.Credential(atv.ProtocolAirPlay); !ok || cred != "cred-blob" {
		t.Errorf("credential after pairing = %q, %v", cred, ok)
	}
}

func TestPairPin_NoSession(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, nil, false)

	w := h.do(t, http.MethodPost, "/api/appletv/atv-1/pair/pin", `{"pin":"1234"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != ErrCodeNoActivePairing {
		t.Errorf("error = %+v, want NO_ACTIVE_PAIRING", env.Error)
	}
}

func TestPairStart_UnsupportedProtocol(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, nil, false)

	w := h.do(t, http.MethodPost, "/api/appletv/atv-1/pair/start", `{"protocol":"bluetooth"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != ErrCodeUnsupportedProtocol {
		t.Errorf("error = %+v, want UNSUPPORTED_PROTOCOL", env.Error)
	}
}

// ─── Dispatch ──────────────────────────────────────────────────────

func TestPlay_DirectMedia(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, map[atv.Protocol]string{atv.ProtocolAirPlay: "blob"}, true)

	w := h.do(t, http.MethodPost, "/api/appletv/play", `{"url":"https://cdn.example.com/movie.mp4"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	env := decodeEnvelope(t, w)
	var result dispatch.PlayResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Method != dispatch.MethodAirPlay {
		t.Errorf("method = %q, want airplay", result.Method)
	}
	if len(h.controller.played) != 1 {
		t.Errorf("PlayURL calls = %d, want 1", len(h.controller.played))
	}
}

func TestPlay_NoDefaultDevice(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodPost, "/api/appletv/play", `{"url":"https://cdn.example.com/movie.mp4"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != ErrCodeNoDefaultDevice {
		t.Errorf("error = %+v, want NO_DEFAULT_DEVICE", env.Error)
	}
}

func TestPlay_ProtocolNotPaired(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, map[atv.Protocol]string{atv.ProtocolAirPlay: "blob"}, true)

	w := h.do(t, http.MethodPost, "/api/appletv/play", `{"url":"https://www.netflix.com/title/1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body: %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != ErrCodeProtocolNotPaired {
		t.Errorf("error = %+v, want PROTOCOL_NOT_PAIRED", env.Error)
	}
	if !strings.Contains(env.Error.Message, "companion") {
		t.Errorf("message %q should name the missing protocol", env.Error.Message)
	}
}

func TestStop(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, map[atv.Protocol]string{atv.ProtocolCompanion: "blob"}, true)

	w := h.do(t, http.MethodPost, "/api/appletv/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if h.controller.stops != 1 {
		t.Errorf("stops = %d, want 1", h.controller.stops)
	}
}

func TestActivity_LogsPlay(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, map[atv.Protocol]string{atv.ProtocolAirPlay: "blob"}, true)

	h.do(t, http.MethodPost, "/api/appletv/play", `{"url":"https://cdn.example.com/movie.mp4"}`)

	w := h.do(t, http.MethodGet, "/api/appletv/activity?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	env := decodeEnvelope(t, w)
	var data struct {
		Activity []activity.Entry `json:"activity"`
		Count    int              `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Count != 2 {
		t.Fatalf("count = %d, want start+success", data.Count)
	}
	if data.Activity[0].Status != activity.StatusSuccess {
		t.Errorf("newest entry status = %q, want success", data.Activity[0].Status)
	}
}

func TestActivity_BadLimit(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodGet, "/api/appletv/activity?limit=banana", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// ─── Stream serving ────────────────────────────────────────────────

func TestStream_NotFound(t *testing.T) {
	h := newTestServer(t)

	w := h.do(t, http.MethodGet, "/api/appletv/stream/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want not_found", env.Error)
	}
}

func TestStream_ServesJobOutput(t *testing.T) {
	h := newTestServer(t)

	// FFmpegBinary is echo, so the job emits its argument line and exits.
	job := h.streams.CreateRemux("http://example.com/master.m3u8")
	if err := h.streams.WaitReady(context.Background(), job); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}

	w := h.do(t, http.MethodGet, "/api/appletv/stream/"+job.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", got)
	}
	if w.Body.Len() == 0 {
		t.Error("stream body empty, want transform output")
	}
}

func TestScan_RecordsMetric(t *testing.T) {
	h := newTestServer(t)
	h.scanner.devices = []atv.DiscoveredDevice{
		{ID: "aabbcc", Name: "Living Room", Address: "10.0.0.5", Protocols: []atv.Protocol{atv.ProtocolAirPlay}},
		{ID: "ddeeff", Name: "Bedroom", Address: "10.0.0.6", Protocols: []atv.Protocol{atv.ProtocolAirPlay}},
	}

	w := h.do(t, http.MethodGet, "/api/appletv/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}

	if len(h.recorder.counts) != 1 || h.recorder.counts[0] != 2 {
		t.Errorf("recorded scan counts = %v, want [2]", h.recorder.counts)
	}
}

func TestDeviceEvents_Published(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, nil, false)

	w := h.do(t, http.MethodPost, "/api/appletv/default", `{"device_id":"atv-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set default status = %d; body: %s", w.Code, w.Body.String())
	}

	w = h.do(t, http.MethodDelete, "/api/appletv/devices/atv-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d; body: %s", w.Code, w.Body.String())
	}

	want := []string{"atv-1:default_changed", "atv-1:removed"}
	if len(h.publisher.events) != len(want) {
		t.Fatalf("events = %v, want %v", h.publisher.events, want)
	}
	for i, e := range want {
		if h.publisher.events[i] != e {
			t.Errorf("event %d = %q, want %q", i, h.publisher.events[i], e)
		}
	}
}

func TestPairPin_PublishesPairedEvent(t *testing.T) {
	h := newTestServer(t)
	h.seedDevice(t, nil, false)
	h.pairer.handshake = &stubHandshake{
		outcome:     atv.OutcomePinRequired,
		credentials: "cred-blob",
	}

	w := h.do(t, http.MethodPost, "/api/appletv/atv-1/pair/start", `{"protocol":"airplay"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d; body: %s", w.Code, w.Body.String())
	}
	if len(h.publisher.events) != 0 {
		t.Fatalf("events after PIN_REQUIRED start = %v, want none yet", h.publisher.events)
	}

	w = h.do(t, http.MethodPost, "/api/appletv/atv-1/pair/pin", `{"pin":"1234"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pin status = %d; body: %s", w.Code, w.Body.String())
	}

	if len(h.publisher.events) != 1 || h.publisher.events[0] != "atv-1:paired" {
		t.Errorf("events = %v, want [atv-1:paired]", h.publisher.events)
	}
}
