// Package api provides the HTTP REST API and WebSocket server for tvcast.
//
// It exposes device discovery, pairing, dispatch, and the device-facing
// stream endpoint to user interfaces, plus a WebSocket activity feed.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tvcastd/tvcast/internal/activity"
	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/dispatch"
	"github.com/tvcastd/tvcast/internal/infrastructure/config"
	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
	"github.com/tvcastd/tvcast/internal/pairing"
	"github.com/tvcastd/tvcast/internal/store"
	"github.com/tvcastd/tvcast/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ScanRecorder receives one measurement per discovery sweep.
// Implemented by influxdb.Client.
type ScanRecorder interface {
	RecordScan(deviceCount int, duration time.Duration)
}

// EventPublisher announces device lifecycle changes (paired, removed,
// default changed) to external integrations. Implemented by mqtt.Client.
type EventPublisher interface {
	PublishDeviceEvent(deviceID, event string) error
}

// Deps holds the dependencies required by the API server.
// Metrics and Events are optional; nil disables them.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Repo     store.Repository
	Scanner  atv.Scanner
	Pairing  *pairing.Manager
	Dispatch *dispatch.Orchestrator
	Activity *activity.Log
	Streams  *stream.Service
	Metrics  ScanRecorder
	Events   EventPublisher
	Version  string
}

// Server is the HTTP API server for tvcast.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	repo     store.Repository
	scanner  atv.Scanner
	pairing  *pairing.Manager
	dispatch *dispatch.Orchestrator
	activity *activity.Log
	streams  *stream.Service
	metrics  ScanRecorder
	events   EventPublisher
	version  string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Dispatch == nil {
		return nil, fmt.Errorf("dispatch orchestrator is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		repo:     deps.Repo,
		scanner:  deps.Scanner,
		pairing:  deps.Pairing,
		dispatch: deps.Dispatch,
		activity: deps.Activity,
		streams:  deps.Streams,
		metrics:  deps.Metrics,
		events:   deps.Events,
		version:  deps.Version,
	}, nil
}

// publishDeviceEvent announces a lifecycle change when an event
// publisher is wired. Failures are logged, never surfaced to the caller.
func (s *Server) publishDeviceEvent(deviceID, event string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishDeviceEvent(deviceID, event); err != nil {
		s.logger.Warn("device event publish failed",
			"device_id", deviceID, "event", event, "error", err)
	}
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes it to the activity log, and
// launches the HTTP listener in a background goroutine. The server is
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)

	// Relay every activity entry to connected WebSocket clients.
	if s.activity != nil {
		s.activity.Subscribe(func(entry activity.Entry) {
			s.hub.Broadcast("activity", entry)
		})
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		// WriteTimeout stays at the configured value, zero by default:
		// the stream endpoint serves chunked output for as long as the
		// device keeps playing.
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
