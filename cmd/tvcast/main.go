// tvcast - Apple TV casting backend
//
// This is the main entry point for the tvcast daemon. It discovers Apple TV
// devices on the local network, manages pairing credentials, and dispatches
// media URLs and app deep links to the devices over a REST + WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/tvcastd/tvcast/migrations"

	"github.com/tvcastd/tvcast/internal/activity"
	"github.com/tvcastd/tvcast/internal/api"
	"github.com/tvcastd/tvcast/internal/atv"
	"github.com/tvcastd/tvcast/internal/dispatch"
	"github.com/tvcastd/tvcast/internal/infrastructure/config"
	"github.com/tvcastd/tvcast/internal/infrastructure/database"
	"github.com/tvcastd/tvcast/internal/infrastructure/influxdb"
	"github.com/tvcastd/tvcast/internal/infrastructure/logging"
	"github.com/tvcastd/tvcast/internal/infrastructure/mqtt"
	"github.com/tvcastd/tvcast/internal/pairing"
	"github.com/tvcastd/tvcast/internal/store"
	"github.com/tvcastd/tvcast/internal/stream"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting tvcast",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if configPath != "" {
		log.Info("configuration loaded", "path", configPath)
	} else {
		log.Info("no config file found, using defaults")
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := store.NewSQLiteRepository(db.DB)

	// Device discovery and control go through pyatv's atvremote binary
	scanner := atv.NewMDNSScanner(time.Duration(cfg.ATV.ScanTimeout) * time.Second)
	bridge := atv.NewExecBridge(
		cfg.ATV.Binary,
		time.Duration(cfg.ATV.PairTimeout)*time.Second,
		time.Duration(cfg.ATV.CommandTimeout)*time.Second,
		log,
	)

	pairMgr := pairing.NewManager(repo, bridge, log)
	defer pairMgr.Shutdown()

	resolver := stream.NewYtdlpResolver(
		cfg.Stream.YtdlpBinary,
		time.Duration(cfg.Stream.ResolveTimeout)*time.Second,
	)
	streams := stream.NewService(cfg.Stream, resolver, log)
	defer func() {
		log.Info("closing stream service")
		streams.Close()
	}()

	activityLog := activity.NewLog(cfg.Activity.Capacity)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Host, cfg.MQTT.Port),
			"client_id", cfg.MQTT.ClientID,
		)

		// Mirror dispatch activity onto the broker for external consumers
		topics := mqtt.Topics{}
		activityLog.Subscribe(func(entry activity.Entry) {
			if pubErr := mqttClient.PublishJSON(topics.Activity(), entry); pubErr != nil {
				log.Warn("publishing activity to MQTT", "error", pubErr)
			}
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var metrics dispatch.MetricsRecorder
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(writeErr error) {
			log.Error("InfluxDB write error", "error", writeErr)
		})
		metrics = influxClient
	}

	orchestrator := dispatch.NewOrchestrator(
		repo,
		bridge,
		streams,
		resolver,
		dispatch.NewClassifier(cfg.Stream.DeepLinkDomains),
		activityLog,
		metrics,
		log,
	)
	if len(cfg.Stream.PlayerApps) > 0 {
		apps := make([]dispatch.PlayerApp, 0, len(cfg.Stream.PlayerApps))
		for _, a := range cfg.Stream.PlayerApps {
			apps = append(apps, dispatch.PlayerApp{
				Name:    a.Name,
				Scheme:  a.Scheme,
				Action:  a.Action,
				HLSOnly: a.HLSOnly,
			})
		}
		orchestrator.SetPlayerApps(apps)
	}

	apiDeps := api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Repo:     repo,
		Scanner:  scanner,
		Pairing:  pairMgr,
		Dispatch: orchestrator,
		Activity: activityLog,
		Streams:  streams,
		Version:  version,
	}
	if influxClient != nil && influxClient.IsConnected() {
		apiDeps.Metrics = influxClient
	}
	if mqttClient != nil {
		apiDeps.Events = mqttClient
	}

	server, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"host", cfg.API.Host,
		"port", cfg.API.Port,
		"tls", cfg.API.TLS.Enabled,
	)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Stream service
	// 5. Pairing manager
	// 6. Database

	log.Info("tvcast stopped")
	return nil
}

// loadConfig resolves the configuration for this run.
//
// TVCAST_CONFIG takes precedence; otherwise the default path is used when
// it exists. With no file at all, built-in defaults plus environment
// overrides apply, which keeps bare `go run` working out of the box.
func loadConfig() (*config.Config, string, error) {
	if path := os.Getenv("TVCAST_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, loadErr := config.Load(defaultConfigPath)
		return cfg, defaultConfigPath, loadErr
	}

	cfg, err := config.Default()
	return cfg, "", err
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when those integrations
// are disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
