package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for tvcast.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	ATV      ATVConfig      `yaml:"atv"`
	Stream   StreamConfig   `yaml:"stream"`
	Activity ActivityConfig `yaml:"activity"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// ServiceConfig contains instance-level information.
type ServiceConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
//
// Write deliberately defaults to zero (unlimited): the stream endpoint
// serves long-running chunked responses that the Apple TV pulls for the
// duration of playback.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ATVConfig contains settings for talking to Apple TV devices.
type ATVConfig struct {
	// Binary is the path to the atvremote executable (pyatv CLI).
	// Pairing handshakes and playback commands are driven through it.
	Binary string `yaml:"binary"`

	// ScanTimeout bounds an mDNS discovery sweep (seconds).
	ScanTimeout int `yaml:"scan_timeout"`

	// PairTimeout bounds a single pairing handshake, including the time
	// the user needs to read the PIN off the TV (seconds).
	PairTimeout int `yaml:"pair_timeout"`

	// CommandTimeout bounds play/launch/stop commands (seconds).
	CommandTimeout int `yaml:"command_timeout"`
}

// StreamConfig contains stream transform and URL classification settings.
type StreamConfig struct {
	// BaseURL is the externally reachable address of this server's HTTP
	// surface. The Apple TV fetches prepared streams from here directly,
	// so it must resolve from the device's network, not from localhost.
	BaseURL string `yaml:"base_url"`

	// FFmpegBinary is the path to ffmpeg, used for merge/remux jobs.
	FFmpegBinary string `yaml:"ffmpeg_binary"`

	// YtdlpBinary is the path to yt-dlp, used to resolve page URLs
	// (YouTube etc.) to direct stream URLs.
	YtdlpBinary string `yaml:"ytdlp_binary"`

	// ResolveTimeout bounds a yt-dlp URL resolution (seconds).
	ResolveTimeout int `yaml:"resolve_timeout"`

	// SessionTTL is how long a prepared stream job stays servable (seconds).
	SessionTTL int `yaml:"session_ttl"`

	// PrewarmBytes is how much output must be buffered before a merge job
	// is considered ready to hand to the device.
	PrewarmBytes int `yaml:"prewarm_bytes"`

	// PrewarmTimeout bounds the readiness wait (seconds).
	PrewarmTimeout int `yaml:"prewarm_timeout"`

	// DeepLinkDomains is the allow-list of domains dispatched as app deep
	// links rather than media playback.
	DeepLinkDomains []string `yaml:"deep_link_domains"`

	// PlayerApps are third-party player apps offered direct media before
	// AirPlay, tried in order over their x-callback-url schemes.
	PlayerApps []PlayerAppConfig `yaml:"player_apps"`
}

// PlayerAppConfig describes one x-callback-url player app.
type PlayerAppConfig struct {
	Name    string `yaml:"name"`
	Scheme  string `yaml:"scheme"`
	Action  string `yaml:"action"`
	HLSOnly bool   `yaml:"hls_only"`
}

// ActivityConfig contains activity log settings.
type ActivityConfig struct {
	// Capacity is the maximum number of retained entries; oldest are evicted.
	Capacity int `yaml:"capacity"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains optional MQTT event announcement settings.
// When enabled, dispatch and pairing events are published for
// home-automation integrations (Home Assistant etc.).
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// InfluxDBConfig contains optional dispatch metrics settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: TVCAST_SECTION_KEY
// For example: TVCAST_DATABASE_PATH, TVCAST_STREAM_BASE_URL
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied and validated. Used when no config file is present; a missing
// file is not an error for a single-binary deployment.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "tvcast",
		},
		Database: DatabaseConfig{
			Path:        "./data/tvcast.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read: 30,
				Idle: 60,
			},
		},
		ATV: ATVConfig{
			Binary:         "atvremote",
			ScanTimeout:    5,
			PairTimeout:    90,
			CommandTimeout: 30,
		},
		Stream: StreamConfig{
			BaseURL:        "http://localhost:8090",
			FFmpegBinary:   "ffmpeg",
			YtdlpBinary:    "yt-dlp",
			ResolveTimeout: 30,
			SessionTTL:     3600,
			PrewarmBytes:   65536,
			PrewarmTimeout: 15,
			DeepLinkDomains: []string{
				"netflix.com",
				"disneyplus.com",
				"hbomax.com",
				"max.com",
				"tv.apple.com",
				"hulu.com",
			},
			PlayerApps: []PlayerAppConfig{
				{Name: "VidHub", Scheme: "open-vidhub", Action: "open", HLSOnly: true},
				{Name: "Infuse", Scheme: "infuse", Action: "play"},
			},
		},
		Activity: ActivityConfig{
			Capacity: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "tvcast",
			QoS:      1,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: TVCAST_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("TVCAST_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("TVCAST_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("TVCAST_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Stream serving address the Apple TV uses to reach us; set per host.
	if v := os.Getenv("TVCAST_STREAM_BASE_URL"); v != "" {
		cfg.Stream.BaseURL = v
	}

	// ATV
	if v := os.Getenv("TVCAST_ATV_BINARY"); v != "" {
		cfg.ATV.Binary = v
	}

	// MQTT
	if v := os.Getenv("TVCAST_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("TVCAST_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("TVCAST_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	// InfluxDB
	if v := os.Getenv("TVCAST_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// The Apple TV pulls prepared streams from base_url directly, so it
	// must be an absolute http(s) URL; a bad value fails every transform.
	if c.Stream.BaseURL == "" {
		errs = append(errs, "stream.base_url is required (set TVCAST_STREAM_BASE_URL to an address reachable from the Apple TV)")
	} else if u, err := url.Parse(c.Stream.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, "stream.base_url must be an absolute http(s) URL")
	}

	if c.ATV.Binary == "" {
		errs = append(errs, "atv.binary is required")
	}

	if c.Activity.Capacity < 1 {
		errs = append(errs, "activity.capacity must be at least 1")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required when mqtt.enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb.enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb.enabled (set TVCAST_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
// Zero means no write timeout (required for long-lived stream responses).
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetScanTimeout returns the discovery sweep bound as a Duration.
func (c *ATVConfig) GetScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeout) * time.Second
}

// GetPairTimeout returns the pairing handshake bound as a Duration.
func (c *ATVConfig) GetPairTimeout() time.Duration {
	return time.Duration(c.PairTimeout) * time.Second
}

// GetCommandTimeout returns the playback command bound as a Duration.
func (c *ATVConfig) GetCommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeout) * time.Second
}

// GetSessionTTL returns the stream job lifetime as a Duration.
func (c *StreamConfig) GetSessionTTL() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

// GetPrewarmTimeout returns the readiness wait bound as a Duration.
func (c *StreamConfig) GetPrewarmTimeout() time.Duration {
	return time.Duration(c.PrewarmTimeout) * time.Second
}

// GetResolveTimeout returns the yt-dlp resolution bound as a Duration.
func (c *StreamConfig) GetResolveTimeout() time.Duration {
	return time.Duration(c.ResolveTimeout) * time.Second
}
