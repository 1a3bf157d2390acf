package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the show core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation this core drives.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// PlaybackConfig contains the timing parameters of the execution core.
type PlaybackConfig struct {
	// TickIntervalMS is the cadence of the scheduler's master loop.
	TickIntervalMS int `yaml:"tick_interval_ms"`

	// EndCheckIntervalMS is how often each executor polls for natural end.
	EndCheckIntervalMS int `yaml:"end_check_interval_ms"`

	// StartGuardTimeoutMS bounds the wait for a timing source to start advancing.
	StartGuardTimeoutMS int `yaml:"start_guard_timeout_ms"`

	// StartGuardPollMS is the sleep between position checks during the start guard.
	StartGuardPollMS int `yaml:"start_guard_poll_ms"`

	// DefaultCaching selects the caching sequence context for API-created sequences.
	DefaultCaching bool `yaml:"default_caching"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// SessionRetentionDays prunes finished session records older than this.
	// Zero keeps them forever.
	SessionRetentionDays int `yaml:"session_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// LoadEnvFile loads KEY=VALUE pairs from dotenv files into the process
// environment so they are picked up by the SHOWCORE_* overrides in Load.
// Variables already present in the environment win. A missing file is not an
// error; with no paths, ".env" is used.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHOWCORE_SECTION_KEY
// For example: SHOWCORE_DATABASE_PATH, SHOWCORE_API_PORT
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

// Default returns the built-in configuration, with environment overrides
// applied. Used when no config file is present.
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
		Site: SiteConfig{
			ID:   "show-001",
			Name: "Gray Logic Show",
		},
		Playback: PlaybackConfig{
			TickIntervalMS:      25,
			EndCheckIntervalMS:  10,
			StartGuardTimeoutMS: 500,
			StartGuardPollMS:    1,
		},
		Database: DatabaseConfig{
			Path:                 "./data/showcore.db",
			WALMode:              true,
			BusyTimeout:          5,
			SessionRetentionDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "showcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOWCORE_SITE_ID"); v != "" {
		cfg.Site.ID = v
	}
	if v := os.Getenv("SHOWCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Playback
	if n, ok := envInt("SHOWCORE_PLAYBACK_TICK_INTERVAL_MS"); ok {
		cfg.Playback.TickIntervalMS = n
	}
	if n, ok := envInt("SHOWCORE_PLAYBACK_START_GUARD_TIMEOUT_MS"); ok {
		cfg.Playback.StartGuardTimeoutMS = n
	}

	// MQTT
	if v := os.Getenv("SHOWCORE_MQTT_ENABLED"); v != "" {
		cfg.MQTT.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("SHOWCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHOWCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHOWCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SHOWCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if n, ok := envInt("SHOWCORE_API_PORT"); ok {
		cfg.API.Port = n
	}

	// InfluxDB
	if v := os.Getenv("SHOWCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("SHOWCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envInt reads an integer environment variable. Unset or malformed values are ignored.
func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.SessionRetentionDays < 0 {
		errs = append(errs, "database.session_retention_days must not be negative")
	}

	// Playback validation
	if c.Playback.TickIntervalMS <= 0 {
		errs = append(errs, "playback.tick_interval_ms must be positive")
	}
	if c.Playback.EndCheckIntervalMS <= 0 {
		errs = append(errs, "playback.end_check_interval_ms must be positive")
	}
	if c.Playback.StartGuardPollMS <= 0 {
		errs = append(errs, "playback.start_guard_poll_ms must be positive")
	}
	if c.Playback.StartGuardTimeoutMS < c.Playback.StartGuardPollMS {
		errs = append(errs, "playback.start_guard_timeout_ms must not be less than start_guard_poll_ms")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TickInterval returns the scheduler cadence as a Duration.
func (p PlaybackConfig) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMS) * time.Millisecond
}

// EndCheckInterval returns the natural-end poll interval as a Duration.
func (p PlaybackConfig) EndCheckInterval() time.Duration {
	return time.Duration(p.EndCheckIntervalMS) * time.Millisecond
}

// StartGuardTimeout returns the maximum start-guard wait as a Duration.
func (p PlaybackConfig) StartGuardTimeout() time.Duration {
	return time.Duration(p.StartGuardTimeoutMS) * time.Millisecond
}

// StartGuardPoll returns the start-guard re-poll interval as a Duration.
func (p PlaybackConfig) StartGuardPoll() time.Duration {
	return time.Duration(p.StartGuardPollMS) * time.Millisecond
}

// SessionRetention returns the session history retention as a Duration.
// Zero means keep forever.
func (d DatabaseConfig) SessionRetention() time.Duration {
	return time.Duration(d.SessionRetentionDays) * 24 * time.Hour
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
