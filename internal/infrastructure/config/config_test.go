package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-show"
playback:
  tick_interval_ms: 50
  end_check_interval_ms: 5
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: true
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  enabled: true
  host: "0.0.0.0"
  port: 8080
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-show" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-show")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT = %+v, want enabled on localhost", cfg.MQTT)
	}
	if cfg.Playback.TickInterval() != 50*time.Millisecond {
		t.Errorf("TickInterval() = %v, want 50ms", cfg.Playback.TickInterval())
	}
	if cfg.Playback.EndCheckInterval() != 5*time.Millisecond {
		t.Errorf("EndCheckInterval() = %v, want 5ms", cfg.Playback.EndCheckInterval())
	}
	// Unset values keep their defaults.
	if cfg.Playback.StartGuardTimeout() != 500*time.Millisecond {
		t.Errorf("StartGuardTimeout() = %v, want 500ms", cfg.Playback.StartGuardTimeout())
	}
}

// TestLoad_ShippedConfig keeps configs/config.yaml loadable.
func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(configs/config.yaml) error = %v", err)
	}
	if cfg.Playback.TickInterval() != 25*time.Millisecond {
		t.Errorf("TickInterval = %v, want 25ms", cfg.Playback.TickInterval())
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("optional backends should be disabled in the shipped config")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
site:
  id: ""
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHOWCORE_DATABASE_PATH", "/env/show.db")
	t.Setenv("SHOWCORE_PLAYBACK_TICK_INTERVAL_MS", "40")
	t.Setenv("SHOWCORE_MQTT_ENABLED", "true")
	t.Setenv("SHOWCORE_API_PORT", "not-a-number")

	cfg, err := Load(writeConfig(t, "site:\n  id: env-test\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/env/show.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/env/show.db")
	}
	if cfg.Playback.TickIntervalMS != 40 {
		t.Errorf("TickIntervalMS = %d, want 40", cfg.Playback.TickIntervalMS)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true")
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090 for malformed override", cfg.API.Port)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("SHOWCORE_TEST_ENVFILE=loaded\n"), 0600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SHOWCORE_TEST_ENVFILE") })

	if err := LoadEnvFile(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if got := os.Getenv("SHOWCORE_TEST_ENVFILE"); got != "loaded" {
		t.Errorf("SHOWCORE_TEST_ENVFILE = %q, want %q", got, "loaded")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing site id",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "negative session retention",
			mutate:  func(c *Config) { c.Database.SessionRetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid api port when enabled",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name: "api port ignored when disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Playback.TickIntervalMS = 0 },
			wantErr: true,
		},
		{
			name:    "zero end check interval",
			mutate:  func(c *Config) { c.Playback.EndCheckIntervalMS = 0 },
			wantErr: true,
		},
		{
			name: "start guard timeout below poll",
			mutate: func(c *Config) {
				c.Playback.StartGuardPollMS = 10
				c.Playback.StartGuardTimeoutMS = 5
			},
			wantErr: true,
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}

	if got := (DatabaseConfig{SessionRetentionDays: 2}).SessionRetention(); got != 48*time.Hour {
		t.Errorf("SessionRetention() = %v, want 48h", got)
	}
}
