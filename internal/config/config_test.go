package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbellis/driftq/internal/config"
)

func validConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Remote.BaseURL = "https://api.example.com"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.Equal(t, "http", cfg.Remote.Backend)
	assert.Equal(t, "json", cfg.Queue.Backend)
	assert.Equal(t, 5, cfg.Queue.RetryCeiling)
	assert.Equal(t, "probe", cfg.Connectivity.Mode)
	assert.Equal(t, "info", cfg.Log.Level)

	// Only the base URL is missing from a working default.
	cfg.Remote.BaseURL = "https://api.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "http backend needs base url",
			mutate:  func(c *config.Config) { c.Remote.BaseURL = "" },
			wantErr: "base_url",
		},
		{
			name: "dynamodb backend needs table",
			mutate: func(c *config.Config) {
				c.Remote.Backend = "dynamodb"
				c.Remote.Table = ""
			},
			wantErr: "table",
		},
		{
			name:    "unknown remote backend",
			mutate:  func(c *config.Config) { c.Remote.Backend = "ftp" },
			wantErr: "invalid remote backend",
		},
		{
			name:    "unknown queue backend",
			mutate:  func(c *config.Config) { c.Queue.Backend = "redis" },
			wantErr: "invalid queue backend",
		},
		{
			name:    "retry ceiling must be positive",
			mutate:  func(c *config.Config) { c.Queue.RetryCeiling = 0 },
			wantErr: "retry_ceiling",
		},
		{
			name:    "unknown connectivity mode",
			mutate:  func(c *config.Config) { c.Connectivity.Mode = "carrier-pigeon" },
			wantErr: "invalid connectivity mode",
		},
		{
			name:    "probe interval must be positive",
			mutate:  func(c *config.Config) { c.Connectivity.Interval = 0 },
			wantErr: "interval",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Log.Level = "loud" },
			wantErr: "log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *config.Config) { c.Log.Format = "xml" },
			wantErr: "log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigQueuePath(t *testing.T) {
	cfg := validConfig()
	cfg.Queue.Dir = "/var/lib/driftq"

	cfg.Queue.Backend = "json"
	assert.Equal(t, "/var/lib/driftq/queue.json", cfg.QueuePath())

	cfg.Queue.Backend = "sqlite"
	assert.Equal(t, "/var/lib/driftq/queue.db", cfg.QueuePath())

	cfg.Queue.Backend = "bolt"
	assert.Equal(t, "/var/lib/driftq/queue.bolt", cfg.QueuePath())
}

func TestConfigConnectivityURLFallsBack(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, cfg.Remote.BaseURL, cfg.ConnectivityURL())

	cfg.Connectivity.URL = "https://status.example.com/health"
	assert.Equal(t, "https://status.example.com/health", cfg.ConnectivityURL())
}

func TestLoaderFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
        "remote": {
            "backend": "http",
            "base_url": "https://api.example.com",
            "token": "secret",
            "timeout": 10000000000
        },
        "queue": {"backend": "sqlite", "retry_ceiling": 3}
    }`), 0o600))

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "secret", cfg.Remote.Token)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "sqlite", cfg.Queue.Backend)
	assert.Equal(t, 3, cfg.Queue.RetryCeiling)

	// Untouched sections keep defaults.
	assert.Equal(t, "probe", cfg.Connectivity.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
        "remote": {"base_url": "https://file.example.com"}
    }`), 0o600))

	t.Setenv("DRIFTQ_REMOTE_BASE_URL", "https://env.example.com")
	t.Setenv("DRIFTQ_QUEUE_BACKEND", "BOLT")
	t.Setenv("DRIFTQ_QUEUE_RETRY_CEILING", "7")
	t.Setenv("DRIFTQ_CONNECTIVITY_INTERVAL", "30s")
	t.Setenv("DRIFTQ_LOG_LEVEL", "DEBUG")

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "bolt", cfg.Queue.Backend)
	assert.Equal(t, 7, cfg.Queue.RetryCeiling)
	assert.Equal(t, 30*time.Second, cfg.Connectivity.Interval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoaderRejectsBadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
        "remote": {"base_url": "https://api.example.com"}
    }`), 0o600))

	t.Setenv("DRIFTQ_QUEUE_RETRY_CEILING", "many")

	_, err := config.NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUEUE_RETRY_CEILING")
}

func TestLoaderMissingExplicitFile(t *testing.T) {
	_, err := config.NewLoader(filepath.Join(t.TempDir(), "nope.json")).Load()
	assert.Error(t, err)
}

func TestLoaderValidatesResult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
        "remote": {"backend": "dynamodb"}
    }`), 0o600))

	_, err := config.NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
