package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Remote document store
	Remote RemoteConfig `json:"remote"`

	// Durable queue
	Queue QueueConfig `json:"queue"`

	// Connectivity monitoring
	Connectivity ConnectivityConfig `json:"connectivity"`

	// Logging
	Log LogConfig `json:"log"`
}

// RemoteConfig selects and configures the remote store backend.
type RemoteConfig struct {
	// Backend is "http" or "dynamodb".
	Backend string `json:"backend"`

	// HTTP backend settings.
	BaseURL    string        `json:"base_url,omitempty"`
	Token      string        `json:"token,omitempty"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	UserAgent  string        `json:"user_agent,omitempty"`

	// DynamoDB backend settings.
	Table string `json:"table,omitempty"`
}

// QueueConfig configures the durable queue store.
type QueueConfig struct {
	// Dir is the application-private directory holding the queue file.
	Dir string `json:"dir"`

	// Backend is "json", "sqlite", or "bolt".
	Backend string `json:"backend"`

	// RetryCeiling is the maximum failed drain attempts per operation.
	RetryCeiling int `json:"retry_ceiling"`
}

// ConnectivityConfig configures the connectivity monitor.
type ConnectivityConfig struct {
	// Mode is "probe" (HTTP polling) or "websocket" (heartbeat).
	Mode string `json:"mode"`

	// URL is the endpoint to probe or dial. Empty falls back to the
	// remote base URL.
	URL string `json:"url,omitempty"`

	// Interval between probes, probe mode only.
	Interval time.Duration `json:"interval"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // log file path (empty = stderr)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Backend:    "http",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			UserAgent:  "driftq",
		},
		Queue: QueueConfig{
			Dir:          ".driftq",
			Backend:      "json",
			RetryCeiling: 5,
		},
		Connectivity: ConnectivityConfig{
			Mode:     "probe",
			Interval: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// QueuePath returns the backing path for the configured queue backend.
func (c *Config) QueuePath() string {
	switch c.Queue.Backend {
	case "sqlite":
		return filepath.Join(c.Queue.Dir, "queue.db")
	case "bolt":
		return filepath.Join(c.Queue.Dir, "queue.bolt")
	default:
		return filepath.Join(c.Queue.Dir, "queue.json")
	}
}

// ConnectivityURL returns the monitor endpoint, falling back to the remote
// base URL.
func (c *Config) ConnectivityURL() string {
	if c.Connectivity.URL != "" {
		return c.Connectivity.URL
	}
	return c.Remote.BaseURL
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	switch c.Remote.Backend {
	case "http":
		if c.Remote.BaseURL == "" {
			return errors.New("remote.base_url is required for the http backend")
		}
		if c.Remote.Timeout <= 0 {
			return errors.New("remote.timeout must be positive")
		}
	case "dynamodb":
		if c.Remote.Table == "" {
			return errors.New("remote.table is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("invalid remote backend: %s", c.Remote.Backend)
	}

	switch c.Queue.Backend {
	case "json", "sqlite", "bolt":
	default:
		return fmt.Errorf("invalid queue backend: %s", c.Queue.Backend)
	}

	if c.Queue.RetryCeiling <= 0 {
		return errors.New("queue.retry_ceiling must be positive")
	}

	switch c.Connectivity.Mode {
	case "probe", "websocket":
	default:
		return fmt.Errorf("invalid connectivity mode: %s", c.Connectivity.Mode)
	}
	if c.Connectivity.Mode == "probe" && c.Connectivity.Interval <= 0 {
		return errors.New("connectivity.interval must be positive")
	}
	if c.ConnectivityURL() == "" {
		return errors.New("connectivity.url is required when remote.base_url is unset")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Queue.Dir}
	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
