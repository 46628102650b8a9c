package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Loader handles configuration loading from multiple sources: defaults,
// then an optional JSON file, then DRIFTQ_-prefixed environment overrides.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. An empty configPath searches the
// default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "DRIFTQ_",
	}
}

// Load reads configuration from file and environment.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		for _, path := range l.defaultPaths() {
			if _, err := os.Stat(path); err == nil {
				l.configPath = path
				if err := l.loadFile(cfg); err != nil {
					return nil, fmt.Errorf("load config file %s: %w", path, err)
				}
				break
			}
		}
	}

	if err := l.loadEnv(cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (l *Loader) defaultPaths() []string {
	paths := []string{
		"driftq.json",
		".driftq.json",
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(homeDir, ".config", "driftq", "config.json"),
			filepath.Join(homeDir, ".driftq", "config.json"),
		)
	}

	return paths
}

func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}

	return nil
}

// loadEnv overrides config from environment variables.
func (l *Loader) loadEnv(cfg *Config) error {
	if v := os.Getenv(l.envPrefix + "REMOTE_BACKEND"); v != "" {
		cfg.Remote.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(l.envPrefix + "REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv(l.envPrefix + "REMOTE_TOKEN"); v != "" {
		cfg.Remote.Token = v
	}
	if v := os.Getenv(l.envPrefix + "REMOTE_TABLE"); v != "" {
		cfg.Remote.Table = v
	}
	if v := os.Getenv(l.envPrefix + "REMOTE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse REMOTE_TIMEOUT: %w", err)
		}
		cfg.Remote.Timeout = d
	}

	if v := os.Getenv(l.envPrefix + "QUEUE_DIR"); v != "" {
		cfg.Queue.Dir = v
	}
	if v := os.Getenv(l.envPrefix + "QUEUE_BACKEND"); v != "" {
		cfg.Queue.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(l.envPrefix + "QUEUE_RETRY_CEILING"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse QUEUE_RETRY_CEILING: %w", err)
		}
		cfg.Queue.RetryCeiling = n
	}

	if v := os.Getenv(l.envPrefix + "CONNECTIVITY_MODE"); v != "" {
		cfg.Connectivity.Mode = strings.ToLower(v)
	}
	if v := os.Getenv(l.envPrefix + "CONNECTIVITY_URL"); v != "" {
		cfg.Connectivity.URL = v
	}
	if v := os.Getenv(l.envPrefix + "CONNECTIVITY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CONNECTIVITY_INTERVAL: %w", err)
		}
		cfg.Connectivity.Interval = d
	}

	if v := os.Getenv(l.envPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(l.envPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv(l.envPrefix + "LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	return nil
}
