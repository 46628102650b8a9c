package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/mbellis/driftq/internal/events"
	"github.com/mbellis/driftq/internal/models"
)

// JSONStore persists the queue as a single JSON file, replaced atomically on
// every save. This is the default backend.
type JSONStore struct {
	path   string
	logger *events.Logger
}

// envelope wraps the operation list with store metadata.
type envelope struct {
	SchemaVersion int                 `json:"schema_version"`
	SavedAt       float64             `json:"saved_at"`
	Operations    []*models.Operation `json:"operations"`
}

// NewJSONStore creates a file-backed queue store at path.
func NewJSONStore(path string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}

	return &JSONStore{
		path:   path,
		logger: logger.WithField("component", "json_queue_store"),
	}, nil
}

// Load reads the persisted queue. Missing file means empty queue; a corrupt
// file is logged and treated as empty, since a loadable application beats a
// preserved corrupt queue.
func (s *JSONStore) Load() ([]*models.Operation, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &models.PersistError{Op: "load", Path: s.path, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.WithError(err).Warn("Queue file is corrupt, starting empty")
		return nil, nil
	}

	if env.SchemaVersion > CurrentSchemaVersion {
		s.logger.WithField("schema_version", env.SchemaVersion).
			Warn("Queue file written by a newer schema")
	}

	s.logger.WithField("count", len(env.Operations)).Debug("Loaded queue")
	return env.Operations, nil
}

// Save atomically replaces the queue file: write to a temp path, fsync,
// rename over the old file.
func (s *JSONStore) Save(ops []*models.Operation) error {
	env := envelope{
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       float64(time.Now().UnixMilli()) / 1000,
		Operations:    ops,
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return &models.PersistError{Op: "save", Path: s.path, Err: err}
	}

	tmpPath := s.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &models.PersistError{Op: "save", Path: s.path, Err: err}
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return &models.PersistError{Op: "save", Path: s.path, Err: err}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmpPath)
		return &models.PersistError{Op: "save", Path: s.path, Err: err}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &models.PersistError{Op: "save", Path: s.path, Err: err}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return &models.PersistError{Op: "save", Path: s.path, Err: err}
	}

	s.logger.WithField("count", len(ops)).Debug("Saved queue")
	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}
