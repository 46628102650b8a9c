package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mbellis/driftq/internal/events"
	"github.com/mbellis/driftq/internal/models"
)

// SQLiteStore persists the queue in a SQLite database, one row per pending
// operation with an explicit position column preserving replay order. Save
// replaces the whole queue inside a transaction, which gives the same
// crash-atomicity as the file store's rename.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens (and if needed initializes) a SQLite queue store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_queue_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS pending_operations (
        position INTEGER PRIMARY KEY,
        id TEXT NOT NULL,
        kind TEXT NOT NULL,
        collection TEXT NOT NULL,
        document_id TEXT,
        fields TEXT,
        created_at REAL NOT NULL,
        retry_count INTEGER NOT NULL DEFAULT 0
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load reads the persisted queue in position order. Rows whose field payload
// no longer parses are skipped with a warning rather than failing the load.
func (s *SQLiteStore) Load() ([]*models.Operation, error) {
	rows, err := s.db.Query(`
        SELECT id, kind, collection, document_id, fields, created_at, retry_count
        FROM pending_operations ORDER BY position`)
	if err != nil {
		return nil, &models.PersistError{Op: "load", Err: err}
	}
	defer rows.Close()

	var ops []*models.Operation
	for rows.Next() {
		var (
			op         models.Operation
			documentID sql.NullString
			fieldsJSON sql.NullString
			createdAt  float64
		)
		if err := rows.Scan(&op.ID, &op.Kind, &op.Collection, &documentID,
			&fieldsJSON, &createdAt, &op.RetryCount); err != nil {
			return nil, &models.PersistError{Op: "load", Err: err}
		}

		op.DocumentID = documentID.String
		op.CreatedAt = secondsToTime(createdAt)

		if fieldsJSON.Valid && fieldsJSON.String != "" {
			fields, err := models.FieldsFromJSON([]byte(fieldsJSON.String))
			if err != nil {
				s.logger.WithError(err).WithField("op_id", op.ID).
					Warn("Skipping operation with corrupt fields")
				continue
			}
			op.Fields = fields
		}

		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.PersistError{Op: "load", Err: err}
	}

	s.logger.WithField("count", len(ops)).Debug("Loaded queue")
	return ops, nil
}

// Save replaces the persisted queue transactionally.
func (s *SQLiteStore) Save(ops []*models.Operation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &models.PersistError{Op: "save", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM pending_operations`); err != nil {
		return &models.PersistError{Op: "save", Err: err}
	}

	stmt, err := tx.Prepare(`
        INSERT INTO pending_operations
            (position, id, kind, collection, document_id, fields, created_at, retry_count)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &models.PersistError{Op: "save", Err: err}
	}
	defer stmt.Close()

	for position, op := range ops {
		var fieldsJSON any
		if len(op.Fields) > 0 {
			data, err := json.Marshal(op.Fields)
			if err != nil {
				return &models.PersistError{Op: "save", Err: err}
			}
			fieldsJSON = string(data)
		}

		var documentID any
		if op.DocumentID != "" {
			documentID = op.DocumentID
		}

		if _, err := stmt.Exec(position, op.ID, string(op.Kind), op.Collection,
			documentID, fieldsJSON, timeToSeconds(op.CreatedAt), op.RetryCount); err != nil {
			return &models.PersistError{Op: "save", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.PersistError{Op: "save", Err: err}
	}

	s.logger.WithField("count", len(ops)).Debug("Saved queue")
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
