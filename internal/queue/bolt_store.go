package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/mbellis/driftq/internal/events"
	"github.com/mbellis/driftq/internal/models"
)

var bucketQueue = []byte("queue")

// BoltStore persists the queue in a bbolt database. Operations live in a
// single bucket under big-endian position keys, so a cursor walk returns
// them in replay order. Save replaces the bucket inside one write
// transaction.
type BoltStore struct {
	db     *bbolt.DB
	logger *events.Logger
}

// NewBoltStore opens a bbolt-backed queue store.
func NewBoltStore(dbPath string, logger *events.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQueue)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue bucket: %w", err)
	}

	return &BoltStore{
		db:     db,
		logger: logger.WithField("component", "bolt_queue_store"),
	}, nil
}

// Load reads the persisted queue in key order. Records that no longer parse
// are skipped with a warning.
func (s *BoltStore) Load() ([]*models.Operation, error) {
	var ops []*models.Operation

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, value []byte) error {
			var op models.Operation
			if err := json.Unmarshal(value, &op); err != nil {
				s.logger.WithError(err).Warn("Skipping corrupt queue record")
				return nil
			}
			ops = append(ops, &op)
			return nil
		})
	})
	if err != nil {
		return nil, &models.PersistError{Op: "load", Err: err}
	}

	s.logger.WithField("count", len(ops)).Debug("Loaded queue")
	return ops, nil
}

// Save replaces the persisted queue in one transaction.
func (s *BoltStore) Save(ops []*models.Operation) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketQueue); err != nil {
			return err
		}
		bucket, err := tx.CreateBucket(bucketQueue)
		if err != nil {
			return err
		}

		for position, op := range ops {
			value, err := json.Marshal(op)
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(position))
			if err := bucket.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &models.PersistError{Op: "save", Err: err}
	}

	s.logger.WithField("count", len(ops)).Debug("Saved queue")
	return nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
