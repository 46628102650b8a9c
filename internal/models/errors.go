package models

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrUnknownKind       = errors.New("unknown operation kind")
	ErrEmptyCollection   = errors.New("collection name is required")
	ErrMissingFields     = errors.New("fields are required")
	ErrMissingDocumentID = errors.New("document id is required")
)

// RemoteError wraps a failed remote-store call. The engine treats every
// remote failure uniformly as transient for retry-counting purposes.
type RemoteError struct {
	Kind       OpKind
	Collection string
	DocumentID string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	target := e.Collection
	if e.DocumentID != "" {
		target += "/" + e.DocumentID
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s %s: HTTP %d: %v", e.Kind, target, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Kind, target, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// DrainError summarizes a drain pass that left work behind.
type DrainError struct {
	Attempted int // operations in the drained snapshot
	Retried   int // failed but carried forward for another attempt
	Dropped   int // abandoned at the retry ceiling
}

func (e *DrainError) Error() string {
	if e.Dropped > 0 {
		return fmt.Sprintf("%d of %d operations failed (%d retained, %d abandoned)",
			e.Retried+e.Dropped, e.Attempted, e.Retried, e.Dropped)
	}
	return fmt.Sprintf("%d of %d operations failed and were retained", e.Retried, e.Attempted)
}

// PersistError wraps a queue save or load failure. Load failures degrade to
// an empty queue; save failures surface through the published state while
// the in-memory queue remains the source of truth.
type PersistError struct {
	Op   string // "save" or "load"
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("queue %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
