// Package sync implements the write-reconciliation engine: an in-memory FIFO
// queue of pending operations, mirrored to durable storage after every
// mutation, drained against the remote store when connectivity allows.
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mbellis/driftq/internal/connectivity"
	"github.com/mbellis/driftq/internal/events"
	"github.com/mbellis/driftq/internal/models"
	"github.com/mbellis/driftq/internal/queue"
	"github.com/mbellis/driftq/internal/remote"
)

// DefaultRetryCeiling is the maximum failed drain attempts before an
// operation is permanently abandoned.
const DefaultRetryCeiling = 5

// Config contains engine configuration.
type Config struct {
	RetryCeiling int
}

// Engine owns the pending-operation queue and the published sync state.
// Enqueue, SyncNow, and Clear are serialized with respect to queue and state
// mutations; only SyncNow performs network I/O, and it does so outside the
// lock so Enqueue and Status never block on the network.
type Engine struct {
	store   queue.Store
	remote  remote.Store
	monitor connectivity.Monitor
	logger  *events.Logger

	retryCeiling int

	mu         sync.Mutex
	ops        []*models.Operation
	syncing    bool
	lastSyncAt time.Time
	lastError  string
}

// NewEngine builds an engine and loads the persisted queue. A queue that
// cannot be loaded degrades to empty with the failure surfaced through the
// published state; startup never fails on queue contents.
func NewEngine(
	store queue.Store,
	remoteStore remote.Store,
	monitor connectivity.Monitor,
	cfg Config,
	logger *events.Logger,
) *Engine {
	if logger == nil {
		logger = events.Discard()
	}
	ceiling := cfg.RetryCeiling
	if ceiling <= 0 {
		ceiling = DefaultRetryCeiling
	}

	e := &Engine{
		store:        store,
		remote:       remoteStore,
		monitor:      monitor,
		logger:       logger.WithField("component", "sync_engine"),
		retryCeiling: ceiling,
	}

	ops, err := store.Load()
	if err != nil {
		e.logger.WithError(err).Error("Failed to load queue, starting empty")
		e.lastError = err.Error()
	} else {
		e.ops = ops
	}

	e.logger.WithField("pending", len(e.ops)).Info("Engine initialized")
	return e
}

// Enqueue records one mutation at the tail of the queue and persists the
// queue before returning. The operation stays queued in memory even when
// persistence fails; the failure is surfaced through the published state and
// the returned error.
func (e *Engine) Enqueue(kind models.OpKind, collection, documentID string, fields map[string]models.Value) (*models.Operation, error) {
	op := models.NewOperation(kind, collection, documentID, fields)
	if err := op.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.ops = append(e.ops, op)

	e.logger.WithFields(map[string]any{
		"op_id":   op.ID,
		"op":      op.Describe(),
		"pending": len(e.ops),
	}).Debug("Enqueued operation")

	if err := e.store.Save(e.ops); err != nil {
		e.logger.WithError(err).Error("Failed to persist queue")
		e.lastError = err.Error()
		return op, err
	}

	return op, nil
}

// SyncNow drains the current queue snapshot against the remote store in FIFO
// order. Calling it while disconnected fails with ErrNotConnected and leaves
// the queue untouched; calling it while a drain is already running, or with
// an empty queue, is a silent no-op. A drain that leaves operations behind
// returns a *models.DrainError mirroring the published last-error summary.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.monitor.Online() {
		e.mu.Lock()
		e.lastError = models.ErrNotConnected.Error()
		e.mu.Unlock()
		return models.ErrNotConnected
	}

	e.mu.Lock()
	if e.syncing || len(e.ops) == 0 {
		e.mu.Unlock()
		return nil
	}
	e.syncing = true
	e.lastError = ""
	snapshot := make([]*models.Operation, len(e.ops))
	copy(snapshot, e.ops)
	e.mu.Unlock()

	e.logger.WithField("count", len(snapshot)).Info("Starting drain")

	// Remote calls are awaited one at a time, preserving replay order.
	// Connectivity is not re-checked between operations; a mid-drain
	// disconnect simply fails the remainder of the pass into the retry
	// path.
	var carried []*models.Operation
	dropped := 0
	for _, op := range snapshot {
		if err := e.execute(ctx, op); err != nil {
			op.RetryCount++
			if op.RetryCount < e.retryCeiling {
				e.logger.WithError(err).WithFields(map[string]any{
					"op_id":       op.ID,
					"op":          op.Describe(),
					"retry_count": op.RetryCount,
				}).Warn("Operation failed, will retry")
				carried = append(carried, op)
			} else {
				e.logger.WithError(err).WithFields(map[string]any{
					"op_id": op.ID,
					"op":    op.Describe(),
				}).Error("Operation abandoned at retry ceiling")
				dropped++
			}
			continue
		}

		e.logger.WithFields(map[string]any{
			"op_id": op.ID,
			"op":    op.Describe(),
		}).Debug("Operation executed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Drained operations come out of the queue by identity: executed and
	// abandoned ones disappear, carried ones keep their slot. Anything the
	// drain never saw is left as found, so mid-drain enqueues survive and a
	// mid-drain Clear stays cleared.
	drained := make(map[string]struct{}, len(snapshot))
	for _, op := range snapshot {
		drained[op.ID] = struct{}{}
	}
	for _, op := range carried {
		delete(drained, op.ID)
	}

	var kept []*models.Operation
	for _, op := range e.ops {
		if _, ok := drained[op.ID]; !ok {
			kept = append(kept, op)
		}
	}
	e.ops = kept

	saveErr := e.store.Save(e.ops)
	if saveErr != nil {
		e.logger.WithError(saveErr).Error("Failed to persist queue after drain")
	}

	e.lastSyncAt = time.Now()
	e.syncing = false

	if len(carried) > 0 || dropped > 0 {
		drainErr := &models.DrainError{
			Attempted: len(snapshot),
			Retried:   len(carried),
			Dropped:   dropped,
		}
		e.lastError = drainErr.Error()
		if saveErr != nil {
			e.lastError += "; " + saveErr.Error()
		}
		return drainErr
	}

	if saveErr != nil {
		e.lastError = saveErr.Error()
		return saveErr
	}

	e.logger.WithField("count", len(snapshot)).Info("Drain completed")
	return nil
}

// Clear abandons every pending operation and persists the empty queue.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cleared := len(e.ops)
	e.ops = nil

	if err := e.store.Save(e.ops); err != nil {
		e.logger.WithError(err).Error("Failed to persist cleared queue")
		e.lastError = err.Error()
		return err
	}

	e.logger.WithField("cleared", cleared).Info("Queue cleared")
	return nil
}

// Status returns a snapshot of the published state.
func (e *Engine) Status() models.SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return models.SyncStatus{
		PendingCount: len(e.ops),
		Syncing:      e.syncing,
		LastSyncAt:   e.lastSyncAt,
		LastError:    e.lastError,
	}
}

// PendingCount returns the in-memory queue length.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ops)
}

// Pending returns a copy of the queued operations in replay order.
func (e *Engine) Pending() []*models.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*models.Operation, len(e.ops))
	for i, op := range e.ops {
		clone := *op
		out[i] = &clone
	}
	return out
}

// execute maps one operation to exactly one remote-store call. Structural
// preconditions fail fast without touching the network; every failure is
// uniformly transient for retry-counting purposes.
func (e *Engine) execute(ctx context.Context, op *models.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	var err error
	switch op.Kind {
	case models.OpAdd:
		_, err = e.remote.Create(ctx, op.Collection, op.DocumentID, op.NativeFields())
	case models.OpUpdate:
		err = e.remote.Update(ctx, op.Collection, op.DocumentID, op.NativeFields())
	case models.OpDelete:
		err = e.remote.Delete(ctx, op.Collection, op.DocumentID)
	}

	if err != nil {
		remoteErr := &models.RemoteError{
			Kind:       op.Kind,
			Collection: op.Collection,
			DocumentID: op.DocumentID,
			Err:        err,
		}
		var statusErr *remote.StatusError
		if errors.As(err, &statusErr) {
			remoteErr.StatusCode = statusErr.Code
		}
		return remoteErr
	}
	return nil
}
