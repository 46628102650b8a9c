package sync_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbellis/driftq/internal/connectivity"
	"github.com/mbellis/driftq/internal/events"
	"github.com/mbellis/driftq/internal/models"
	"github.com/mbellis/driftq/internal/queue"
	"github.com/mbellis/driftq/internal/remote"
	driftsync "github.com/mbellis/driftq/internal/services/sync"
)

type fixture struct {
	engine  *driftsync.Engine
	store   *queue.MockStore
	remote  *remote.MockStore
	monitor *connectivity.MockMonitor
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()

	f := &fixture{
		store:   queue.NewMockStore(),
		remote:  remote.NewMockStore(),
		monitor: connectivity.NewMockMonitor(online),
	}
	f.engine = driftsync.NewEngine(f.store, f.remote, f.monitor, driftsync.Config{}, events.Discard())
	t.Cleanup(func() { f.monitor.Close() })
	return f
}

func titleFields(title string) map[string]models.Value {
	return map[string]models.Value{"title": models.String(title)}
}

func TestEngineEnqueue(t *testing.T) {
	f := newFixture(t, true)

	op, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("first"))
	require.NoError(t, err)
	assert.NotEmpty(t, op.ID)

	assert.Equal(t, 1, f.engine.PendingCount())
	require.Len(t, f.store.Stored(), 1)
	assert.Equal(t, op.ID, f.store.Stored()[0].ID)

	// Enqueue never touches the network.
	assert.Empty(t, f.remote.Calls)
}

func TestEngineEnqueueRejectsInvalid(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpUpdate, "notes", "", titleFields("x"))
	assert.ErrorIs(t, err, models.ErrMissingDocumentID)

	_, err = f.engine.Enqueue(models.OpAdd, "", "", titleFields("x"))
	assert.ErrorIs(t, err, models.ErrEmptyCollection)

	assert.Zero(t, f.engine.PendingCount())
	assert.Zero(t, f.store.SaveCalls)
}

func TestEngineEnqueueKeepsOperationOnPersistFailure(t *testing.T) {
	f := newFixture(t, true)
	f.store.SaveErr = errors.New("disk full")

	op, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("kept"))
	require.Error(t, err)
	require.NotNil(t, op)

	// The in-memory queue stays authoritative.
	assert.Equal(t, 1, f.engine.PendingCount())
	assert.Contains(t, f.engine.Status().LastError, "disk full")
}

func TestEngineStartsFromPersistedQueue(t *testing.T) {
	store := queue.NewMockStore()
	store.Seed([]*models.Operation{
		models.NewOperation(models.OpAdd, "notes", "", titleFields("a")),
		models.NewOperation(models.OpAdd, "notes", "", titleFields("b")),
	})

	engine := driftsync.NewEngine(store, remote.NewMockStore(),
		connectivity.NewMockMonitor(true), driftsync.Config{}, events.Discard())

	assert.Equal(t, 2, engine.PendingCount())
	assert.Empty(t, engine.Status().LastError)
}

func TestEngineStartsEmptyWhenLoadFails(t *testing.T) {
	store := queue.NewMockStore()
	store.LoadErr = errors.New("bad file")

	engine := driftsync.NewEngine(store, remote.NewMockStore(),
		connectivity.NewMockMonitor(true), driftsync.Config{}, events.Discard())

	assert.Zero(t, engine.PendingCount())
	assert.Contains(t, engine.Status().LastError, "bad file")
}

func TestEngineSyncNowWhileOffline(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("stuck"))
	require.NoError(t, err)

	err = f.engine.SyncNow(context.Background())
	assert.ErrorIs(t, err, models.ErrNotConnected)

	assert.Equal(t, 1, f.engine.PendingCount())
	assert.Empty(t, f.remote.Calls)
	assert.Equal(t, models.ErrNotConnected.Error(), f.engine.Status().LastError)
}

func TestEngineSyncNowEmptyQueue(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.engine.SyncNow(context.Background()))

	assert.Empty(t, f.remote.Calls)
	assert.True(t, f.engine.Status().LastSyncAt.IsZero())
}

func TestEngineSyncNowDrainsInOrder(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("v1"))
	require.NoError(t, err)
	_, err = f.engine.Enqueue(models.OpUpdate, "notes", "doc-1", titleFields("v2"))
	require.NoError(t, err)
	_, err = f.engine.Enqueue(models.OpDelete, "notes", "doc-1", nil)
	require.NoError(t, err)

	require.NoError(t, f.engine.SyncNow(context.Background()))

	assert.Equal(t, []string{"create", "update", "delete"}, f.remote.CallOps())
	assert.Zero(t, f.engine.PendingCount())
	assert.Empty(t, f.store.Stored())

	status := f.engine.Status()
	assert.False(t, status.LastSyncAt.IsZero())
	assert.Empty(t, status.LastError)
	assert.False(t, status.Syncing)
}

func TestEngineSyncNowCarriesFailedOperations(t *testing.T) {
	f := newFixture(t, true)

	failed, err := f.engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("fails"))
	require.NoError(t, err)
	_, err = f.engine.Enqueue(models.OpAdd, "notes", "doc-2", titleFields("lands"))
	require.NoError(t, err)

	f.remote.FailNext(errors.New("server hiccup"))

	err = f.engine.SyncNow(context.Background())
	require.Error(t, err)

	var drainErr *models.DrainError
	require.ErrorAs(t, err, &drainErr)
	assert.Equal(t, 2, drainErr.Attempted)
	assert.Equal(t, 1, drainErr.Retried)
	assert.Zero(t, drainErr.Dropped)

	pending := f.engine.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, failed.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].RetryCount)

	// The survivor is persisted, as is the published failure.
	require.Len(t, f.store.Stored(), 1)
	assert.Contains(t, f.engine.Status().LastError, "retained")
}

func TestEngineRetriesUntilRemoteRecovers(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("eventually"))
	require.NoError(t, err)

	f.remote.FailAll = errors.New("outage")
	for i := 1; i <= 3; i++ {
		err := f.engine.SyncNow(context.Background())
		require.Error(t, err)

		pending := f.engine.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, i, pending[0].RetryCount)
	}

	f.remote.FailAll = nil
	require.NoError(t, f.engine.SyncNow(context.Background()))

	assert.Zero(t, f.engine.PendingCount())
	_, ok := f.remote.Document("notes", "doc-1")
	assert.True(t, ok)
}

func TestEngineAbandonsAtRetryCeiling(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("doomed"))
	require.NoError(t, err)

	f.remote.FailAll = errors.New("outage")

	for i := 1; i < driftsync.DefaultRetryCeiling; i++ {
		require.Error(t, f.engine.SyncNow(context.Background()))
		assert.Equal(t, 1, f.engine.PendingCount(), "still carried after attempt %d", i)
	}

	// The final attempt crosses the ceiling and drops the operation.
	err = f.engine.SyncNow(context.Background())
	require.Error(t, err)

	var drainErr *models.DrainError
	require.ErrorAs(t, err, &drainErr)
	assert.Equal(t, 1, drainErr.Dropped)
	assert.Zero(t, drainErr.Retried)

	assert.Zero(t, f.engine.PendingCount())
	assert.Empty(t, f.store.Stored())
	assert.Contains(t, f.engine.Status().LastError, "abandoned")
}

func TestEngineCustomRetryCeiling(t *testing.T) {
	store := queue.NewMockStore()
	remoteStore := remote.NewMockStore()
	remoteStore.FailAll = errors.New("outage")

	engine := driftsync.NewEngine(store, remoteStore,
		connectivity.NewMockMonitor(true), driftsync.Config{RetryCeiling: 1}, events.Discard())

	_, err := engine.Enqueue(models.OpAdd, "notes", "", titleFields("one shot"))
	require.NoError(t, err)

	err = engine.SyncNow(context.Background())
	require.Error(t, err)

	var drainErr *models.DrainError
	require.ErrorAs(t, err, &drainErr)
	assert.Equal(t, 1, drainErr.Dropped)
	assert.Zero(t, engine.PendingCount())
}

func TestEngineSyncNowReportsPersistFailure(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("drained"))
	require.NoError(t, err)

	f.store.SaveErr = errors.New("disk full")

	err = f.engine.SyncNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// The drain itself succeeded.
	assert.Zero(t, f.engine.PendingCount())
	assert.Equal(t, []string{"create"}, f.remote.CallOps())
}

func TestEngineClear(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("a"))
	require.NoError(t, err)
	_, err = f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("b"))
	require.NoError(t, err)

	require.NoError(t, f.engine.Clear())

	assert.Zero(t, f.engine.PendingCount())
	assert.Empty(t, f.store.Stored())
	assert.Empty(t, f.remote.Calls)
}

// blockingRemote parks the first create until released, so tests can observe
// the engine mid-drain.
type blockingRemote struct {
	*remote.MockStore
	entered chan struct{}
	release chan struct{}
}

func newBlockingRemote() *blockingRemote {
	return &blockingRemote{
		MockStore: remote.NewMockStore(),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (b *blockingRemote) Create(ctx context.Context, collection, documentID string, fields map[string]any) (string, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.MockStore.Create(ctx, collection, documentID, fields)
}

func TestEngineSyncNowWhileDrainInFlight(t *testing.T) {
	store := queue.NewMockStore()
	blocking := newBlockingRemote()
	engine := driftsync.NewEngine(store, blocking,
		connectivity.NewMockMonitor(true), driftsync.Config{}, events.Discard())

	_, err := engine.Enqueue(models.OpAdd, "notes", "", titleFields("slow"))
	require.NoError(t, err)

	drained := make(chan error, 1)
	go func() { drained <- engine.SyncNow(context.Background()) }()

	<-blocking.entered
	assert.True(t, engine.Status().Syncing)

	// The overlapping call is absorbed without a second drain.
	require.NoError(t, engine.SyncNow(context.Background()))

	close(blocking.release)
	require.NoError(t, <-drained)

	assert.Equal(t, []string{"create"}, blocking.CallOps())
	assert.False(t, engine.Status().Syncing)
}

func TestEngineMidDrainEnqueueSurvives(t *testing.T) {
	store := queue.NewMockStore()
	blocking := newBlockingRemote()
	engine := driftsync.NewEngine(store, blocking,
		connectivity.NewMockMonitor(true), driftsync.Config{}, events.Discard())

	_, err := engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("in flight"))
	require.NoError(t, err)

	drained := make(chan error, 1)
	go func() { drained <- engine.SyncNow(context.Background()) }()

	<-blocking.entered
	late, err := engine.Enqueue(models.OpDelete, "notes", "doc-9", nil)
	require.NoError(t, err)

	close(blocking.release)
	require.NoError(t, <-drained)

	// Only the snapshot drained; the late arrival waits for the next pass.
	pending := engine.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)

	stored := store.Stored()
	require.Len(t, stored, 1)
	assert.Equal(t, late.ID, stored[0].ID)
}

func TestEngineClearDuringDrain(t *testing.T) {
	store := queue.NewMockStore()
	blocking := newBlockingRemote()
	engine := driftsync.NewEngine(store, blocking,
		connectivity.NewMockMonitor(true), driftsync.Config{}, events.Discard())

	_, err := engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("in flight"))
	require.NoError(t, err)

	drained := make(chan error, 1)
	go func() { drained <- engine.SyncNow(context.Background()) }()

	<-blocking.entered
	require.NoError(t, engine.Clear())

	late, err := engine.Enqueue(models.OpDelete, "notes", "doc-9", nil)
	require.NoError(t, err)

	close(blocking.release)
	require.NoError(t, <-drained)

	// The clear held; only the post-clear enqueue remains.
	pending := engine.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)
}

func TestEngineClearDuringDrainDropsCarriedFailures(t *testing.T) {
	store := queue.NewMockStore()
	blocking := newBlockingRemote()
	blocking.FailAll = errors.New("outage")
	engine := driftsync.NewEngine(store, blocking,
		connectivity.NewMockMonitor(true), driftsync.Config{}, events.Discard())

	_, err := engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("doomed"))
	require.NoError(t, err)

	drained := make(chan error, 1)
	go func() { drained <- engine.SyncNow(context.Background()) }()

	<-blocking.entered
	require.NoError(t, engine.Clear())
	close(blocking.release)

	// The failed operation would normally be carried, but clear abandoned it.
	require.Error(t, <-drained)
	assert.Zero(t, engine.PendingCount())
}

func TestEngineDrainFailureAndPersistFailureBothSurface(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("stuck"))
	require.NoError(t, err)

	f.remote.FailAll = errors.New("outage")
	f.store.SaveErr = errors.New("disk full")

	err = f.engine.SyncNow(context.Background())
	var drainErr *models.DrainError
	require.ErrorAs(t, err, &drainErr)

	lastError := f.engine.Status().LastError
	assert.Contains(t, lastError, "retained")
	assert.Contains(t, lastError, "disk full")
}

func TestEngineRemoteErrorCarriesStatusCode(t *testing.T) {
	var logs bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &logs)

	store := queue.NewMockStore()
	remoteStore := remote.NewMockStore()
	remoteStore.FailAll = &remote.StatusError{Code: 422, Body: "bad fields"}

	engine := driftsync.NewEngine(store, remoteStore,
		connectivity.NewMockMonitor(true), driftsync.Config{}, logger)

	_, err := engine.Enqueue(models.OpAdd, "notes", "doc-1", titleFields("rejected"))
	require.NoError(t, err)
	require.Error(t, engine.SyncNow(context.Background()))

	// The failure report names the HTTP status, not just the body.
	assert.Contains(t, logs.String(), "HTTP 422")
}

func TestEngineStatusSnapshot(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.engine.Enqueue(models.OpAdd, "notes", "", titleFields("x"))
	require.NoError(t, err)

	before := f.engine.Status()
	assert.Equal(t, 1, before.PendingCount)
	assert.False(t, before.Syncing)
	assert.True(t, before.LastSyncAt.IsZero())

	require.NoError(t, f.engine.SyncNow(context.Background()))

	after := f.engine.Status()
	assert.Zero(t, after.PendingCount)
	assert.WithinDuration(t, time.Now(), after.LastSyncAt, time.Second)
}
