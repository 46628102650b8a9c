package sync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mbellis/driftq/internal/connectivity"
	"github.com/mbellis/driftq/internal/events"
)

// Driver couples the connectivity monitor's online edges to the engine: one
// SyncNow per edge, skipped when the queue is empty. Overlapping edges while
// a drain is running are absorbed by the engine's own draining guard.
type Driver struct {
	engine  *Engine
	monitor connectivity.Monitor
	logger  *events.Logger

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	quit      chan struct{}
	done      chan struct{}
}

// NewDriver creates a driver. It does nothing until Start.
func NewDriver(engine *Engine, monitor connectivity.Monitor, logger *events.Logger) *Driver {
	if logger == nil {
		logger = events.Discard()
	}
	return &Driver{
		engine:  engine,
		monitor: monitor,
		logger:  logger.WithField("component", "sync_driver"),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the monitor's edge stream. Safe to call once.
func (d *Driver) Start() {
	d.startOnce.Do(func() {
		d.started.Store(true)
		go d.run()
	})
}

// Stop unsubscribes and waits for the driver goroutine to exit. Stopping a
// driver that never started is a no-op.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
		if d.started.Load() {
			<-d.done
		}
	})
}

func (d *Driver) run() {
	defer close(d.done)

	edges := d.monitor.Edges()
	for {
		select {
		case _, ok := <-edges:
			if !ok {
				d.logger.Debug("Edge stream closed")
				return
			}
			if d.engine.PendingCount() == 0 {
				d.logger.Debug("Connectivity restored with empty queue")
				continue
			}

			d.logger.Info("Connectivity restored, draining queue")
			if err := d.engine.SyncNow(context.Background()); err != nil {
				d.logger.WithError(err).Warn("Triggered drain left work behind")
			}

		case <-d.quit:
			return
		}
	}
}
