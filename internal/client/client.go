// Package client assembles the application: queue store, remote store,
// connectivity monitor, sync engine, and driver, all explicitly constructed
// and injected. Lifecycle belongs to the process entry point; nothing in
// here is a global.
package client

import (
	"context"
	"fmt"

	"github.com/mbellis/driftq/internal/config"
	"github.com/mbellis/driftq/internal/connectivity"
	"github.com/mbellis/driftq/internal/events"
	"github.com/mbellis/driftq/internal/queue"
	"github.com/mbellis/driftq/internal/remote"
	syncsvc "github.com/mbellis/driftq/internal/services/sync"
)

// Client provides the high-level API for driftq operations.
type Client struct {
	Engine  *syncsvc.Engine
	Driver  *syncsvc.Driver
	Monitor connectivity.Monitor

	store  queue.Store
	remote remote.Store
	logger *events.Logger
}

// New wires a client from configuration. The driver is constructed but not
// started; call StartDriver when background draining is wanted.
func New(ctx context.Context, cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := newQueueStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create queue store: %w", err)
	}

	remoteStore, err := newRemoteStore(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create remote store: %w", err)
	}

	monitor := newMonitor(cfg, logger)

	engine := syncsvc.NewEngine(store, remoteStore, monitor, syncsvc.Config{
		RetryCeiling: cfg.Queue.RetryCeiling,
	}, logger)

	return &Client{
		Engine:  engine,
		Driver:  syncsvc.NewDriver(engine, monitor, logger),
		Monitor: monitor,
		store:   store,
		remote:  remoteStore,
		logger:  logger,
	}, nil
}

// StartDriver begins connectivity-triggered draining.
func (c *Client) StartDriver() {
	c.Driver.Start()
}

// Close stops the driver and releases every resource.
func (c *Client) Close() error {
	c.Driver.Stop()

	var firstErr error
	for _, closer := range []func() error{c.Monitor.Close, c.remote.Close, c.store.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func newQueueStore(cfg *config.Config, logger *events.Logger) (queue.Store, error) {
	switch cfg.Queue.Backend {
	case "sqlite":
		return queue.NewSQLiteStore(cfg.QueuePath(), logger)
	case "bolt":
		return queue.NewBoltStore(cfg.QueuePath(), logger)
	default:
		return queue.NewJSONStore(cfg.QueuePath(), logger)
	}
}

func newRemoteStore(ctx context.Context, cfg *config.Config, logger *events.Logger) (remote.Store, error) {
	switch cfg.Remote.Backend {
	case "dynamodb":
		return remote.NewDynamoStore(ctx, cfg.Remote.Table, logger)
	default:
		return remote.NewHTTPStore(remote.HTTPConfig{
			BaseURL:    cfg.Remote.BaseURL,
			Token:      cfg.Remote.Token,
			Timeout:    cfg.Remote.Timeout,
			MaxRetries: cfg.Remote.MaxRetries,
			UserAgent:  cfg.Remote.UserAgent,
		}, logger), nil
	}
}

func newMonitor(cfg *config.Config, logger *events.Logger) connectivity.Monitor {
	if cfg.Connectivity.Mode == "websocket" {
		return connectivity.NewWSMonitor(cfg.ConnectivityURL(), logger)
	}
	return connectivity.NewProbeMonitor(cfg.ConnectivityURL(), cfg.Connectivity.Interval, logger)
}
