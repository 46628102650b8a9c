package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbellis/driftq/internal/events"
)

// ProbeMonitor polls an HTTP endpoint at a fixed interval and derives the
// connectivity level from whether the request succeeds. Edge events fire on
// the false→true transition only.
type ProbeMonitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   *events.Logger

	online atomic.Bool
	edges  chan struct{}

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewProbeMonitor starts a probe monitor against url. The first probe runs
// immediately; an initial online observation counts as an edge.
func NewProbeMonitor(url string, interval time.Duration, logger *events.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &ProbeMonitor{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: interval},
		logger:   logger.WithField("component", "probe_monitor"),
		edges:    make(chan struct{}, 1),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go m.loop(ctx)
	return m
}

// Online reports the last observed level.
func (m *ProbeMonitor) Online() bool {
	return m.online.Load()
}

// Edges returns the edge event channel.
func (m *ProbeMonitor) Edges() <-chan struct{} {
	return m.edges
}

// Close stops probing and closes the edge channel.
func (m *ProbeMonitor) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
		close(m.edges)
	})
	return nil
}

func (m *ProbeMonitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.observe(m.probe(ctx))
	for {
		select {
		case <-ticker.C:
			m.observe(m.probe(ctx))
		case <-ctx.Done():
			return
		}
	}
}

func (m *ProbeMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// observe updates the level and emits an edge on the offline→online
// transition. The edge channel holds one pending event; an unconsumed edge
// absorbs later ones.
func (m *ProbeMonitor) observe(online bool) {
	was := m.online.Swap(online)
	if online == was {
		return
	}

	if online {
		m.logger.Info("Connectivity restored")
		select {
		case m.edges <- struct{}{}:
		default:
		}
	} else {
		m.logger.Warn("Connectivity lost")
	}
}
