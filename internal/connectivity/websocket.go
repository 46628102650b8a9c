package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mbellis/driftq/internal/events"
)

// WSMonitor derives connectivity from a long-lived websocket to the remote
// endpoint: a healthy ping/pong heartbeat means online, a failed dial, read,
// or ping means offline. Reconnects with exponential backoff; each
// successful (re)connect is an online edge.
type WSMonitor struct {
	url    string
	logger *events.Logger

	pingInterval time.Duration
	pongTimeout  time.Duration
	maxBackoff   time.Duration

	online atomic.Bool
	edges  chan struct{}

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSMonitor starts a websocket heartbeat monitor. An http(s) URL is
// converted to its ws(s) equivalent.
func NewWSMonitor(wsURL string, logger *events.Logger) *WSMonitor {
	if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:]
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &WSMonitor{
		url:          wsURL,
		logger:       logger.WithField("component", "ws_monitor"),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
		maxBackoff:   2 * time.Minute,
		edges:        make(chan struct{}, 1),
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go m.loop(ctx)
	return m
}

// Online reports the current heartbeat state.
func (m *WSMonitor) Online() bool {
	return m.online.Load()
}

// Edges returns the edge event channel.
func (m *WSMonitor) Edges() <-chan struct{} {
	return m.edges
}

// Close disconnects and closes the edge channel.
func (m *WSMonitor) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		<-m.done
		close(m.edges)
	})
	return nil
}

// loop dials, holds the connection while the heartbeat is healthy, and
// backs off between attempts.
func (m *WSMonitor) loop(ctx context.Context) {
	defer close(m.done)

	backoff := time.Second
	for {
		connected, err := m.hold(ctx)
		if err != nil {
			m.setOnline(false)
			m.logger.WithError(err).Debug("Heartbeat connection lost")
		}
		if connected {
			backoff = time.Second
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > m.maxBackoff {
				backoff = m.maxBackoff
			}
		case <-ctx.Done():
			return
		}
	}
}

// hold dials once and pumps the heartbeat until the connection breaks. The
// first return reports whether the dial succeeded at all.
func (m *WSMonitor) hold(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	m.logger.Debug("Heartbeat connected")
	m.setOnline(true)

	deadline := func() { _ = conn.SetReadDeadline(time.Now().Add(m.pingInterval + m.pongTimeout)) }
	deadline()
	conn.SetPongHandler(func(string) error {
		deadline()
		return nil
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return true, err
			}
		case err := <-readErr:
			return true, err
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true, nil
		}
	}
}

func (m *WSMonitor) setOnline(online bool) {
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
