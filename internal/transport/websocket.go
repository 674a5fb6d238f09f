package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"

	"github.com/beatwave/connect/internal/connerr"
	"github.com/beatwave/connect/internal/model"
)

// WebSocketConfig configures a WebSocket transport.
type WebSocketConfig struct {
	URL               string        // e.g. wss://api.beatwave.io/ws
	AuthToken         string        // Optional bearer token
	ConnectTimeout    time.Duration // Handshake deadline
	HeartbeatInterval time.Duration // Ping cadence; staleness fires at 2x
	WriteTimeout      time.Duration // Write deadline for sends
	BufferSize        int           // Inbound channel buffer
}

// WebSocket is the push transport: a single persistent duplex channel
// carrying one JSON message per frame.
type WebSocket struct {
	cfg    WebSocketConfig
	logger *slog.Logger

	conn *websocket.Conn

	messages chan Inbound
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	connected atomic.Bool
	closed    atomic.Bool

	mu       sync.Mutex
	lastPong time.Time
}

// NewWebSocket creates a WebSocket transport.
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}

	return &WebSocket{
		cfg:      cfg,
		logger:   logger.With("transport", "websocket"),
		messages: make(chan Inbound, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Strategy identifies this transport.
func (w *WebSocket) Strategy() model.Strategy {
	return model.StrategyWebSocket
}

// Connect dials the endpoint, racing the handshake against the configured
// timeout. On failure no partial socket is left behind.
func (w *WebSocket) Connect(ctx context.Context) error {
	if w.closed.Load() {
		return connerr.WebSocket(ErrAlreadyClosed)
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if w.cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+w.cfg.AuthToken)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: w.cfg.ConnectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, w.cfg.ConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, w.cfg.URL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return connerr.Authentication(err)
			}
		}
		if dialCtx.Err() != nil {
			return connerr.Timeout(err)
		}
		if err == websocket.ErrBadHandshake {
			return connerr.WebSocket(err)
		}
		return connerr.Network(err)
	}

	w.mu.Lock()
	w.conn = conn
	w.lastPong = time.Now()
	w.mu.Unlock()
	w.connected.Store(true)

	conn.SetPongHandler(func(string) error {
		w.mu.Lock()
		w.lastPong = time.Now()
		w.mu.Unlock()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		w.mu.Lock()
		w.lastPong = time.Now()
		w.mu.Unlock()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	go w.readLoop()
	go w.heartbeatLoop()

	w.logger.Debug("websocket connected", "url", w.cfg.URL)

	return nil
}

// Send writes one message as a single text frame. Fails immediately when
// the socket is not open.
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	if w.closed.Load() {
		return connerr.WebSocket(ErrAlreadyClosed)
	}
	if !w.connected.Load() {
		return connerr.WebSocket(ErrNotConnected)
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Now().Add(w.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	w.conn.SetWriteDeadline(deadline)

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return connerr.Network(err)
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (w *WebSocket) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.connected.Store(false)
	close(w.done)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// Messages returns the inbound channel.
func (w *WebSocket) Messages() <-chan Inbound {
	return w.messages
}

// Errors returns the asynchronous error channel.
func (w *WebSocket) Errors() <-chan error {
	return w.errors
}

// IsConnected reports whether the socket is open.
func (w *WebSocket) IsConnected() bool {
	return w.connected.Load()
}

// readLoop reads frames until the socket fails or Close is called. A
// mid-session read error is expected network behavior and surfaces on the
// error channel, not as a panic.
func (w *WebSocket) readLoop() {
	defer w.connected.Store(false)

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, data, err := w.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors caused by our own Close.
			select {
			case <-w.done:
				return
			default:
			}
			w.reportError(connerr.Network(err))
			return
		}

		select {
		case w.messages <- Inbound{Data: data, ReceivedAt: receivedAt}:
		case <-w.done:
			return
		default:
			w.logger.Warn("inbound buffer full, dropping frame")
		}
	}
}

// heartbeatLoop pings on the configured cadence and reports staleness when
// nothing has been heard for two intervals.
func (w *WebSocket) heartbeatLoop() {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			conn := w.conn
			lastPong := w.lastPong
			w.mu.Unlock()

			if conn != nil {
				deadline := time.Now().Add(w.cfg.WriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
					w.logger.Debug("failed to send ping", "error", err)
				}
			}

			if time.Since(lastPong) > 2*w.cfg.HeartbeatInterval {
				w.logger.Warn("no heartbeat response, connection stale",
					"last_pong", lastPong,
					"interval", w.cfg.HeartbeatInterval,
				)
				w.connected.Store(false)
				w.reportError(connerr.Network(ErrStaleConnection))
				return
			}
		}
	}
}

func (w *WebSocket) reportError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}
