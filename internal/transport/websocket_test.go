package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beatwave/connect/internal/connerr"
	"github.com/beatwave/connect/internal/model"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testWSConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:               url,
		ConnectTimeout:    2 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		WriteTimeout:      2 * time.Second,
		BufferSize:        100,
	}
}

func TestWebSocket_Connect(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	ws := NewWebSocket(testWSConfig(wsURL(server)), nil)

	if ws.Strategy() != model.StrategyWebSocket {
		t.Errorf("Strategy() = %v, want %v", ws.Strategy(), model.StrategyWebSocket)
	}

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !ws.IsConnected() {
		t.Error("expected IsConnected after Connect")
	}

	if err := ws.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if ws.IsConnected() {
		t.Error("expected not connected after Close")
	}
}

func TestWebSocket_ConnectRefused(t *testing.T) {
	ws := NewWebSocket(testWSConfig("ws://127.0.0.1:1"), nil)

	err := ws.Connect(context.Background())
	if err == nil {
		t.Fatal("expected Connect to fail against a closed port")
	}

	var ce *connerr.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected taxonomy error, got %T: %v", err, err)
	}
}

func TestWebSocket_ConnectAuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := testWSConfig(wsURL(server))
	cfg.AuthToken = "expired"
	ws := NewWebSocket(cfg, nil)

	err := ws.Connect(context.Background())
	if !connerr.IsKind(err, connerr.KindAuthentication) {
		t.Errorf("expected authentication error, got %v", err)
	}
	if connerr.IsRetryable(err) {
		t.Error("authentication errors must not be retryable")
	}
}

func TestWebSocket_SendAndReceive(t *testing.T) {
	var mu sync.Mutex
	var received []byte

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
			// Echo it back as a single frame.
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})
	defer server.Close()

	ws := NewWebSocket(testWSConfig(wsURL(server)), nil)
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer ws.Close()

	payload := []byte(`{"type":"ping","payload":{},"id":"m1","timestamp":1}`)
	if err := ws.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case in := <-ws.Messages():
		if string(in.Data) != string(payload) {
			t.Errorf("received %s, want %s", in.Data, payload)
		}
		if in.ReceivedAt.IsZero() {
			t.Error("expected non-zero ReceivedAt")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	mu.Lock()
	got := string(received)
	mu.Unlock()
	if got != string(payload) {
		t.Errorf("server received %s, want %s", got, payload)
	}
}

func TestWebSocket_SendNotConnected(t *testing.T) {
	ws := NewWebSocket(testWSConfig("ws://127.0.0.1:1"), nil)

	err := ws.Send(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("expected Send to fail before Connect")
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestWebSocket_ServerCloseSurfacesError(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Drop the connection immediately after the handshake.
	})
	defer server.Close()

	ws := NewWebSocket(testWSConfig(wsURL(server)), nil)
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer ws.Close()

	select {
	case err := <-ws.Errors():
		if err == nil {
			t.Fatal("expected non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect error")
	}

	if ws.IsConnected() {
		t.Error("expected not connected after server-side close")
	}
}

func TestWebSocket_CloseIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	ws := NewWebSocket(testWSConfig(wsURL(server)), nil)
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := ws.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
