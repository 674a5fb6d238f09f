package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/beatwave/connect/internal/version"
)

// echoserver is a local test peer for the connectivity layer. It serves
// both transports against a shared queue: every message sent over either
// transport is echoed back to all websocket clients and queued for the
// next poll.
func main() {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting echoserver",
		"version", version.Version,
		"commit", version.Commit,
		"addr", *addr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	es := newEchoState(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", es.handleWebSocket)
	mux.HandleFunc("/poll", es.handlePoll)
	mux.HandleFunc("/poll/send", es.handleSend)

	server := &http.Server{
		Addr:    *addr,
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("echoserver stopped")
}

// echoState is the shared message queue plus the set of live websocket
// clients.
type echoState struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	queue   []json.RawMessage
	clients map[*websocket.Conn]struct{}
}

func newEchoState(logger *slog.Logger) *echoState {
	return &echoState{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (es *echoState) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := es.upgrader.Upgrade(w, r, nil)
	if err != nil {
		es.logger.Warn("upgrade failed", "error", err)
		return
	}

	es.mu.Lock()
	es.clients[conn] = struct{}{}
	es.mu.Unlock()
	es.logger.Info("websocket client connected", "remote", conn.RemoteAddr())

	defer func() {
		es.mu.Lock()
		delete(es.clients, conn)
		es.mu.Unlock()
		conn.Close()
		es.logger.Info("websocket client disconnected", "remote", conn.RemoteAddr())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		es.broadcast(data)
	}
}

func (es *echoState) handlePoll(w http.ResponseWriter, r *http.Request) {
	es.mu.Lock()
	batch := es.queue
	es.queue = nil
	es.mu.Unlock()

	if batch == nil {
		batch = []json.RawMessage{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"messages": batch})
}

func (es *echoState) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(data) {
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}

	es.broadcast(data)
	w.WriteHeader(http.StatusNoContent)
}

// broadcast echoes a message to all websocket clients and queues it for
// the next poll.
func (es *echoState) broadcast(data []byte) {
	es.mu.Lock()
	es.queue = append(es.queue, json.RawMessage(data))
	clients := make([]*websocket.Conn, 0, len(es.clients))
	for c := range es.clients {
		clients = append(clients, c)
	}
	es.mu.Unlock()

	for _, c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			es.logger.Warn("broadcast write failed", "remote", c.RemoteAddr(), "error", err)
		}
	}
}
