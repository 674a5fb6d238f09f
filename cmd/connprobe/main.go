package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/beatwave/connect/internal/config"
	"github.com/beatwave/connect/internal/fallback"
	"github.com/beatwave/connect/internal/manager"
	"github.com/beatwave/connect/internal/model"
	"github.com/beatwave/connect/internal/version"
)

// connprobe exercises the connectivity layer against live endpoints: it
// connects, sends probe messages on a fixed cadence, logs everything it
// receives, and reports metrics periodically.
func main() {
	configPath := flag.String("config", "configs/connect.example.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting connprobe",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"websocket_url", cfg.Endpoints.WebSocketURL,
		"polling_url", cfg.Endpoints.PollingURL,
		"fallback_policy", cfg.Fallback.Policy,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	mgr := manager.Shared(manager.Config{
		WebSocketURL:         cfg.Endpoints.WebSocketURL,
		PollingURL:           cfg.Endpoints.PollingURL,
		AuthToken:            cfg.Endpoints.AuthToken,
		ConnectionTimeout:    cfg.Connection.ConnectionTimeout,
		HeartbeatInterval:    cfg.Connection.HeartbeatInterval,
		PollingInterval:      cfg.Connection.PollingInterval,
		RequestTimeout:       cfg.Connection.RequestTimeout,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		ReconnectDelayBase:   cfg.Connection.ReconnectDelayBase,
		MaxReconnectDelay:    cfg.Connection.MaxReconnectDelay,
		FallbackPolicy:       fallback.Mode(cfg.Fallback.Policy),
		AllowUpgrade:         cfg.Fallback.AllowUpgrade,
		UpgradeInterval:      cfg.Fallback.UpgradeInterval,
		BufferSize:           cfg.Connection.BufferSize,
	}, logger)
	defer func() {
		if err := manager.DestroyShared(); err != nil {
			logger.Error("destroy failed", "error", err)
		}
	}()

	mgr.OnStatusChange(func(s model.Status) {
		logger.Info("status changed",
			"strategy", s.Strategy,
			"connected", s.Connected,
		)
	})
	mgr.OnMessage(func(msg model.Message) {
		logger.Info("received message",
			"id", msg.ID,
			"type", msg.Type,
			"payload_bytes", len(msg.Payload),
		)
	})

	if err := mgr.Connect(ctx); err != nil {
		logger.Error("initial connect failed", "error", err)
		for _, action := range manager.RecoveryActions(err, mgr) {
			logger.Info("suggested recovery action",
				"action", action.Type,
				"target", action.Target,
			)
		}
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Probe sender
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Probe.SendInterval)
		defer ticker.Stop()

		var seq int
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				seq++
				payload, _ := json.Marshal(map[string]any{
					"seq":     seq,
					"sent_at": time.Now().UnixMilli(),
				})
				msg := model.NewMessage("probe", payload)
				if err := mgr.Send(gctx, msg); err != nil {
					logger.Warn("probe send failed", "seq", seq, "error", err)
					continue
				}
				logger.Debug("probe sent", "seq", seq, "id", msg.ID)
			}
		}
	})

	// Metrics reporter
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Probe.ReportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				m := mgr.Metrics()
				logger.Info("connection metrics",
					"strategy", m.Status.Strategy,
					"connected", m.Status.Connected,
					"sent", m.Stats.MessagesSent,
					"received", m.Stats.MessagesReceived,
					"send_failures", m.Stats.SendFailures,
					"quality_score", fmt.Sprintf("%.3f", m.Stats.QualityScore),
				)
				for strategy, perf := range m.StrategyPerformance {
					logger.Debug("strategy performance",
						"strategy", strategy,
						"attempts", perf.Attempts,
						"successes", perf.Successes,
						"failures", perf.Failures,
						"avg_latency", perf.AvgLatency,
					)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("probe loop failed", "error", err)
		os.Exit(1)
	}

	logger.Info("connprobe stopped")
}
