package manager

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/beatwave/connect/internal/backoff"
	"github.com/beatwave/connect/internal/connerr"
	"github.com/beatwave/connect/internal/fallback"
	"github.com/beatwave/connect/internal/model"
	"github.com/beatwave/connect/internal/quality"
	"github.com/beatwave/connect/internal/transport"
)

// Config configures a Manager.
type Config struct {
	WebSocketURL string // e.g. wss://api.beatwave.io/ws
	PollingURL   string // e.g. https://api.beatwave.io/poll
	AuthToken    string // Optional bearer token for both transports

	ConnectionTimeout time.Duration
	HeartbeatInterval time.Duration
	PollingInterval   time.Duration
	RequestTimeout    time.Duration

	MaxReconnectAttempts int
	ReconnectDelayBase   time.Duration
	MaxReconnectDelay    time.Duration

	FallbackPolicy  fallback.Mode
	AllowUpgrade    bool          // Probe for upgrading polling back to websocket
	UpgradeInterval time.Duration // Probe cadence when AllowUpgrade is set

	BufferSize int
}

func (c *Config) applyDefaults() {
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.PollingInterval <= 0 {
		c.PollingInterval = 3 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectDelayBase <= 0 {
		c.ReconnectDelayBase = time.Second
	}
	if c.MaxReconnectDelay < c.ReconnectDelayBase {
		c.MaxReconnectDelay = 30 * time.Second
	}
	if c.FallbackPolicy == "" {
		c.FallbackPolicy = fallback.ModeImmediate
	}
	if c.UpgradeInterval <= 0 {
		c.UpgradeInterval = 60 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
}

// StrategyPerformance summarizes how one transport has behaved over the
// manager's lifetime.
type StrategyPerformance struct {
	Attempts     int64
	Successes    int64
	Failures     int64
	MessagesSent int64
	AvgLatency   time.Duration
}

// Metrics is a read-only snapshot of connection state, statistics, and
// per-strategy performance.
type Metrics struct {
	Status              model.Status
	Stats               model.Stats
	StrategyPerformance map[model.Strategy]StrategyPerformance
}

type perfCounters struct {
	attempts     int64
	successes    int64
	failures     int64
	messagesSent int64
	latencySum   time.Duration
	latencyCount int64
}

// Manager owns the transport lifecycle and exposes the single public API
// of the connectivity layer. Exactly one transport is active at a time, or
// none (offline). Public methods are expected to be invoked from one
// control flow; internal transport events are serialized by a single event
// loop per active transport.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup

	bus     *bus
	monitor *quality.Monitor

	destroyed atomic.Bool

	sent         atomic.Int64
	received     atomic.Int64
	sendFailures atomic.Int64

	mu             sync.Mutex
	strategy       model.Strategy
	active         transport.Transport
	loopCancel     context.CancelFunc
	policy         fallback.Policy
	preferPolling  bool // Pinned by a fallback decision; connect tries polling first
	recovering     bool // A degradation path is in flight
	recoveryCancel context.CancelFunc
	perf           map[model.Strategy]*perfCounters
}

// New creates a Manager. It does not touch the network until Connect.
func New(cfg Config, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "connection_manager")

	rootCtx, rootCancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:        cfg,
		logger:     logger,
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		bus:        newBus(logger),
		monitor:    quality.NewMonitor(0, 0),
		strategy:   model.StrategyOffline,
		policy:     fallback.New(cfg.FallbackPolicy),
		perf:       make(map[model.Strategy]*perfCounters),
	}
}

// Connect establishes a session. WebSocket is attempted first unless a
// prior fallback decision pinned polling; on failure within the timeout the
// other transport is attempted before returning. The caller is never left
// in a connecting state: the result is a connected status or a terminal
// error with status offline.
func (m *Manager) Connect(ctx context.Context) error {
	if m.destroyed.Load() {
		return connerr.Destroyed()
	}

	m.mu.Lock()
	if m.active != nil && m.active.IsConnected() {
		m.mu.Unlock()
		return nil
	}
	// A caller retry takes over from any in-flight recovery: cancelling it
	// here keeps exactly one connection attempt able to install a transport.
	if m.recovering && m.recoveryCancel != nil {
		m.recoveryCancel()
	}
	m.strategy = model.StrategyConnecting
	preferPolling := m.preferPolling
	m.mu.Unlock()

	m.publishStatus(model.StrategyConnecting, false)

	order := []model.Strategy{model.StrategyWebSocket, model.StrategyPolling}
	if preferPolling {
		order = []model.Strategy{model.StrategyPolling, model.StrategyWebSocket}
	}

	bctx, cancel := m.boundCtx(ctx)
	defer cancel()

	var lastErr error
	for _, s := range order {
		if m.destroyed.Load() {
			m.setOffline()
			return connerr.Destroyed()
		}
		if bctx.Err() != nil {
			lastErr = connerr.Timeout(bctx.Err())
			break
		}

		err := m.connectStrategy(bctx, s)
		if err == nil {
			return nil
		}
		lastErr = err
		// Bad credentials will not improve on the other transport, and
		// authentication failures are never retried automatically.
		if connerr.IsKind(err, connerr.KindAuthentication) {
			break
		}
	}

	m.setOffline()
	m.publishStatus(model.StrategyOffline, false)

	if m.destroyed.Load() {
		return connerr.Destroyed()
	}
	if lastErr == nil {
		lastErr = connerr.Network(errors.New("no transport available"))
	}
	return lastErr
}

// Send validates and forwards one message to the active transport. The
// round trip feeds the quality monitor.
func (m *Manager) Send(ctx context.Context, msg model.Message) error {
	if m.destroyed.Load() {
		return connerr.Destroyed()
	}
	if err := msg.Validate(); err != nil {
		return connerr.Validation(err)
	}

	m.mu.Lock()
	t := m.active
	s := m.strategy
	m.mu.Unlock()

	if t == nil || !t.IsConnected() || (s != model.StrategyWebSocket && s != model.StrategyPolling) {
		return connerr.NoActiveConnection()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return connerr.Validation(err)
	}

	bctx, cancel := m.boundCtx(ctx)
	defer cancel()

	start := time.Now()
	if err := t.Send(bctx, data); err != nil {
		m.sendFailures.Inc()
		m.monitor.RecordFailure()
		m.recordSendFailure(s)
		if m.destroyed.Load() {
			return connerr.Destroyed()
		}
		m.maybeDegrade(t, err)
		return err
	}

	elapsed := time.Since(start)
	m.sent.Inc()
	m.monitor.RecordLatency(elapsed)
	m.recordSend(s, elapsed)
	m.maybeDegrade(t, nil)
	return nil
}

// OnMessage registers a subscriber for inbound messages. Subscribers are
// invoked synchronously in registration order.
func (m *Manager) OnMessage(h func(model.Message)) {
	if m.destroyed.Load() {
		return
	}
	m.bus.onMessage(h)
}

// OnStatusChange registers a subscriber for connection status transitions.
func (m *Manager) OnStatusChange(h func(model.Status)) {
	if m.destroyed.Load() {
		return
	}
	m.bus.onStatus(h)
}

// Disconnect closes the active transport and emits a terminal offline
// status. The manager stays reusable for a future Connect. Calling it
// again while already offline is a signal-free no-op.
func (m *Manager) Disconnect() error {
	if m.destroyed.Load() {
		return connerr.Destroyed()
	}
	m.teardown(true)
	return nil
}

// Destroy disconnects, stops all timers and loops, and clears subscribers.
// Every call after the first fails with a Destroyed error, as does every
// other operation on a destroyed manager.
func (m *Manager) Destroy() error {
	if !m.destroyed.CompareAndSwap(false, true) {
		return connerr.Destroyed()
	}

	m.teardown(true)
	m.rootCancel()
	m.wg.Wait()
	m.bus.clear()

	m.logger.Info("connection manager destroyed")
	return nil
}

// Strategy returns which transport is currently active, if any.
func (m *Manager) Strategy() model.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.strategy
}

// EnableFallback switches the policy used for post-connection degradation
// decisions. Safe to call at any time, including mid-connection; it only
// affects future decisions and never fails.
func (m *Manager) EnableFallback(mode fallback.Mode) {
	m.mu.Lock()
	m.policy = fallback.New(mode)
	m.mu.Unlock()
}

// Metrics returns a read-only snapshot of status, statistics, and
// per-strategy performance.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	strategy := m.strategy
	connected := m.active != nil && m.active.IsConnected()
	perf := make(map[model.Strategy]StrategyPerformance, len(m.perf))
	for s, p := range m.perf {
		sp := StrategyPerformance{
			Attempts:     p.attempts,
			Successes:    p.successes,
			Failures:     p.failures,
			MessagesSent: p.messagesSent,
		}
		if p.latencyCount > 0 {
			sp.AvgLatency = p.latencySum / time.Duration(p.latencyCount)
		}
		perf[s] = sp
	}
	m.mu.Unlock()

	return Metrics{
		Status: model.Status{
			Strategy:   strategy,
			Connected:  connected,
			ObservedAt: time.Now(),
		},
		Stats: model.Stats{
			MessagesSent:     m.sent.Load(),
			MessagesReceived: m.received.Load(),
			SendFailures:     m.sendFailures.Load(),
			QualityScore:     m.monitor.Score(),
			LatencyHistory:   m.monitor.Latencies(),
		},
		StrategyPerformance: perf,
	}
}

// connectStrategy attempts one transport and installs it on success.
func (m *Manager) connectStrategy(ctx context.Context, s model.Strategy) error {
	t := m.newTransport(s)
	m.recordAttempt(s)

	cctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout)
	err := t.Connect(cctx)
	cancel()

	if err != nil {
		m.recordFailure(s)
		m.logger.Warn("transport connect failed", "strategy", s, "error", err)
		t.Close()
		return err
	}

	m.recordSuccess(s)
	if err := m.install(ctx, t); err != nil {
		return err
	}
	m.publishStatus(s, true)
	m.logger.Info("connected", "strategy", s)
	return nil
}

// newTransport builds a fresh transport for the given strategy. Transports
// are single-use; every attempt gets a new one.
func (m *Manager) newTransport(s model.Strategy) transport.Transport {
	if s == model.StrategyPolling {
		return transport.NewPolling(transport.PollingConfig{
			URL:            m.cfg.PollingURL,
			AuthToken:      m.cfg.AuthToken,
			ConnectTimeout: m.cfg.ConnectionTimeout,
			PollInterval:   m.cfg.PollingInterval,
			RequestTimeout: m.cfg.RequestTimeout,
			BufferSize:     m.cfg.BufferSize,
		}, m.logger)
	}
	return transport.NewWebSocket(transport.WebSocketConfig{
		URL:               m.cfg.WebSocketURL,
		AuthToken:         m.cfg.AuthToken,
		ConnectTimeout:    m.cfg.ConnectionTimeout,
		HeartbeatInterval: m.cfg.HeartbeatInterval,
		BufferSize:        m.cfg.BufferSize,
	}, m.logger)
}

// install takes ownership of a connected transport and starts its event
// loop. The install is refused when the attempt's context was cancelled
// (its recovery was taken over by a caller, or the manager was destroyed),
// and any previously installed transport is closed first so exactly one
// transport is ever live.
func (m *Manager) install(ctx context.Context, t transport.Transport) error {
	loopCtx, cancel := context.WithCancel(m.rootCtx)

	m.mu.Lock()
	if m.destroyed.Load() || ctx.Err() != nil {
		m.mu.Unlock()
		cancel()
		t.Close()
		if m.destroyed.Load() {
			return connerr.Destroyed()
		}
		return connerr.Timeout(ctx.Err())
	}
	prev := m.active
	prevCancel := m.loopCancel
	m.active = t
	m.strategy = t.Strategy()
	m.loopCancel = cancel
	m.policy.Reset()
	m.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prev != nil {
		prev.Close()
	}

	m.monitor.Reset()

	m.wg.Add(1)
	go m.eventLoop(loopCtx, t)

	if m.cfg.AllowUpgrade && t.Strategy() == model.StrategyPolling {
		m.wg.Add(1)
		go m.upgradeLoop(loopCtx)
	}
	return nil
}

// eventLoop consumes one transport's events until it fails or is replaced.
// One event is fully processed before the next is dispatched.
func (m *Manager) eventLoop(ctx context.Context, t transport.Transport) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-t.Errors():
			if !ok {
				return
			}
			m.handleTransportError(ctx, t, err)
			return

		case in, ok := <-t.Messages():
			if !ok {
				return
			}
			m.handleInbound(in)
		}
	}
}

// handleInbound normalizes a raw frame into a Message and broadcasts it.
func (m *Manager) handleInbound(in transport.Inbound) {
	var msg model.Message
	if err := json.Unmarshal(in.Data, &msg); err != nil {
		m.logger.Warn("dropping unparseable inbound message", "error", err)
		return
	}
	if err := msg.Validate(); err != nil {
		m.logger.Warn("dropping malformed inbound message", "error", err)
		return
	}

	m.received.Inc()
	m.bus.publishMessage(msg)
}

// handleTransportError reacts to a mid-session transport failure. These
// are expected network behavior: they surface to callers only as status
// events while the manager reconnects or falls back per policy.
func (m *Manager) handleTransportError(ctx context.Context, t transport.Transport, err error) {
	if m.destroyed.Load() || ctx.Err() != nil {
		return
	}

	m.logger.Warn("transport error", "strategy", t.Strategy(), "error", err)
	m.monitor.RecordFailure()
	m.recordSendFailure(t.Strategy())

	m.mu.Lock()
	switchNow := m.policy.ShouldSwitch(m.monitor.Score(), true, time.Now())
	m.mu.Unlock()

	m.triggerRecovery(t, switchNow)
}

// maybeDegrade consults the fallback policy after a send. Quality-based
// degradation fires here when the score stays low for a sustained window.
func (m *Manager) maybeDegrade(t transport.Transport, sendErr error) {
	errored := sendErr != nil && connerr.IsRetryable(sendErr)

	m.mu.Lock()
	if m.active != t || m.recovering {
		m.mu.Unlock()
		return
	}
	should := m.policy.ShouldSwitch(m.monitor.Score(), errored, time.Now())
	m.mu.Unlock()

	if should {
		m.triggerRecovery(t, true)
	}
}

// triggerRecovery begins the degradation path for transport t. switchNow
// bypasses backoff on the failed transport and goes straight to the other
// one. Only one recovery runs at a time.
func (m *Manager) triggerRecovery(t transport.Transport, switchNow bool) {
	m.mu.Lock()
	if m.destroyed.Load() || m.active != t || m.recovering {
		m.mu.Unlock()
		return
	}
	recCtx, recCancel := context.WithCancel(m.rootCtx)
	m.recovering = true
	m.recoveryCancel = recCancel
	m.active = nil
	cancel := m.loopCancel
	m.loopCancel = nil
	m.strategy = model.StrategyConnecting
	m.policy.Reset()
	failed := t.Strategy()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.Close()
	m.publishStatus(model.StrategyConnecting, false)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer recCancel()
		defer func() {
			m.mu.Lock()
			m.recovering = false
			m.recoveryCancel = nil
			m.mu.Unlock()
		}()
		m.runRecovery(recCtx, failed, switchNow)
	}()
}

// runRecovery reconnects the failed transport with backoff (unless the
// policy asked for an immediate switch), then falls back to the other
// transport, then gives up offline. ctx is cancelled when a caller retry
// takes over or the manager is destroyed; a cancelled recovery exits
// silently without touching state.
func (m *Manager) runRecovery(ctx context.Context, failed model.Strategy, switchNow bool) {
	if !switchNow {
		if m.reconnect(ctx, failed) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("reconnect attempts exhausted, falling back", "strategy", failed)
	}
	if ctx.Err() != nil || m.destroyed.Load() {
		return
	}

	other := otherStrategy(failed)
	if m.tryConnect(ctx, other) {
		m.mu.Lock()
		m.preferPolling = other == model.StrategyPolling
		m.mu.Unlock()
		return
	}
	if ctx.Err() != nil || m.destroyed.Load() {
		return
	}

	m.setOffline()
	m.publishStatus(model.StrategyOffline, false)
}

// reconnect retries one strategy with exponential backoff until it
// succeeds, the attempt budget runs out, or ctx is cancelled.
func (m *Manager) reconnect(ctx context.Context, s model.Strategy) bool {
	sched := backoff.New(m.cfg.ReconnectDelayBase, m.cfg.MaxReconnectDelay, m.cfg.MaxReconnectAttempts)

	for {
		delay, ok := sched.Next()
		if !ok {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		m.logger.Info("attempting reconnection",
			"strategy", s,
			"attempt", sched.Attempt(),
			"max_attempts", m.cfg.MaxReconnectAttempts,
		)

		if m.tryConnect(ctx, s) {
			return true
		}
	}
}

// tryConnect is connectStrategy bound to the recovery lifetime instead of
// a caller context.
func (m *Manager) tryConnect(ctx context.Context, s model.Strategy) bool {
	if m.destroyed.Load() || ctx.Err() != nil {
		return false
	}
	return m.connectStrategy(ctx, s) == nil
}

// upgradeLoop probes the WebSocket endpoint while polling is active and
// switches back on success. Runs only when AllowUpgrade is configured.
func (m *Manager) upgradeLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.UpgradeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.attemptUpgrade(ctx) {
				return
			}
		}
	}
}

// attemptUpgrade returns true once polling has been replaced (or the
// window for upgrading has passed).
func (m *Manager) attemptUpgrade(ctx context.Context) bool {
	m.mu.Lock()
	old := m.active
	if m.recovering || m.strategy != model.StrategyPolling || old == nil {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	t := m.newTransport(model.StrategyWebSocket)
	m.recordAttempt(model.StrategyWebSocket)

	cctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectionTimeout)
	err := t.Connect(cctx)
	cancel()

	if err != nil {
		m.recordFailure(model.StrategyWebSocket)
		t.Close()
		return false
	}
	m.recordSuccess(model.StrategyWebSocket)

	m.mu.Lock()
	if m.recovering || m.active != old {
		// State moved underneath the probe; discard it.
		m.mu.Unlock()
		t.Close()
		return true
	}
	m.preferPolling = false
	m.mu.Unlock()

	// install closes the polling transport and cancels its loops.
	if err := m.install(m.rootCtx, t); err != nil {
		return true
	}
	m.publishStatus(model.StrategyWebSocket, true)
	m.logger.Info("upgraded to websocket")
	return true
}

// teardown closes the active transport and optionally emits the offline
// status. Emits nothing when already offline.
func (m *Manager) teardown(publish bool) {
	m.mu.Lock()
	t := m.active
	cancel := m.loopCancel
	wasActive := t != nil || m.strategy != model.StrategyOffline
	m.active = nil
	m.loopCancel = nil
	m.strategy = model.StrategyOffline
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if t != nil {
		t.Close()
	}
	if publish && wasActive {
		m.publishStatus(model.StrategyOffline, false)
	}
}

func (m *Manager) setOffline() {
	m.mu.Lock()
	m.strategy = model.StrategyOffline
	m.mu.Unlock()
}

func (m *Manager) publishStatus(s model.Strategy, connected bool) {
	m.bus.publishStatus(model.Status{
		Strategy:   s,
		Connected:  connected,
		ObservedAt: time.Now(),
	})
}

// boundCtx derives a context cancelled by either the caller or Destroy, so
// in-flight calls resolve instead of hanging.
func (m *Manager) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	bctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.rootCtx, cancel)
	return bctx, func() {
		stop()
		cancel()
	}
}

func otherStrategy(s model.Strategy) model.Strategy {
	if s == model.StrategyWebSocket {
		return model.StrategyPolling
	}
	return model.StrategyWebSocket
}

func (m *Manager) perfFor(s model.Strategy) *perfCounters {
	p, ok := m.perf[s]
	if !ok {
		p = &perfCounters{}
		m.perf[s] = p
	}
	return p
}

func (m *Manager) recordAttempt(s model.Strategy) {
	m.mu.Lock()
	m.perfFor(s).attempts++
	m.mu.Unlock()
}

func (m *Manager) recordSuccess(s model.Strategy) {
	m.mu.Lock()
	m.perfFor(s).successes++
	m.mu.Unlock()
}

func (m *Manager) recordFailure(s model.Strategy) {
	m.mu.Lock()
	m.perfFor(s).failures++
	m.mu.Unlock()
}

func (m *Manager) recordSend(s model.Strategy, latency time.Duration) {
	m.mu.Lock()
	p := m.perfFor(s)
	p.messagesSent++
	p.latencySum += latency
	p.latencyCount++
	m.mu.Unlock()
}

func (m *Manager) recordSendFailure(s model.Strategy) {
	m.mu.Lock()
	m.perfFor(s).failures++
	m.mu.Unlock()
}
