package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/beatwave/connect/internal/connerr"
	"github.com/beatwave/connect/internal/model"
)

// Consecutive poll failures tolerated before the link counts as down.
const maxPollFailures = 3

// PollingConfig configures a polling transport.
type PollingConfig struct {
	URL            string        // Poll endpoint; sends go to URL + "/send"
	AuthToken      string        // Optional bearer token
	ConnectTimeout time.Duration // Handshake request deadline
	PollInterval   time.Duration // Cadence of the poll loop
	RequestTimeout time.Duration // Per-request deadline (poll and send)
	BufferSize     int           // Inbound channel buffer
	HTTPClient     *http.Client  // Optional; defaults to a fresh client
}

// pollResponse is the wire format of a poll: zero or more messages in
// server order. An empty array is valid and means "nothing new".
type pollResponse struct {
	Messages []json.RawMessage `json:"messages"`
}

// Polling is the pull transport: it simulates a duplex channel over
// request/response. Outbound sends are independent POSTs, so send latency
// is not coupled to the poll interval.
type Polling struct {
	cfg    PollingConfig
	logger *slog.Logger
	client *http.Client

	messages chan Inbound
	errors   chan error

	connected atomic.Bool
	closed    atomic.Bool

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPolling creates a polling transport.
func NewPolling(cfg PollingConfig, logger *slog.Logger) *Polling {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Polling{
		cfg:      cfg,
		logger:   logger.With("transport", "polling"),
		client:   client,
		messages: make(chan Inbound, cfg.BufferSize),
		errors:   make(chan error, 1),
	}
}

// Strategy identifies this transport.
func (p *Polling) Strategy() model.Strategy {
	return model.StrategyPolling
}

// Connect performs a handshake poll to confirm reachability, then starts
// the recurring poll loop.
func (p *Polling) Connect(ctx context.Context) error {
	if p.closed.Load() {
		return connerr.Network(ErrAlreadyClosed)
	}

	handshakeCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	msgs, err := p.poll(handshakeCtx)
	if err != nil {
		return err
	}

	// The handshake is a real poll; anything it returned is delivered, not
	// dropped.
	for _, raw := range msgs {
		select {
		case p.messages <- Inbound{Data: raw, ReceivedAt: time.Now()}:
		default:
			p.logger.Warn("inbound buffer full, dropping handshake message")
		}
	}

	loopCtx, loopCancel := context.WithCancel(context.Background())
	p.cancel = loopCancel
	p.connected.Store(true)

	p.wg.Add(1)
	go p.pollLoop(loopCtx)

	p.logger.Debug("polling connected", "url", p.cfg.URL, "interval", p.cfg.PollInterval)

	return nil
}

// Send posts one message to the send endpoint, bounded by the request
// timeout. It does not wait for the poll cycle.
func (p *Polling) Send(ctx context.Context, data []byte) error {
	if p.closed.Load() {
		return connerr.Network(ErrAlreadyClosed)
	}
	if !p.connected.Load() {
		return connerr.Network(ErrNotConnected)
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.cfg.URL+"/send", bytes.NewReader(data))
	if err != nil {
		return connerr.Network(fmt.Errorf("create send request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	p.setAuth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return connerr.Timeout(err)
		}
		return connerr.Network(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return connerr.FromStatusCode(resp.StatusCode)
	}
	return nil
}

// Close stops the poll loop. The timer is cancelled exactly once; a
// dangling timer after teardown is a defect.
func (p *Polling) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		p.connected.Store(false)
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
	return nil
}

// Messages returns the inbound channel.
func (p *Polling) Messages() <-chan Inbound {
	return p.messages
}

// Errors returns the asynchronous error channel.
func (p *Polling) Errors() <-chan error {
	return p.errors
}

// IsConnected reports whether the poll loop is live.
func (p *Polling) IsConnected() bool {
	return p.connected.Load()
}

// pollLoop issues a poll every PollInterval and forwards any returned
// messages in server order.
func (p *Polling) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pollCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
			msgs, err := p.poll(pollCtx)
			cancel()

			if err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				p.logger.Warn("poll failed", "failures", failures, "error", err)
				if failures >= maxPollFailures {
					p.connected.Store(false)
					p.reportError(err)
					return
				}
				continue
			}
			failures = 0

			for _, raw := range msgs {
				select {
				case p.messages <- Inbound{Data: raw, ReceivedAt: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// poll issues one poll request and decodes the message batch.
func (p *Polling) poll(ctx context.Context) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, connerr.Network(fmt.Errorf("create poll request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	p.setAuth(req)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, connerr.Timeout(err)
		}
		return nil, connerr.Network(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, connerr.FromStatusCode(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connerr.Network(fmt.Errorf("read poll response: %w", err))
	}

	var pr pollResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, connerr.Network(fmt.Errorf("parse poll response: %w", err))
	}
	return pr.Messages, nil
}

func (p *Polling) setAuth(req *http.Request) {
	if p.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.AuthToken)
	}
}

func (p *Polling) reportError(err error) {
	select {
	case p.errors <- err:
	default:
	}
}
