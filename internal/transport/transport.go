package transport

import (
	"context"
	"errors"
	"time"

	"github.com/beatwave/connect/internal/model"
)

// Transport-level sentinel errors. Both implementations wrap them into the
// connerr taxonomy before surfacing.
var (
	ErrNotConnected    = errors.New("transport not connected")
	ErrAlreadyClosed   = errors.New("transport already closed")
	ErrStaleConnection = errors.New("connection stale (no heartbeat)")
)

// Inbound is one raw message received from a transport, with the local
// timestamp of receipt.
type Inbound struct {
	Data       []byte
	ReceivedAt time.Time
}

// Transport is one physical mechanism for moving messages: WebSocket or
// HTTP polling. Exactly two implementations exist.
//
// A Transport is single-use: Connect may be called once; after Close a
// fresh value must be constructed for the next attempt. Transports never
// activate themselves; lifecycle is owned entirely by the manager.
type Transport interface {
	// Connect establishes the channel. It is bounded by the transport's
	// configured timeout and by ctx, and never leaves a half-open resource
	// on failure.
	Connect(ctx context.Context) error

	// Send delivers one raw message. It fails immediately when the
	// transport is not connected; no implicit queueing.
	Send(ctx context.Context, data []byte) error

	// Close tears the channel down. Idempotent.
	Close() error

	// Messages returns the inbound message channel, in receipt order.
	Messages() <-chan Inbound

	// Errors surfaces asynchronous failures after a successful Connect.
	// One terminal error is sent per connection lifetime.
	Errors() <-chan error

	// IsConnected reports the current link state.
	IsConnected() bool

	// Strategy identifies the mechanism.
	Strategy() model.Strategy
}
