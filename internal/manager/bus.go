package manager

import (
	"log/slog"
	"sync"

	"github.com/beatwave/connect/internal/model"
)

// bus is the manager-scoped status/message notification list. Subscribers
// are invoked synchronously in registration order; a panicking handler is
// isolated so the rest of the dispatch loop still runs.
type bus struct {
	logger *slog.Logger

	mu              sync.Mutex
	messageHandlers []func(model.Message)
	statusHandlers  []func(model.Status)
}

func newBus(logger *slog.Logger) *bus {
	return &bus{logger: logger}
}

func (b *bus) onMessage(h func(model.Message)) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.messageHandlers = append(b.messageHandlers, h)
	b.mu.Unlock()
}

func (b *bus) onStatus(h func(model.Status)) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.statusHandlers = append(b.statusHandlers, h)
	b.mu.Unlock()
}

func (b *bus) publishMessage(msg model.Message) {
	b.mu.Lock()
	handlers := make([]func(model.Message), len(b.messageHandlers))
	copy(handlers, b.messageHandlers)
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatchMessage(h, msg)
	}
}

func (b *bus) publishStatus(status model.Status) {
	b.mu.Lock()
	handlers := make([]func(model.Status), len(b.statusHandlers))
	copy(handlers, b.statusHandlers)
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatchStatus(h, status)
	}
}

func (b *bus) dispatchMessage(h func(model.Message), msg model.Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("message handler panicked", "panic", r, "message_id", msg.ID)
		}
	}()
	h(msg)
}

func (b *bus) dispatchStatus(h func(model.Status), status model.Status) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("status handler panicked", "panic", r, "strategy", status.Strategy)
		}
	}()
	h(status)
}

func (b *bus) clear() {
	b.mu.Lock()
	b.messageHandlers = nil
	b.statusHandlers = nil
	b.mu.Unlock()
}
