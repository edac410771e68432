package audit

import (
	"context"
	"sync"

	apperrors "github.com/tenantgate/tenant-gate/internal/pkg/errors"
)

// MemoryBus is an in-process bus delivering events synchronously to
// subscribed handlers. Used in the monolith deployment and in tests.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool
}

// NewMemoryBus creates a new in-memory bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[string][]Handler),
	}
}

// Publish delivers the event to all subscribers of the topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return apperrors.New(apperrors.CodeUnavailable, "audit bus is closed")
	}

	// Synchronous delivery keeps test assertions deterministic; handlers
	// are expected to be cheap.
	for _, handler := range b.handlers[topic] {
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler for events on a topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return apperrors.New(apperrors.CodeUnavailable, "audit bus is closed")
	}

	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close closes the bus.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]Handler)
	return nil
}
