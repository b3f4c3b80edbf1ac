// Package memory provides an in-process event bus. It is used when no Kafka
// brokers are configured and in tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
)

// ErrClosed is returned when publishing to a closed bus.
var ErrClosed = errors.New("event bus closed")

// HandlerFunc receives published envelopes.
type HandlerFunc func(ctx context.Context, env events.EventEnvelope) error

var _ events.EventBus = (*EventBus)(nil)

// EventBus delivers each published envelope synchronously to every handler
// subscribed to its type.
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[events.EventType]map[int]HandlerFunc
	closed   bool
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[events.EventType]map[int]HandlerFunc)}
}

// Subscribe registers handler for the given event types until ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, eventTypes []events.EventType, handler HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	for _, et := range eventTypes {
		if b.handlers[et] == nil {
			b.handlers[et] = make(map[int]HandlerFunc)
		}
		b.handlers[et][id] = handler
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, et := range eventTypes {
			delete(b.handlers[et], id)
		}
	}()

	return nil
}

// Publish applies opts to event and hands it to each subscriber in
// subscription order, stopping at the first handler error.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
	}
	if params.Headers != nil {
		event.Headers = params.Headers
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	// Copy so handlers run without the lock held.
	subs := b.handlers[event.Type]
	ids := make([]int, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]HandlerFunc, len(ids))
	for i, id := range ids {
		handlers[i] = subs[id]
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the bus accepting events.
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[events.EventType]map[int]HandlerFunc)
	return nil
}
