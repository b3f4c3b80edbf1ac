// Package events defines how domain changes leave the process: the event
// contract, the envelope buses carry, and the publishing ports.
package events

import "context"

// DomainEventPublisher is what domain and application code depends on to
// announce a change.
type DomainEventPublisher interface {
	PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error
}

// EventBus moves envelopes to their destination, Kafka in production.
type EventBus interface {
	Publish(ctx context.Context, event EventEnvelope, opts ...PublishOption) error

	// Close flushes pending work and releases the transport.
	Close() error
}
