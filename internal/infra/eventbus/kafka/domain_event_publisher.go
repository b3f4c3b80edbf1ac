package kafka

import (
	"context"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
)

var _ events.DomainEventPublisher = (*DomainEventPublisher)(nil)

// DomainEventPublisher adapts domain events to the event bus envelope format.
type DomainEventPublisher struct {
	eventBus events.EventBus
}

// NewDomainEventPublisher creates a publisher distributing domain events
// through bus.
func NewDomainEventPublisher(bus events.EventBus) *DomainEventPublisher {
	return &DomainEventPublisher{eventBus: bus}
}

// PublishDomainEvent wraps event in an envelope and publishes it.
func (pub *DomainEventPublisher) PublishDomainEvent(
	ctx context.Context,
	event events.DomainEvent,
	opts ...events.PublishOption,
) error {
	return pub.eventBus.Publish(ctx, events.NewEnvelope(event, opts), opts...)
}
