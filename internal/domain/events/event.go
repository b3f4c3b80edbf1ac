package events

import "time"

// DomainEvent is implemented by every event the domain emits.
type DomainEvent interface {
	// EventType identifies the category of this event for routing and handling.
	EventType() EventType

	// OccurredAt records when the event happened in the domain.
	OccurredAt() time.Time
}

// EventEnvelope encapsulates all event data flowing through the event bus,
// providing a standardized format for event distribution.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business identifier
	// like a dataset label that events can be grouped or partitioned by.
	Key string

	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on the EventType.
	Payload any
}
