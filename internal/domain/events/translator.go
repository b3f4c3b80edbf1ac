package events

// NewEnvelope wraps a domain event and its publish options into the envelope
// shape event buses transport.
func NewEnvelope(event DomainEvent, opts []PublishOption) EventEnvelope {
	params := ApplyOptions(opts)
	return EventEnvelope{
		Type:      event.EventType(),
		Key:       params.Key,
		Headers:   params.Headers,
		Timestamp: event.OccurredAt(),
		Payload:   event,
	}
}
