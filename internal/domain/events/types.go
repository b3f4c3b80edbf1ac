package events

// EventType names a kind of domain event. Buses route on it.
type EventType string

// PublishOption adjusts how a single event is published.
type PublishOption func(*PublishParams)

// PublishParams collects the per-publish settings.
type PublishParams struct {
	// Key groups events that must stay in order, such as all transitions of
	// one dataset label.
	Key string

	Headers map[string]string
}

// WithKey sets the ordering key.
func WithKey(key string) PublishOption {
	return func(p *PublishParams) { p.Key = key }
}

// WithHeaders adds headers to the event. Repeated options merge; a later value
// for the same header wins.
func WithHeaders(headers map[string]string) PublishOption {
	return func(p *PublishParams) {
		if len(headers) == 0 {
			return
		}
		if p.Headers == nil {
			p.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			p.Headers[k] = v
		}
	}
}

// ApplyOptions folds opts into a PublishParams value.
func ApplyOptions(opts []PublishOption) PublishParams {
	var p PublishParams
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
