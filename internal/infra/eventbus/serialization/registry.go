// Package serialization translates domain events to and from their wire format.
// Each event type registers a pair of functions mapping the event to a protobuf
// Struct; the envelope carrying it is a Struct as well, so consumers can decode
// messages without generated code.
package serialization

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
)

// SerializeFunc converts a domain object into its wire fields.
type SerializeFunc func(payload any) (*structpb.Struct, error)

// DeserializeFunc converts wire fields back into a domain object.
type DeserializeFunc func(fields *structpb.Struct) (any, error)

var (
	serializerRegistry   = map[events.EventType]SerializeFunc{}
	deserializerRegistry = map[events.EventType]DeserializeFunc{}
)

// RegisterSerializeFunc registers a serialization function for a given event type.
func RegisterSerializeFunc(eventType events.EventType, fn SerializeFunc) {
	serializerRegistry[eventType] = fn
}

// RegisterDeserializeFunc registers a deserialization function for a given event type.
func RegisterDeserializeFunc(eventType events.EventType, fn DeserializeFunc) {
	deserializerRegistry[eventType] = fn
}

func init() {
	registerTransferEvents()
}

// SerializeEventEnvelope encodes an envelope and its payload into bytes.
func SerializeEventEnvelope(env events.EventEnvelope) ([]byte, error) {
	fn, ok := serializerRegistry[env.Type]
	if !ok {
		return nil, fmt.Errorf("no serializer registered for eventType=%s", env.Type)
	}
	payload, err := fn(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("serializing %s payload: %w", env.Type, err)
	}

	headers := make(map[string]any, len(env.Headers))
	for k, v := range env.Headers {
		headers[k] = v
	}
	hdr, err := structpb.NewStruct(headers)
	if err != nil {
		return nil, fmt.Errorf("encoding headers: %w", err)
	}

	wire := &structpb.Struct{Fields: map[string]*structpb.Value{
		"type":      structpb.NewStringValue(string(env.Type)),
		"key":       structpb.NewStringValue(env.Key),
		"timestamp": structpb.NewStringValue(env.Timestamp.UTC().Format(time.RFC3339Nano)),
		"headers":   structpb.NewStructValue(hdr),
		"payload":   structpb.NewStructValue(payload),
	}}
	return proto.Marshal(wire)
}

// DeserializeEventEnvelope decodes bytes produced by SerializeEventEnvelope.
func DeserializeEventEnvelope(data []byte) (events.EventEnvelope, error) {
	var wire structpb.Struct
	if err := proto.Unmarshal(data, &wire); err != nil {
		return events.EventEnvelope{}, fmt.Errorf("decoding envelope: %w", err)
	}

	f := wire.GetFields()
	env := events.EventEnvelope{
		Type: events.EventType(f["type"].GetStringValue()),
		Key:  f["key"].GetStringValue(),
	}

	ts, err := time.Parse(time.RFC3339Nano, f["timestamp"].GetStringValue())
	if err != nil {
		return events.EventEnvelope{}, fmt.Errorf("decoding timestamp: %w", err)
	}
	env.Timestamp = ts

	if hdr := f["headers"].GetStructValue(); hdr != nil && len(hdr.GetFields()) > 0 {
		env.Headers = make(map[string]string, len(hdr.GetFields()))
		for k, v := range hdr.GetFields() {
			env.Headers[k] = v.GetStringValue()
		}
	}

	fn, ok := deserializerRegistry[env.Type]
	if !ok {
		return events.EventEnvelope{}, fmt.Errorf("no deserializer registered for eventType=%s", env.Type)
	}
	if env.Payload, err = fn(f["payload"].GetStructValue()); err != nil {
		return events.EventEnvelope{}, fmt.Errorf("deserializing %s payload: %w", env.Type, err)
	}
	return env, nil
}
