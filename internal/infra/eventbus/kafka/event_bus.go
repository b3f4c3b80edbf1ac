// Package kafka publishes domain events to Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/internal/infra/eventbus/kafka/tracing"
	"github.com/ahrav/gsa-vigilante/internal/infra/eventbus/serialization"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// EventBusMetrics defines metrics operations needed to monitor Kafka publishing.
type EventBusMetrics interface {
	IncMessagePublished(ctx context.Context, topic string)
	IncPublishError(ctx context.Context, topic string)
}

// Topics names the Kafka topic each event type is routed to.
type Topics struct {
	// StatusTopic receives DatasetStatusChanged events.
	StatusTopic string
	// DispatchTopic receives DatasetCopyDispatched events. Empty routes them to StatusTopic.
	DispatchTopic string
}

var _ events.EventBus = (*EventBus)(nil)

// EventBus implements events.EventBus on top of a Kafka sync producer.
type EventBus struct {
	producer sarama.SyncProducer
	client   sarama.Client // owned when built by ConnectEventBus

	topicMap map[events.EventType]string

	logger  *logger.Logger
	tracer  trace.Tracer
	metrics EventBusMetrics
}

// NewEventBus creates an EventBus publishing through producer.
func NewEventBus(
	producer sarama.SyncProducer,
	topics Topics,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	if topics.StatusTopic == "" {
		return nil, errors.New("kafka status topic is required")
	}
	if topics.DispatchTopic == "" {
		topics.DispatchTopic = topics.StatusTopic
	}

	return &EventBus{
		producer: producer,
		topicMap: map[events.EventType]string{
			transfer.EventTypeDatasetStatusChanged:  topics.StatusTopic,
			transfer.EventTypeDatasetCopyDispatched: topics.DispatchTopic,
		},
		logger:  logger.With("component", "kafka_event_bus"),
		tracer:  tracer,
		metrics: metrics,
	}, nil
}

// Publish serializes the envelope and sends it to the topic mapped to its type.
func (b *EventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	topic, ok := b.topicMap[event.Type]
	if !ok {
		return fmt.Errorf("unknown event type '%s', no topic mapped", event.Type)
	}

	ctx, span := tracing.StartProducerSpan(ctx, topic, b.tracer)
	defer span.End()

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
	}
	if params.Headers != nil {
		event.Headers = params.Headers
	}
	span.SetAttributes(attribute.String("event.type", string(event.Type)), attribute.String("event.key", event.Key))

	msgBytes, err := serialization.SerializeEventEnvelope(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "serialization failed")
		b.incPublishError(ctx, topic)
		return fmt.Errorf("failed to serialize payload for event %s: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(msgBytes),
	}
	for k, v := range event.Headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	tracing.InjectTraceContext(ctx, msg)

	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		b.incPublishError(ctx, topic)
		return fmt.Errorf("failed to send message to kafka topic %s: %w", topic, err)
	}

	if b.metrics != nil {
		b.metrics.IncMessagePublished(ctx, topic)
	}
	b.logger.Debug(ctx, "Published message to Kafka",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"key", event.Key,
	)
	return nil
}

func (b *EventBus) incPublishError(ctx context.Context, topic string) {
	if b.metrics != nil {
		b.metrics.IncPublishError(ctx, topic)
	}
}

// Close flushes and closes the producer, and the client when owned.
func (b *EventBus) Close() error {
	err := b.producer.Close()
	if b.client != nil {
		err = errors.Join(err, b.client.Close())
	}
	return err
}
