package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

// MockEventBus is a manual mock implementation of events.EventBus.
type MockEventBus struct {
	publishFunc func(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error
}

func (m *MockEventBus) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	return m.publishFunc(ctx, event, opts...)
}

func (m *MockEventBus) Close() error { return nil }

func TestDomainEventPublisher_PublishDomainEvent_Success(t *testing.T) {
	ctx := context.Background()
	ds := transfer.MustDatasetFile("GS-2024A-Q-1-1-001", "S1")
	event := transfer.NewDatasetStatusChangedEvent(ds, transfer.DatasetStatusPending, transfer.DatasetStatusQueued)

	var got events.EventEnvelope
	bus := &MockEventBus{
		publishFunc: func(ctx context.Context, evt events.EventEnvelope, opts ...events.PublishOption) error {
			got = evt
			return nil
		},
	}

	err := NewDomainEventPublisher(bus).PublishDomainEvent(ctx, event, events.WithKey(ds.Label()))
	require.NoError(t, err)

	assert.Equal(t, event.EventType(), got.Type)
	assert.Equal(t, event.OccurredAt(), got.Timestamp)
	assert.Equal(t, ds.Label(), got.Key)
	assert.Equal(t, event, got.Payload)
}

func TestDomainEventPublisher_PublishDomainEvent_Error(t *testing.T) {
	wantErr := errors.New("bus down")
	bus := &MockEventBus{
		publishFunc: func(context.Context, events.EventEnvelope, ...events.PublishOption) error { return wantErr },
	}

	event := transfer.NewDatasetStatusChangedEvent(
		transfer.MustDatasetFile("GS-1", "S1"), transfer.DatasetStatusPending, transfer.DatasetStatusQueued)
	err := NewDomainEventPublisher(bus).PublishDomainEvent(context.Background(), event)
	assert.ErrorIs(t, err, wantErr)
}
