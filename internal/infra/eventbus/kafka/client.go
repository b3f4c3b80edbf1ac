package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// ClientConfig contains all configuration needed for Kafka client setup
type ClientConfig struct {
	Brokers  []string
	ClientID string
}

// NewClient creates a Kafka client configured for keyed, fully acknowledged
// production.
func NewClient(cfg *ClientConfig) (sarama.Client, error) {
	config := sarama.NewConfig()
	config.ClientID = cfg.ClientID

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Idempotent = true
	config.Producer.Retry.Max = 5
	config.Net.MaxOpenRequests = 1

	config.Version = sarama.V3_6_0_0

	return sarama.NewClient(cfg.Brokers, config)
}

// ConnectEventBus dials Kafka and builds an EventBus, retrying for up to five
// minutes while the brokers are unavailable.
func ConnectEventBus(
	clientCfg *ClientConfig,
	topics Topics,
	logger *logger.Logger,
	metrics EventBusMetrics,
	tracer trace.Tracer,
) (*EventBus, error) {
	var bus *EventBus

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 5 * time.Minute
	expBackoff.InitialInterval = 5 * time.Second

	operation := func() error {
		client, err := NewClient(clientCfg)
		if err != nil {
			logger.Warn(context.Background(), "kafka unavailable, will retry", "error", err)
			return fmt.Errorf("creating client: %w", err)
		}

		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			client.Close()
			return fmt.Errorf("creating producer: %w", err)
		}

		bus, err = NewEventBus(producer, topics, logger, metrics, tracer)
		if err != nil {
			producer.Close()
			client.Close()
			return backoff.Permanent(fmt.Errorf("creating event bus: %w", err))
		}
		bus.client = client
		return nil
	}

	if err := backoff.Retry(operation, expBackoff); err != nil {
		return nil, fmt.Errorf("failed to connect event bus after retries: %w", err)
	}

	return bus, nil
}
