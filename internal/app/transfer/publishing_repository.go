package transfer

import (
	"context"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

var _ transfer.DatasetRepository = (*PublishingRepository)(nil)

// PublishingRepository announces every applied transition as a
// DatasetStatusChanged event. Publish failures are logged; they never undo or
// fail the update.
type PublishingRepository struct {
	transfer.DatasetRepository
	publisher events.DomainEventPublisher
	logger    *logger.Logger
}

// NewPublishingRepository wraps repo.
func NewPublishingRepository(
	repo transfer.DatasetRepository,
	publisher events.DomainEventPublisher,
	logger *logger.Logger,
) *PublishingRepository {
	return &PublishingRepository{
		DatasetRepository: repo,
		publisher:         publisher,
		logger:            logger.With("component", "publishing_repository"),
	}
}

// UpdateStatus applies the guarded update and publishes it when it took effect.
func (r *PublishingRepository) UpdateStatus(
	ctx context.Context,
	ds transfer.DatasetFile,
	expected, next transfer.DatasetStatus,
) (bool, error) {
	applied, err := r.DatasetRepository.UpdateStatus(ctx, ds, expected, next)
	if err != nil || !applied {
		return applied, err
	}

	evt := transfer.NewDatasetStatusChangedEvent(ds, expected, next)
	if perr := r.publisher.PublishDomainEvent(ctx, evt, events.WithKey(ds.Label())); perr != nil {
		r.logger.Warn(ctx, "publishing status change failed",
			"dataset", ds.String(),
			"from", expected.String(),
			"to", next.String(),
			"error", perr,
		)
	}
	return true, nil
}
