package transfer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

var (
	_ transfer.DatasetRepository = (*ShardedRepository)(nil)
	_ transfer.DatasetRepository = (*FailoverRepository)(nil)
)

// ErrNoEndpoints is returned by FailoverRepository when an update cannot be
// routed because no database endpoint is configured.
var ErrNoEndpoints = errors.New("no database endpoints configured")

// ShardedRepository spreads one logical dataset database over several shards.
// Every dataset lives on exactly one shard.
type ShardedRepository struct {
	shards []transfer.DatasetRepository
	tracer trace.Tracer
}

// NewShardedRepository creates a ShardedRepository over shards.
func NewShardedRepository(tracer trace.Tracer, shards ...transfer.DatasetRepository) *ShardedRepository {
	return &ShardedRepository{shards: shards, tracer: tracer}
}

// QueryStates asks every shard concurrently and concatenates the per-state
// lists in shard order. Any shard failure fails the whole query.
func (r *ShardedRepository) QueryStates(ctx context.Context, statuses []transfer.DatasetStatus) (transfer.StateSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "sharded_repository.query_states",
		trace.WithAttributes(attribute.Int("shard_count", len(r.shards))))
	defer span.End()

	partials := make([]transfer.StateSnapshot, len(r.shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range r.shards {
		i, shard := i, shard
		g.Go(func() error {
			snap, err := shard.QueryStates(gctx, statuses)
			if err != nil {
				return fmt.Errorf("shard %d: %w", i, err)
			}
			partials[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "shard query failed")
		return nil, err
	}

	merged := make(transfer.StateSnapshot)
	for _, p := range partials {
		merged.Merge(p)
	}

	span.SetAttributes(attribute.Int("dataset_count", merged.Len()))
	span.SetStatus(codes.Ok, "shards merged")
	return merged, nil
}

// UpdateStatus offers the guarded update to each shard in turn. The shard that
// owns the dataset applies it; the rest match no row.
func (r *ShardedRepository) UpdateStatus(
	ctx context.Context,
	ds transfer.DatasetFile,
	expected, next transfer.DatasetStatus,
) (bool, error) {
	var errs []error
	for i, shard := range r.shards {
		applied, err := shard.UpdateStatus(ctx, ds, expected, next)
		if err != nil {
			errs = append(errs, fmt.Errorf("shard %d: %w", i, err))
			continue
		}
		if applied {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

// Endpoint names one independent dataset database.
type Endpoint struct {
	Name       string
	Repository transfer.DatasetRepository
}

// FailoverRepository reads from the first endpoint that answers. Updates go to
// the endpoint that served the most recent successful read, falling back to
// the others in order when it fails.
type FailoverRepository struct {
	endpoints []Endpoint

	mu     sync.Mutex
	active int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewFailoverRepository creates a FailoverRepository trying endpoints in order.
func NewFailoverRepository(logger *logger.Logger, tracer trace.Tracer, endpoints ...Endpoint) *FailoverRepository {
	return &FailoverRepository{
		endpoints: endpoints,
		logger:    logger.With("component", "failover_repository"),
		tracer:    tracer,
	}
}

// QueryStates returns the snapshot from the first endpoint that succeeds. When
// every endpoint fails the condition is logged and an empty snapshot returned.
func (r *FailoverRepository) QueryStates(ctx context.Context, statuses []transfer.DatasetStatus) (transfer.StateSnapshot, error) {
	ctx, span := r.tracer.Start(ctx, "failover_repository.query_states",
		trace.WithAttributes(attribute.Int("endpoint_count", len(r.endpoints))))
	defer span.End()

	for i, ep := range r.endpoints {
		snap, err := ep.Repository.QueryStates(ctx, statuses)
		if err != nil {
			r.logger.Warn(ctx, "dataset state query failed, trying next endpoint",
				"endpoint", ep.Name,
				"error", err,
			)
			span.AddEvent("endpoint_failed", trace.WithAttributes(attribute.String("endpoint", ep.Name)))
			continue
		}

		r.mu.Lock()
		r.active = i
		r.mu.Unlock()

		span.SetAttributes(attribute.String("endpoint", ep.Name))
		span.SetStatus(codes.Ok, "snapshot retrieved")
		return snap, nil
	}

	r.logger.Error(ctx, "dataset state query failed on every endpoint", "endpoint_count", len(r.endpoints))
	span.SetStatus(codes.Error, "all endpoints failed")
	return make(transfer.StateSnapshot), nil
}

// UpdateStatus applies the guarded update on the active endpoint, moving on to
// the remaining endpoints only when the active one errors.
func (r *FailoverRepository) UpdateStatus(
	ctx context.Context,
	ds transfer.DatasetFile,
	expected, next transfer.DatasetStatus,
) (bool, error) {
	if len(r.endpoints) == 0 {
		return false, ErrNoEndpoints
	}

	r.mu.Lock()
	start := r.active
	r.mu.Unlock()

	var errs []error
	for n := 0; n < len(r.endpoints); n++ {
		ep := r.endpoints[(start+n)%len(r.endpoints)]
		applied, err := ep.Repository.UpdateStatus(ctx, ds, expected, next)
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", ep.Name, err))
			continue
		}
		return applied, nil
	}
	return false, errors.Join(errs...)
}
