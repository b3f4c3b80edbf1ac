package transfer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

func TestShardedRepository_QueryStatesConcatenates(t *testing.T) {
	t.Parallel()

	a := transfer.MustDatasetFile("GS-2024A-Q-1-1-001", "S1")
	b := transfer.MustDatasetFile("GS-2024A-Q-2-1-001", "S2")
	c := transfer.MustDatasetFile("GS-2024A-Q-3-1-001", "S3")

	shard1, shard2 := newFakeRepository(), newFakeRepository()
	shard1.put(a, transfer.DatasetStatusPending)
	shard2.put(b, transfer.DatasetStatusPending)
	shard2.put(c, transfer.DatasetStatusQueued)

	repo := NewShardedRepository(noop.NewTracerProvider().Tracer("test"), shard1, shard2)

	snap, err := repo.QueryStates(context.Background(), transfer.InterestingStatuses())
	require.NoError(t, err)

	assert.Equal(t, []transfer.DatasetFile{a, b}, snap[transfer.DatasetStatusPending])
	assert.Equal(t, []transfer.DatasetFile{c}, snap[transfer.DatasetStatusQueued])
}

func TestShardedRepository_QueryStatesShardFailure(t *testing.T) {
	t.Parallel()

	healthy, broken := newFakeRepository(), newFakeRepository()
	broken.queryErr = errBoom

	repo := NewShardedRepository(noop.NewTracerProvider().Tracer("test"), healthy, broken)

	_, err := repo.QueryStates(context.Background(), transfer.InterestingStatuses())
	assert.ErrorIs(t, err, errBoom)
}

func TestShardedRepository_UpdateStatusFindsOwningShard(t *testing.T) {
	t.Parallel()

	ds := transfer.MustDatasetFile("GS-2024A-Q-1-1-001", "S1")

	shard1, shard2 := newFakeRepository(), newFakeRepository()
	shard2.put(ds, transfer.DatasetStatusQueued)

	repo := NewShardedRepository(noop.NewTracerProvider().Tracer("test"), shard1, shard2)

	applied, err := repo.UpdateStatus(context.Background(), ds, transfer.DatasetStatusQueued, transfer.DatasetStatusTransferring)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, transfer.DatasetStatusTransferring, shard2.get(ds))

	applied, err = repo.UpdateStatus(context.Background(), ds, transfer.DatasetStatusQueued, transfer.DatasetStatusRejected)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, transfer.DatasetStatusTransferring, shard2.get(ds))
}

func TestFailoverRepository_QueryStates(t *testing.T) {
	t.Parallel()

	ds := transfer.MustDatasetFile("GS-2024A-Q-1-1-001", "S1")

	primary, replica := newFakeRepository(), newFakeRepository()
	primary.queryErr = errBoom
	replica.put(ds, transfer.DatasetStatusPending)

	repo := NewFailoverRepository(logger.Noop(), noop.NewTracerProvider().Tracer("test"),
		Endpoint{Name: "primary", Repository: primary},
		Endpoint{Name: "replica", Repository: replica},
	)

	snap, err := repo.QueryStates(context.Background(), transfer.InterestingStatuses())
	require.NoError(t, err)
	assert.Equal(t, []transfer.DatasetFile{ds}, snap[transfer.DatasetStatusPending])

	// Updates follow the endpoint that served the read.
	applied, err := repo.UpdateStatus(context.Background(), ds, transfer.DatasetStatusPending, transfer.DatasetStatusNone)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, transfer.DatasetStatusNone, replica.get(ds))
}

func TestFailoverRepository_AllEndpointsFail(t *testing.T) {
	t.Parallel()

	first, second := newFakeRepository(), newFakeRepository()
	first.queryErr = errBoom
	second.queryErr = errBoom

	repo := NewFailoverRepository(logger.Noop(), noop.NewTracerProvider().Tracer("test"),
		Endpoint{Name: "first", Repository: first},
		Endpoint{Name: "second", Repository: second},
	)

	snap, err := repo.QueryStates(context.Background(), transfer.InterestingStatuses())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Zero(t, snap.Len())
}

func TestFailoverRepository_UpdateFallsBackOnError(t *testing.T) {
	t.Parallel()

	ds := transfer.MustDatasetFile("GS-2024A-Q-1-1-001", "S1")

	first, second := newFakeRepository(), newFakeRepository()
	first.writeErr[ds] = errBoom
	second.put(ds, transfer.DatasetStatusQueued)

	repo := NewFailoverRepository(logger.Noop(), noop.NewTracerProvider().Tracer("test"),
		Endpoint{Name: "first", Repository: first},
		Endpoint{Name: "second", Repository: second},
	)

	applied, err := repo.UpdateStatus(context.Background(), ds, transfer.DatasetStatusQueued, transfer.DatasetStatusTransferring)
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = NewFailoverRepository(logger.Noop(), noop.NewTracerProvider().Tracer("test")).
		UpdateStatus(context.Background(), ds, transfer.DatasetStatusQueued, transfer.DatasetStatusTransferring)
	assert.ErrorIs(t, err, ErrNoEndpoints)
}
