package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/internal/infra/storage"
)

func setupDatasetTest(t *testing.T) (context.Context, *datasetStore, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	pool, cleanup := storage.SetupTestContainer(t)
	store := NewDatasetStore(pool, storage.NoOpTracer())
	return context.Background(), store, cleanup
}

func TestDatasetStore_QueryStates(t *testing.T) {
	t.Parallel()
	ctx, store, cleanup := setupDatasetTest(t)
	defer cleanup()

	pending := transfer.MustDatasetFile("GS-2024A-Q-1-1-001", "S20240101S0001")
	queued := transfer.MustDatasetFile("GS-2024A-Q-1-1-002", "S20240101S0002")
	accepted := transfer.MustDatasetFile("GS-2024A-Q-1-2-001", "S20240101S0003")

	require.NoError(t, store.RecordDataset(ctx, "GS-2024A-Q-1", "GS-2024A-Q-1-1", pending, transfer.DatasetStatusPending))
	require.NoError(t, store.RecordDataset(ctx, "GS-2024A-Q-1", "GS-2024A-Q-1-1", queued, transfer.DatasetStatusQueued))
	require.NoError(t, store.RecordDataset(ctx, "GS-2024A-Q-1", "GS-2024A-Q-1-2", accepted, transfer.DatasetStatusAccepted))

	snap, err := store.QueryStates(ctx, transfer.InterestingStatuses())
	require.NoError(t, err)

	assert.Equal(t, []transfer.DatasetFile{pending}, snap[transfer.DatasetStatusPending])
	assert.Equal(t, []transfer.DatasetFile{queued}, snap[transfer.DatasetStatusQueued])
	assert.NotContains(t, snap, transfer.DatasetStatusAccepted)
	assert.Equal(t, 2, snap.Len())
}

func TestDatasetStore_UpdateStatusGuarded(t *testing.T) {
	t.Parallel()
	ctx, store, cleanup := setupDatasetTest(t)
	defer cleanup()

	ds := transfer.MustDatasetFile("GS-2024A-Q-2-1-001", "S20240102S0001")
	require.NoError(t, store.RecordDataset(ctx, "GS-2024A-Q-2", "GS-2024A-Q-2-1", ds, transfer.DatasetStatusQueued))

	applied, err := store.UpdateStatus(ctx, ds, transfer.DatasetStatusQueued, transfer.DatasetStatusTransferring)
	require.NoError(t, err)
	assert.True(t, applied)

	// Stale expectation leaves the row alone.
	applied, err = store.UpdateStatus(ctx, ds, transfer.DatasetStatusQueued, transfer.DatasetStatusPending)
	require.NoError(t, err)
	assert.False(t, applied)

	status, err := store.Status(ctx, ds)
	require.NoError(t, err)
	assert.Equal(t, transfer.DatasetStatusTransferring, status)
}

func TestDatasetStore_StatusNotFound(t *testing.T) {
	t.Parallel()
	ctx, store, cleanup := setupDatasetTest(t)
	defer cleanup()

	_, err := store.Status(ctx, transfer.MustDatasetFile("GS-none", "missing"))
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	applied, err := store.UpdateStatus(ctx, transfer.MustDatasetFile("GS-none", "missing"),
		transfer.DatasetStatusPending, transfer.DatasetStatusQueued)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, store.Ping(ctx))
}
