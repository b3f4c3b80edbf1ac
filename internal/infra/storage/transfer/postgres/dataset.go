package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/internal/db"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/internal/infra/storage"
)

var _ transfer.DatasetRepository = (*datasetStore)(nil)

// ErrDatasetNotFound is returned when a dataset has no execution log record.
var ErrDatasetNotFound = errors.New("dataset not found")

// datasetStore is one database shard of the dataset transfer state. Datasets
// are reached through the program tree: programs own observations, and each
// observation's execution log records the datasets it produced.
type datasetStore struct {
	q      *db.Queries
	db     *pgxpool.Pool
	tracer trace.Tracer
}

// NewDatasetStore creates a PostgreSQL-backed dataset repository.
func NewDatasetStore(pool *pgxpool.Pool, tracer trace.Tracer) *datasetStore {
	return &datasetStore{
		q:      db.New(pool),
		db:     pool,
		tracer: tracer,
	}
}

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
}

// QueryStates returns every execution log dataset whose transfer status is in
// states, grouped by status.
func (s *datasetStore) QueryStates(
	ctx context.Context,
	states []transfer.DatasetStatus,
) (transfer.StateSnapshot, error) {
	dbAttrs := append(defaultDBAttributes, attribute.Int("state_count", len(states)))

	snapshot := make(transfer.StateSnapshot, len(states))
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.query_dataset_states", dbAttrs, func(ctx context.Context) error {
		names := make([]string, len(states))
		for i, st := range states {
			names[i] = st.String()
		}

		rows, err := s.q.ListDatasetsByTransferStatus(ctx, names)
		if err != nil {
			return fmt.Errorf("list datasets by status: %w", err)
		}

		for _, row := range rows {
			status, err := transfer.ParseDatasetStatus(row.TransferStatus)
			if err != nil {
				return err
			}
			ds, err := transfer.NewDatasetFile(row.DatasetLabel, row.Filename)
			if err != nil {
				return fmt.Errorf("dataset row %s/%s: %w", row.DatasetLabel, row.Filename, err)
			}
			snapshot[status] = append(snapshot[status], ds)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// UpdateStatus moves ds to next only if its stored status is still expected.
func (s *datasetStore) UpdateStatus(
	ctx context.Context,
	ds transfer.DatasetFile,
	expected, next transfer.DatasetStatus,
) (bool, error) {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("dataset", ds.String()),
		attribute.String("expected", expected.String()),
		attribute.String("next", next.String()),
	)

	var applied bool
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.update_dataset_status", dbAttrs, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		rowsAffected, err := s.q.UpdateDatasetTransferStatus(ctx, db.UpdateDatasetTransferStatusParams{
			NextStatus:     next.String(),
			DatasetLabel:   ds.Label(),
			Filename:       ds.Filename(),
			ExpectedStatus: expected.String(),
		})
		if err != nil {
			return fmt.Errorf("update dataset status: %w", err)
		}
		applied = rowsAffected > 0
		return nil
	})
	return applied, err
}

// Status returns the stored transfer status of ds.
func (s *datasetStore) Status(ctx context.Context, ds transfer.DatasetFile) (transfer.DatasetStatus, error) {
	dbAttrs := append(defaultDBAttributes, attribute.String("dataset", ds.String()))

	var status transfer.DatasetStatus
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_dataset_status", dbAttrs, func(ctx context.Context) error {
		raw, err := s.q.GetDatasetTransferStatus(ctx, db.GetDatasetTransferStatusParams{
			DatasetLabel: ds.Label(),
			Filename:     ds.Filename(),
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDatasetNotFound
		}
		if err != nil {
			return fmt.Errorf("get dataset status: %w", err)
		}
		status, err = transfer.ParseDatasetStatus(raw)
		return err
	})
	return status, err
}

// RecordDataset adds ds to the execution log of the given observation,
// creating the program and observation if needed. Recording an existing
// dataset leaves its status untouched.
func (s *datasetStore) RecordDataset(
	ctx context.Context,
	programID, observationID string,
	ds transfer.DatasetFile,
	status transfer.DatasetStatus,
) error {
	dbAttrs := append(
		defaultDBAttributes,
		attribute.String("program_id", programID),
		attribute.String("observation_id", observationID),
		attribute.String("dataset", ds.String()),
	)

	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.record_dataset", dbAttrs, func(ctx context.Context) error {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction error: %w", err)
		}
		defer tx.Rollback(ctx)

		qtx := s.q.WithTx(tx)

		programRef, err := qtx.UpsertProgram(ctx, programID)
		if err != nil {
			return fmt.Errorf("upsert program: %w", err)
		}
		obsRef, err := qtx.UpsertObservation(ctx, db.UpsertObservationParams{
			ProgramRef:    programRef,
			ObservationID: observationID,
		})
		if err != nil {
			return fmt.Errorf("upsert observation: %w", err)
		}
		if _, err := qtx.RecordExecLogDataset(ctx, db.RecordExecLogDatasetParams{
			ObservationRef: obsRef,
			DatasetLabel:   ds.Label(),
			Filename:       ds.Filename(),
			TransferStatus: status.String(),
		}); err != nil {
			return fmt.Errorf("record dataset: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// Ping checks the shard is reachable.
func (s *datasetStore) Ping(ctx context.Context) error { return s.db.Ping(ctx) }
