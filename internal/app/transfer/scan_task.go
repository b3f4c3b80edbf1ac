package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// ScanSummary tallies what one reconciliation pass did.
type ScanSummary struct {
	ScanID   uuid.UUID
	Duration time.Duration

	Snapshot       int
	InFlight       int
	RetryResets    int
	FilesResolved  int
	CopiesStarted  int
	CopiesSkipped  int
	GivenUp        int
	Transitions    int
	GuardRejected  int
	WriteFailures  int
	ChecksumErrors int
}

func (s ScanSummary) logArgs() []any {
	return []any{
		"scan_id", s.ScanID.String(),
		"duration", s.Duration,
		"snapshot", s.Snapshot,
		"in_flight", s.InFlight,
		"retry_resets", s.RetryResets,
		"files_resolved", s.FilesResolved,
		"copies_started", s.CopiesStarted,
		"copies_skipped", s.CopiesSkipped,
		"given_up", s.GivenUp,
		"transitions", s.Transitions,
		"guard_rejected", s.GuardRejected,
		"write_failures", s.WriteFailures,
		"checksum_errors", s.ChecksumErrors,
	}
}

// updatePhaseStatuses are the local states whose remote progress is tracked
// in the update phase, in evaluation order.
var updatePhaseStatuses = []transfer.DatasetStatus{
	transfer.DatasetStatusQueued,
	transfer.DatasetStatusTransferring,
	transfer.DatasetStatusTransferError,
}

// ScanTask performs one reconciliation pass between the local transfer states
// and the archive's view of each file.
type ScanTask struct {
	repo       transfer.DatasetRepository
	resolver   FileStatusResolver
	dispatcher transfer.TransferDispatcher
	files      transfer.LocalFiles
	policy     transfer.ArchivePolicy

	metrics VigilanteMetrics
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewScanTask creates a ScanTask. Every dependency is required.
func NewScanTask(
	repo transfer.DatasetRepository,
	resolver FileStatusResolver,
	dispatcher transfer.TransferDispatcher,
	files transfer.LocalFiles,
	policy transfer.ArchivePolicy,
	metrics VigilanteMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *ScanTask {
	return &ScanTask{
		repo:       repo,
		resolver:   resolver,
		dispatcher: dispatcher,
		files:      files,
		policy:     policy,
		metrics:    metrics,
		logger:     logger.With("component", "vigilante_scan_task"),
		tracer:     tracer,
	}
}

// Run executes one pass:
//  1. snapshot datasets in the interesting states
//  2. drop datasets the dispatcher is still working on
//  3. move COPY_FAILED back to PENDING
//  4. resolve every remaining filename in one batch
//  5. copy phase over PENDING
//  6. update phase over QUEUED, TRANSFERRING and TRANSFER_ERROR
//
// Per-dataset storage and checksum failures are logged and do not abort the
// pass. An error is returned only for an unrecognized remote status.
func (t *ScanTask) Run(ctx context.Context) (ScanSummary, error) {
	summary := ScanSummary{ScanID: uuid.New()}
	start := time.Now()

	ctx, span := t.tracer.Start(ctx, "vigilante_scan_task.run",
		trace.WithAttributes(attribute.String("scan_id", summary.ScanID.String())))
	defer span.End()

	log := logger.NewLoggerContext(t.logger.With("scan_id", summary.ScanID.String()))

	snapshot, err := t.repo.QueryStates(ctx, transfer.InterestingStatuses())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return summary, fmt.Errorf("snapshotting dataset states: %w", err)
	}
	summary.Snapshot = snapshot.Len()
	t.metrics.ObserveSnapshotSize(ctx, summary.Snapshot)
	span.AddEvent("snapshot_taken", trace.WithAttributes(attribute.Int("datasets", summary.Snapshot)))

	snapshot = t.filterInFlight(snapshot, &summary)

	pending := snapshot[transfer.DatasetStatusPending]
	for _, ds := range snapshot[transfer.DatasetStatusCopyFailed] {
		if t.transition(ctx, log, ds, transfer.DatasetStatusCopyFailed, transfer.DatasetStatusPending, &summary) {
			summary.RetryResets++
			pending = append(pending, ds)
		}
	}

	var filenames []string
	for _, ds := range pending {
		filenames = append(filenames, ds.Filename())
	}
	for _, status := range updatePhaseStatuses {
		for _, ds := range snapshot[status] {
			filenames = append(filenames, ds.Filename())
		}
	}

	statuses, err := t.resolver.ResolveAll(ctx, filenames)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status resolution failed")
		return summary, fmt.Errorf("resolving remote file statuses: %w", err)
	}
	summary.FilesResolved = len(statuses)

	for _, ds := range pending {
		if err := t.copyPhase(ctx, log, ds, statuses, &summary); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "copy phase aborted")
			return summary, err
		}
	}

	for _, from := range updatePhaseStatuses {
		for _, ds := range snapshot[from] {
			if err := t.updatePhase(ctx, log, ds, from, statuses, &summary); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "update phase aborted")
				return summary, err
			}
		}
	}

	summary.Duration = time.Since(start)
	t.metrics.ObserveScanDuration(ctx, summary.Duration)
	span.SetAttributes(
		attribute.Int("transitions", summary.Transitions),
		attribute.Int("copies_started", summary.CopiesStarted),
	)
	span.SetStatus(codes.Ok, "scan completed")
	return summary, nil
}

func (t *ScanTask) filterInFlight(snapshot transfer.StateSnapshot, summary *ScanSummary) transfer.StateSnapshot {
	out := make(transfer.StateSnapshot, len(snapshot))
	for status, datasets := range snapshot {
		for _, ds := range datasets {
			if t.dispatcher.IsInFlight(ds) {
				summary.InFlight++
				continue
			}
			out[status] = append(out[status], ds)
		}
	}
	return out
}

// copyPhase decides whether a PENDING dataset is copied, left alone, or given up on.
func (t *ScanTask) copyPhase(
	ctx context.Context,
	log *logger.LoggerContext,
	ds transfer.DatasetFile,
	statuses map[string]transfer.FileStatus,
	summary *ScanSummary,
) error {
	status, ok := statuses[ds.Filename()]
	if !ok {
		log.Warn(ctx, "no remote status for pending dataset, retrying next pass", "dataset", ds.String())
		summary.CopiesSkipped++
		return nil
	}

	switch status.Kind() {
	case transfer.FileStatusKindUnknown:
		log.Warn(ctx, "remote status unknown for pending dataset, retrying next pass",
			"dataset", ds.String(),
			"detail", status.Message(),
		)
		summary.CopiesSkipped++
		return nil
	case transfer.FileStatusKindQueued, transfer.FileStatusKindProcessing:
		log.Debug(ctx, "previous version still in flight remotely", "dataset", ds.String(), "remote", status.String())
		summary.CopiesSkipped++
		return nil
	case transfer.FileStatusKindNotFound, transfer.FileStatusKindRejected, transfer.FileStatusKindAccepted:
	default:
		return fmt.Errorf("%w: %s for %s", transfer.ErrUnexpectedFileStatus, status.Kind(), ds)
	}

	exists, err := t.files.Exists(ds.Filename())
	if err != nil {
		log.Error(ctx, "checking local file failed", "dataset", ds.String(), "error", err)
		summary.CopiesSkipped++
		return nil
	}
	if !exists {
		log.Warn(ctx, "local file missing, dataset will not be archived", "dataset", ds.String())
		if t.transition(ctx, log, ds, transfer.DatasetStatusPending, transfer.DatasetStatusNone, summary) {
			summary.GivenUp++
		}
		return nil
	}

	if !t.policy.IsArchivable(ds) {
		log.Info(ctx, "dataset excluded by archive policy", "dataset", ds.String())
		if t.transition(ctx, log, ds, transfer.DatasetStatusPending, transfer.DatasetStatusNone, summary) {
			summary.GivenUp++
		}
		return nil
	}

	if err := t.dispatcher.BeginCopy(ctx, ds, t.files.Path(ds.Filename())); err != nil {
		log.Error(ctx, "dispatching copy failed", "dataset", ds.String(), "error", err)
		summary.CopiesSkipped++
		return nil
	}
	summary.CopiesStarted++
	t.metrics.IncCopiesDispatched(ctx)
	return nil
}

// updatePhase follows the remote progress of a dataset already handed off.
func (t *ScanTask) updatePhase(
	ctx context.Context,
	log *logger.LoggerContext,
	ds transfer.DatasetFile,
	from transfer.DatasetStatus,
	statuses map[string]transfer.FileStatus,
	summary *ScanSummary,
) error {
	status, known := statuses[ds.Filename()]

	next, ok, err := transfer.UpdateTransition(status, known)
	if err != nil {
		return fmt.Errorf("%w: %s for %s", err, status.Kind(), ds)
	}
	if !ok {
		next = t.acceptedTransition(ctx, log, ds, status, summary)
	}

	if next == from {
		return nil
	}
	t.transition(ctx, log, ds, from, next, summary)
	return nil
}

// acceptedTransition compares the local file against the archive checksum.
func (t *ScanTask) acceptedTransition(
	ctx context.Context,
	log *logger.LoggerContext,
	ds transfer.DatasetFile,
	status transfer.FileStatus,
	summary *ScanSummary,
) transfer.DatasetStatus {
	remote, ok := status.Checksum()
	if !ok {
		log.Warn(ctx, "archive accepted file without reporting a checksum", "dataset", ds.String())
		return transfer.AcceptedTransition(transfer.ChecksumLocalError)
	}

	local, err := t.files.Checksum(ctx, ds.Filename())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn(ctx, "local file missing for accepted dataset", "dataset", ds.String())
		return transfer.AcceptedTransition(transfer.ChecksumLocalMissing)
	case err != nil:
		log.Error(ctx, "computing local checksum failed", "dataset", ds.String(), "error", err)
		summary.ChecksumErrors++
		return transfer.AcceptedTransition(transfer.ChecksumLocalError)
	case local != remote:
		log.Warn(ctx, "checksum mismatch, forcing re-copy",
			"dataset", ds.String(),
			"local", local.String(),
			"remote", remote.String(),
		)
		return transfer.AcceptedTransition(transfer.ChecksumMismatch)
	default:
		return transfer.AcceptedTransition(transfer.ChecksumMatch)
	}
}

// transition applies a guarded update and reports whether it took effect.
func (t *ScanTask) transition(
	ctx context.Context,
	log *logger.LoggerContext,
	ds transfer.DatasetFile,
	from, to transfer.DatasetStatus,
	summary *ScanSummary,
) bool {
	applied, err := t.repo.UpdateStatus(ctx, ds, from, to)
	if err != nil {
		log.Error(ctx, "updating dataset status failed",
			"dataset", ds.String(),
			"from", from.String(),
			"to", to.String(),
			"error", err,
		)
		summary.WriteFailures++
		return false
	}
	if !applied {
		log.Debug(ctx, "dataset moved concurrently, leaving it for the next pass",
			"dataset", ds.String(),
			"expected", from.String(),
		)
		summary.GuardRejected++
		return false
	}

	log.Info(ctx, "dataset status updated", "dataset", ds.String(), "from", from.String(), "to", to.String())
	summary.Transitions++
	t.metrics.IncTransition(ctx, from, to)
	return true
}
