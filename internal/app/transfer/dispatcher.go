package transfer

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/internal/domain/events"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// ErrDispatcherStopped is returned by BeginCopy once the dispatcher has shut down.
var ErrDispatcherStopped = errors.New("copy dispatcher stopped")

// FileCopier places a local file into the e-transfer pickup area.
type FileCopier interface {
	Copy(ctx context.Context, src, name string) error
}

var _ transfer.TransferDispatcher = (*CopyDispatcher)(nil)

type copyJob struct {
	ds   transfer.DatasetFile
	path string
}

// CopyDispatcher runs copies to the pickup area on a fixed pool of workers. A
// dataset counts as in flight from the moment BeginCopy accepts it until its
// outcome has been recorded: PENDING to QUEUED on success, PENDING to
// COPY_FAILED on failure.
type CopyDispatcher struct {
	copier    FileCopier
	updater   transfer.StatusUpdater
	publisher events.DomainEventPublisher

	workers int
	jobs    chan copyJob

	mu       sync.Mutex
	inFlight map[transfer.DatasetFile]struct{}

	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup

	metrics VigilanteMetrics
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewCopyDispatcher creates a CopyDispatcher. publisher may be nil.
func NewCopyDispatcher(
	copier FileCopier,
	updater transfer.StatusUpdater,
	publisher events.DomainEventPublisher,
	workers, queueSize int,
	metrics VigilanteMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *CopyDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &CopyDispatcher{
		copier:    copier,
		updater:   updater,
		publisher: publisher,
		workers:   workers,
		jobs:      make(chan copyJob, queueSize),
		inFlight:  make(map[transfer.DatasetFile]struct{}),
		stopped:   make(chan struct{}),
		metrics:   metrics,
		logger:    logger.With("component", "copy_dispatcher"),
		tracer:    tracer,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or Stop
// is called.
func (d *CopyDispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			d.worker(ctx, workerID)
		}(i)
	}
}

// Stop stops accepting work and waits for running copies to finish. Queued
// jobs that never started are released from the in-flight set.
func (d *CopyDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopped) })
	d.wg.Wait()

	for {
		select {
		case job := <-d.jobs:
			d.release(job.ds)
		default:
			return
		}
	}
}

// BeginCopy queues a copy of path for ds. A dataset already in flight is
// silently ignored.
func (d *CopyDispatcher) BeginCopy(ctx context.Context, ds transfer.DatasetFile, path string) error {
	select {
	case <-d.stopped:
		return ErrDispatcherStopped
	default:
	}

	d.mu.Lock()
	if _, busy := d.inFlight[ds]; busy {
		d.mu.Unlock()
		return nil
	}
	d.inFlight[ds] = struct{}{}
	d.mu.Unlock()

	select {
	case d.jobs <- copyJob{ds: ds, path: path}:
		return nil
	case <-d.stopped:
		d.release(ds)
		return ErrDispatcherStopped
	case <-ctx.Done():
		d.release(ds)
		return ctx.Err()
	}
}

// IsInFlight reports whether ds is queued or being copied.
func (d *CopyDispatcher) IsInFlight(ds transfer.DatasetFile) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[ds]
	return ok
}

func (d *CopyDispatcher) release(ds transfer.DatasetFile) {
	d.mu.Lock()
	delete(d.inFlight, ds)
	d.mu.Unlock()
}

func (d *CopyDispatcher) worker(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopped:
			return
		case job := <-d.jobs:
			d.process(ctx, workerID, job)
		}
	}
}

func (d *CopyDispatcher) process(ctx context.Context, workerID int, job copyJob) {
	defer d.release(job.ds)

	ctx, span := d.tracer.Start(ctx, "copy_dispatcher.process",
		trace.WithAttributes(
			attribute.Int("worker_id", workerID),
			attribute.String("dataset_label", job.ds.Label()),
			attribute.String("filename", job.ds.Filename()),
		))
	defer span.End()

	if d.publisher != nil {
		evt := transfer.NewDatasetCopyDispatchedEvent(job.ds, job.path)
		if err := d.publisher.PublishDomainEvent(ctx, evt, events.WithKey(job.ds.Label())); err != nil {
			d.logger.Warn(ctx, "publishing copy dispatched event failed", "dataset", job.ds.String(), "error", err)
		}
	}

	next := transfer.DatasetStatusQueued
	if err := d.copier.Copy(ctx, job.path, job.ds.Filename()); err != nil {
		span.RecordError(err)
		d.metrics.IncCopyFailures(ctx)
		d.logger.Error(ctx, "copy to pickup area failed", "dataset", job.ds.String(), "error", err)
		next = transfer.DatasetStatusCopyFailed
	}

	applied, err := d.updater.UpdateStatus(ctx, job.ds, transfer.DatasetStatusPending, next)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update failed")
		d.logger.Error(ctx, "recording copy outcome failed", "dataset", job.ds.String(), "to", next.String(), "error", err)
		return
	}
	if !applied {
		d.logger.Debug(ctx, "dataset left PENDING before copy completed", "dataset", job.ds.String())
	}

	span.SetAttributes(attribute.String("outcome", next.String()))
	span.SetStatus(codes.Ok, "copy processed")
}
