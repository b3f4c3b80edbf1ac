package transfer

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// DefaultScanPeriod is used when the configured period is unset or not positive.
const DefaultScanPeriod = 30 * time.Minute

// ScanPeriod converts a configured period in milliseconds, applying the default.
func ScanPeriod(millis int64) time.Duration {
	if millis <= 0 {
		return DefaultScanPeriod
	}
	return time.Duration(millis) * time.Millisecond
}

// ScanRunner runs one reconciliation pass.
type ScanRunner interface {
	Run(ctx context.Context) (ScanSummary, error)
}

// PeriodSource supplies the scan period, in milliseconds, when the vigilante starts.
type PeriodSource interface {
	ScanPeriodMillis() int64
}

// Vigilante owns the recurring timer that drives reconciliation passes. Passes
// never overlap, and a failed or panicking pass never stops the timer.
type Vigilante struct {
	task   ScanRunner
	period PeriodSource

	mu     sync.Mutex
	cancel context.CancelFunc

	// runMu serializes passes started by the timer and by RunOnce.
	runMu sync.Mutex

	metrics VigilanteMetrics
	logger  *logger.Logger
	tracer  trace.Tracer
}

// NewVigilante creates a stopped Vigilante.
func NewVigilante(
	task ScanRunner,
	period PeriodSource,
	metrics VigilanteMetrics,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Vigilante {
	return &Vigilante{
		task:    task,
		period:  period,
		metrics: metrics,
		logger:  logger.With("component", "vigilante"),
		tracer:  tracer,
	}
}

// Start schedules a pass immediately and then once per configured period. It
// is a no-op when the vigilante is already running.
func (v *Vigilante) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		return
	}

	period := ScanPeriod(v.period.ScanPeriodMillis())
	ctx, v.cancel = context.WithCancel(ctx)

	_, span := v.tracer.Start(ctx, "vigilante.start",
		trace.WithAttributes(attribute.String("period", period.String())))
	span.End()

	v.logger.Info(ctx, "vigilante started", "period", period)
	go v.loop(ctx, period)
}

// Stop cancels the timer. A pass already running is allowed to finish. Stop
// is a no-op when the vigilante is not running.
func (v *Vigilante) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel == nil {
		return
	}
	v.cancel()
	v.cancel = nil
	v.logger.Info(context.Background(), "vigilante stopped")
}

// Running reports whether the timer is active.
func (v *Vigilante) Running() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancel != nil
}

// RunOnce runs one supervised pass outside the timer, waiting for any pass in
// progress to finish first.
func (v *Vigilante) RunOnce(ctx context.Context) {
	v.runSupervised(ctx)
}

func (v *Vigilante) loop(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	// Passes outlive Stop; only the schedule is cancelled.
	passCtx := context.WithoutCancel(ctx)

	v.runSupervised(passCtx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			v.runSupervised(passCtx)
		}
	}
}

// runSupervised runs one pass, logging and swallowing errors and panics.
func (v *Vigilante) runSupervised(ctx context.Context) {
	v.runMu.Lock()
	defer v.runMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			v.metrics.IncScanFailures(ctx)
			v.logger.Error(ctx, "vigilante pass panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	summary, err := v.task.Run(ctx)
	if err != nil {
		v.metrics.IncScanFailures(ctx)
		v.logger.Error(ctx, "vigilante pass failed", append(summary.logArgs(), "error", err)...)
		return
	}
	v.logger.Info(ctx, "vigilante pass completed", summary.logArgs()...)
}
