package transfer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

type periodMillis int64

func (p periodMillis) ScanPeriodMillis() int64 { return int64(p) }

// mockScanRunner counts passes and runs an optional behavior per pass.
type mockScanRunner struct {
	runs  atomic.Int32
	runFn func(n int32) (ScanSummary, error)
}

func (m *mockScanRunner) Run(ctx context.Context) (ScanSummary, error) {
	n := m.runs.Add(1)
	if m.runFn != nil {
		return m.runFn(n)
	}
	return ScanSummary{}, nil
}

func newTestVigilante(runner ScanRunner, period int64) *Vigilante {
	return NewVigilante(runner, periodMillis(period), noopMetrics{}, logger.Noop(), noop.NewTracerProvider().Tracer("test"))
}

func TestScanPeriod(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultScanPeriod, ScanPeriod(0))
	assert.Equal(t, DefaultScanPeriod, ScanPeriod(-5))
	assert.Equal(t, 30*time.Minute, DefaultScanPeriod)
	assert.Equal(t, 1500*time.Millisecond, ScanPeriod(1500))
}

func TestVigilante_StartRunsImmediatelyAndIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := new(mockScanRunner)
	v := newTestVigilante(runner, int64(time.Hour/time.Millisecond))

	v.Start(context.Background())
	v.Start(context.Background())
	defer v.Stop()

	require.Eventually(t, func() bool { return runner.runs.Load() >= 1 }, time.Second, 5*time.Millisecond)

	// A second Start must not have launched another timer.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runner.runs.Load())
	assert.True(t, v.Running())
}

func TestVigilante_RunsEveryPeriod(t *testing.T) {
	t.Parallel()

	runner := new(mockScanRunner)
	v := newTestVigilante(runner, 10)

	v.Start(context.Background())
	defer v.Stop()

	assert.Eventually(t, func() bool { return runner.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestVigilante_SurvivesFailuresAndPanics(t *testing.T) {
	t.Parallel()

	runner := &mockScanRunner{
		runFn: func(n int32) (ScanSummary, error) {
			switch n {
			case 1:
				panic("scan exploded")
			case 2:
				return ScanSummary{}, errBoom
			default:
				return ScanSummary{}, nil
			}
		},
	}
	v := newTestVigilante(runner, 10)

	v.Start(context.Background())
	defer v.Stop()

	assert.Eventually(t, func() bool { return runner.runs.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
}

func TestVigilante_StopHaltsTimerAndIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := new(mockScanRunner)
	v := newTestVigilante(runner, 10)

	v.Stop()
	assert.False(t, v.Running())

	v.Start(context.Background())
	require.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	v.Stop()
	v.Stop()
	assert.False(t, v.Running())

	// Allow a pass that was already underway to drain.
	time.Sleep(30 * time.Millisecond)
	after := runner.runs.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, runner.runs.Load())
}

func TestVigilante_PassInProgressCompletesAfterStop(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	runner := &mockScanRunner{
		runFn: func(n int32) (ScanSummary, error) {
			if n == 1 {
				close(started)
				<-release
				finished.Store(true)
			}
			return ScanSummary{}, nil
		},
	}
	v := newTestVigilante(runner, int64(time.Hour/time.Millisecond))

	v.Start(context.Background())
	<-started
	v.Stop()
	close(release)

	assert.Eventually(t, finished.Load, time.Second, 5*time.Millisecond)
}

func TestVigilante_RunOnce(t *testing.T) {
	t.Parallel()

	runner := &mockScanRunner{
		runFn: func(int32) (ScanSummary, error) { panic("boom") },
	}
	v := newTestVigilante(runner, 0)

	assert.NotPanics(t, func() { v.RunOnce(context.Background()) })
	assert.Equal(t, int32(1), runner.runs.Load())
	assert.False(t, v.Running())
}
