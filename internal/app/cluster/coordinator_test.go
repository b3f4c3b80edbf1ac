package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunnable struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingRunnable) Start(context.Context) { r.record("start") }
func (r *recordingRunnable) Stop()                 { r.record("stop") }

func (r *recordingRunnable) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingRunnable) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestStandaloneFollowLeadership(t *testing.T) {
	t.Parallel()

	coord := NewStandalone()
	r := new(recordingRunnable)
	FollowLeadership(context.Background(), coord, r)

	done := make(chan error, 1)
	go func() { done <- coord.Start(context.Background()) }()

	assert.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, coord.Stop())
	require.NoError(t, <-done)

	assert.Equal(t, []string{"start", "stop"}, r.snapshot())
}
