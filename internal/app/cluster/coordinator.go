// Package cluster decides which replica runs the vigilante.
package cluster

import (
	"context"
	"sync"
)

// Coordinator manages leader election to ensure only one instance actively
// reconciles dataset state.
type Coordinator interface {
	// Start initiates coordination and blocks until context cancellation or error.
	Start(ctx context.Context) error
	// Stop gracefully terminates coordination.
	Stop() error
	// OnLeadershipChange registers a callback for leadership status changes.
	OnLeadershipChange(cb func(isLeader bool))
}

// Runnable is a component started on leadership gain and stopped on loss.
type Runnable interface {
	Start(ctx context.Context)
	Stop()
}

// FollowLeadership starts r when this instance becomes leader and stops it
// when leadership is lost. ctx is the parent context for r.
func FollowLeadership(ctx context.Context, coord Coordinator, r Runnable) {
	coord.OnLeadershipChange(func(isLeader bool) {
		if isLeader {
			r.Start(ctx)
			return
		}
		r.Stop()
	})
}

var _ Coordinator = (*Standalone)(nil)

// Standalone is the Coordinator for single replica deployments: it becomes
// leader as soon as it starts and steps down when stopped.
type Standalone struct {
	mu     sync.Mutex
	cb     func(isLeader bool)
	cancel context.CancelFunc
}

// NewStandalone creates a Standalone coordinator.
func NewStandalone() *Standalone { return new(Standalone) }

// Start reports leadership and blocks until ctx is done or Stop is called.
func (s *Standalone) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	cb := s.cb
	s.mu.Unlock()

	if cb != nil {
		cb(true)
	}
	<-ctx.Done()
	if cb != nil {
		cb(false)
	}
	return nil
}

// Stop ends Start.
func (s *Standalone) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// OnLeadershipChange registers cb. It must be called before Start.
func (s *Standalone) OnLeadershipChange(cb func(isLeader bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}
