// Package kubernetes elects a single active vigilante among replicas using a
// Kubernetes lease.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/ahrav/gsa-vigilante/internal/app/cluster"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

var _ cluster.Coordinator = new(Coordinator)

// Coordinator runs lease based leader election and reports leadership changes.
type Coordinator struct {
	client kubernetes.Interface
	config K8sConfig

	leaderElector *leaderelection.LeaderElector

	mu                 sync.Mutex
	leadershipChangeCB func(isLeader bool)
	cancel             context.CancelFunc

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCoordinator connects to the cluster and prepares a leader elector.
func NewCoordinator(cfg K8sConfig, logger *logger.Logger, tracer trace.Tracer) (*Coordinator, error) {
	client, err := newClientset(cfg.KubeConfig)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client for coordinator: %w", err)
	}
	return NewCoordinatorWithClient(client, cfg, logger, tracer)
}

// NewCoordinatorWithClient prepares a leader elector on an existing client.
func NewCoordinatorWithClient(
	client kubernetes.Interface,
	cfg K8sConfig,
	logger *logger.Logger,
	tracer trace.Tracer,
) (*Coordinator, error) {
	_, span := tracer.Start(context.Background(), "kubernetes_coordinator.new",
		trace.WithAttributes(attribute.String("identity", cfg.Identity)),
	)
	defer span.End()

	if cfg.Namespace == "" || cfg.LeaderLockID == "" || cfg.Identity == "" {
		err := errors.New("namespace, lock id and identity are required")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	cfg = cfg.withDefaults()

	c := &Coordinator{
		client: client,
		config: cfg,
		logger: logger.With(
			"component", "kubernetes_coordinator",
			"namespace", cfg.Namespace,
			"leader_lock_id", cfg.LeaderLockID,
			"identity", cfg.Identity,
		),
		tracer: tracer,
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      cfg.LeaderLockID,
			Namespace: cfg.Namespace,
		},
		Client: client.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: cfg.Identity,
		},
	}

	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:            lock,
		LeaseDuration:   cfg.LeaseDuration,
		RenewDeadline:   cfg.RenewDeadline,
		RetryPeriod:     cfg.RetryPeriod,
		ReleaseOnCancel: true,
		Name:            cfg.LeaderLockID,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: c.onStartedLeading,
			OnStoppedLeading: c.onStoppedLeading,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create leader elector")
		return nil, fmt.Errorf("creating leader elector: %w", err)
	}
	c.leaderElector = elector
	span.AddEvent("leader_elector_created")

	return c, nil
}

// Start takes part in leader election until ctx is done or Stop is called.
// After losing the lease the instance waits one retry period and competes
// again.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	for {
		c.logger.Info(ctx, "Starting leader elector")
		c.leaderElector.Run(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.config.RetryPeriod):
		}
		c.logger.Info(ctx, "rejoining leader election")
	}
}

// Stop releases the lease if held and ends the election.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info(context.Background(), "Stopping leader elector")
	return nil
}

// OnLeadershipChange registers a callback invoked when this instance gains
// or loses leadership.
func (c *Coordinator) OnLeadershipChange(cb func(isLeader bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leadershipChangeCB = cb
}

// IsLeader reports whether this instance currently holds the lease.
func (c *Coordinator) IsLeader() bool { return c.leaderElector.IsLeader() }

func (c *Coordinator) notify(isLeader bool) {
	c.mu.Lock()
	cb := c.leadershipChangeCB
	c.mu.Unlock()
	if cb != nil {
		cb(isLeader)
	}
}

func (c *Coordinator) onStartedLeading(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "kubernetes_coordinator.on_started_leading")
	defer span.End()

	c.logger.Info(ctx, "became leader")
	c.notify(true)
}

func (c *Coordinator) onStoppedLeading() {
	ctx, span := c.tracer.Start(context.Background(), "kubernetes_coordinator.on_stopped_leading")
	defer span.End()

	c.logger.Info(ctx, "lost leadership")
	c.notify(false)
}
