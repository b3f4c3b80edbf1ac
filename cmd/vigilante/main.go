package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ahrav/gsa-vigilante/internal/api"
	"github.com/ahrav/gsa-vigilante/internal/app/cluster"
	apptransfer "github.com/ahrav/gsa-vigilante/internal/app/transfer"
	"github.com/ahrav/gsa-vigilante/internal/config"
	"github.com/ahrav/gsa-vigilante/internal/domain/events"
	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/internal/infra/cluster/kubernetes"
	"github.com/ahrav/gsa-vigilante/internal/infra/eventbus/kafka"
	"github.com/ahrav/gsa-vigilante/internal/infra/eventbus/memory"
	"github.com/ahrav/gsa-vigilante/internal/infra/gsa"
	"github.com/ahrav/gsa-vigilante/internal/infra/localfs"
	"github.com/ahrav/gsa-vigilante/internal/infra/policy"
	"github.com/ahrav/gsa-vigilante/internal/infra/storage"
	memstore "github.com/ahrav/gsa-vigilante/internal/infra/storage/transfer/memory"
	pgstore "github.com/ahrav/gsa-vigilante/internal/infra/storage/transfer/postgres"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
	"github.com/ahrav/gsa-vigilante/pkg/common/otel"
)

const serviceType = "vigilante"

var build = "develop"

func main() {
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("VIGILANTE-%s", hostname)
	metadata := map[string]string{
		"service":   svcName,
		"hostname":  hostname,
		"pod":       os.Getenv("POD_NAME"),
		"namespace": os.Getenv("POD_NAMESPACE"),
		"app":       serviceType,
	}

	log := logger.NewWithMetadata(os.Stdout, logLevel(os.Getenv("LOG_LEVEL")), svcName, traceIDFn, logEvents, metadata)

	if err := run(log, hostname); err != nil {
		log.Error(context.Background(), "startup", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.LevelDebug
	case "warn":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func run(log *logger.Logger, hostname string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// -------------------------------------------------------------------------
	// Configuration

	cfg, err := config.NewFileLoader(os.Getenv("VIGILANTE_CONFIG")).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// -------------------------------------------------------------------------
	// Telemetry

	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		ExporterEndpoint: cfg.Telemetry.ExporterEndpoint,
		ExcludedRoutes: map[string]struct{}{
			"/v1/liveness":  {},
			"/v1/readiness": {},
			"/metrics":      {},
		},
		Probability: cfg.Telemetry.Probability,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"k8s.pod.name":     os.Getenv("POD_NAME"),
			"k8s.namespace":    os.Getenv("POD_NAMESPACE"),
			"k8s.container.id": hostname,
		},
		InsecureExporter: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer telemetryTeardown(context.Background())

	tracer := tp.Tracer(cfg.Telemetry.ServiceName)

	mp := otelapi.GetMeterProvider()
	metrics, err := apptransfer.NewVigilanteMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating vigilante metrics: %w", err)
	}
	apiMetrics, err := api.NewAPIMetrics(mp)
	if err != nil {
		return fmt.Errorf("creating api metrics: %w", err)
	}

	// -------------------------------------------------------------------------
	// Dataset state

	repo, dbHealth, closeDBs, err := openRepository(ctx, cfg, log, tracer)
	if err != nil {
		return err
	}
	defer closeDBs()

	// -------------------------------------------------------------------------
	// Events

	bus, err := openEventBus(cfg, log, metrics, tracer)
	if err != nil {
		return err
	}
	defer bus.Close()
	publisher := kafka.NewDomainEventPublisher(bus)

	repo = apptransfer.NewPublishingRepository(repo, publisher, log)

	// -------------------------------------------------------------------------
	// Archive services

	gsaCfg := gsa.Config{
		ETransferURL:      cfg.GSA.ETransferURL,
		ChecksumURL:       cfg.GSA.ChecksumURL,
		RequestsPerSecond: cfg.GSA.RequestsPerSecond,
		Burst:             cfg.GSA.Burst,
		RequestTimeout:    cfg.GSA.RequestTimeout,
		MaxRetries:        cfg.GSA.MaxRetries,
		ChecksumWorkers:   cfg.GSA.ChecksumWorkers,
	}
	httpClient := gsa.NewHTTPClient(gsaCfg)

	etransfer, err := gsa.NewETransferClient(gsaCfg, httpClient, log, tracer)
	if err != nil {
		return fmt.Errorf("creating e-transfer client: %w", err)
	}
	checksums, err := gsa.NewChecksumClient(gsaCfg, httpClient, log, tracer)
	if err != nil {
		return fmt.Errorf("creating checksum client: %w", err)
	}
	resolver := apptransfer.NewStatusResolver(etransfer, checksums, cfg.ChecksumBatchTimeout, log, tracer)

	// -------------------------------------------------------------------------
	// Copying

	archivePolicy, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("loading archive policy: %w", err)
	}
	log.Info(ctx, "archive policy loaded", "path", cfg.PolicyFile, "exclusions", archivePolicy.Len())

	dispatcher := apptransfer.NewCopyDispatcher(
		localfs.NewPickupDir(cfg.PickupDir),
		repo,
		publisher,
		cfg.Transfer.Workers,
		cfg.Transfer.QueueSize,
		metrics,
		log,
		tracer,
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// -------------------------------------------------------------------------
	// Vigilante

	task := apptransfer.NewScanTask(
		repo,
		resolver,
		dispatcher,
		localfs.NewWorkingDir(cfg.WorkingDir),
		archivePolicy,
		metrics,
		log,
		tracer,
	)
	vigilante := apptransfer.NewVigilante(task, cfg, metrics, log, tracer)
	defer vigilante.Stop()

	coord, err := newCoordinator(cfg, hostname, log, tracer)
	if err != nil {
		return err
	}
	cluster.FollowLeadership(ctx, coord, vigilante)

	errCh := make(chan error, 2)
	go func() {
		if err := coord.Start(ctx); err != nil {
			errCh <- fmt.Errorf("coordinator: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// Health and admin

	server := api.NewServer(api.Config{
		Addr:      cfg.HTTP.Addr,
		Build:     build,
		Databases: dbHealth,
		Trigger:   vigilante,
		Active:    vigilante.Running,
		Metrics:   apiMetrics,
		Log:       log,
		Tracer:    tracer,
	})
	go func() {
		if err := server.Start(ctx); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	log.Info(ctx, "vigilante service started", "build", build)

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		log.Error(ctx, "component failed", "error", err)
		cancel()
		_ = coord.Stop()
		return err
	}

	_ = coord.Stop()
	return nil
}

// openRepository builds the failover chain of sharded state databases. With
// no databases configured an in-memory tree is used.
func openRepository(
	ctx context.Context,
	cfg *config.Config,
	log *logger.Logger,
	tracer trace.Tracer,
) (transfer.DatasetRepository, []api.DatabaseEndpoint, func(), error) {
	if len(cfg.Databases) == 0 {
		log.Warn(ctx, "no databases configured, dataset state is kept in memory")
		return memstore.NewProgramTree(), nil, func() {}, nil
	}

	var (
		pools     []*pgxpool.Pool
		endpoints []apptransfer.Endpoint
		health    []api.DatabaseEndpoint
	)
	closeAll := func() {
		for _, p := range pools {
			p.Close()
		}
	}

	for _, db := range cfg.Databases {
		shards := make([]transfer.DatasetRepository, 0, len(db.Shards))
		pingers := make([]api.Pinger, 0, len(db.Shards))
		for i, dsn := range db.Shards {
			pool, err := storage.NewPool(ctx, dsn)
			if err != nil {
				closeAll()
				return nil, nil, nil, fmt.Errorf("database %s shard %d: %w", db.Name, i, err)
			}
			pools = append(pools, pool)

			// An unreachable endpoint must not block start-up; reads fail over.
			if err := storage.Migrate(pool, cfg.MigrationsURL); err != nil {
				log.Error(ctx, "failed to run migrations", "endpoint", db.Name, "shard", i, "error", err)
			}

			shards = append(shards, pgstore.NewDatasetStore(pool, tracer))
			pingers = append(pingers, pool)
		}

		endpoints = append(endpoints, apptransfer.Endpoint{
			Name:       db.Name,
			Repository: apptransfer.NewShardedRepository(tracer, shards...),
		})
		health = append(health, api.DatabaseEndpoint{Name: db.Name, Shards: pingers})
	}

	log.Info(ctx, "dataset databases opened", "endpoints", len(endpoints), "pools", len(pools))
	return apptransfer.NewFailoverRepository(log, tracer, endpoints...), health, closeAll, nil
}

// openEventBus connects to Kafka, or falls back to an in-process bus that
// logs events when no brokers are configured.
func openEventBus(
	cfg *config.Config,
	log *logger.Logger,
	metrics kafka.EventBusMetrics,
	tracer trace.Tracer,
) (events.EventBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		bus := memory.NewEventBus()
		err := bus.Subscribe(context.Background(),
			[]events.EventType{transfer.EventTypeDatasetStatusChanged, transfer.EventTypeDatasetCopyDispatched},
			func(ctx context.Context, env events.EventEnvelope) error {
				log.Debug(ctx, "dataset event", "type", env.Type, "key", env.Key)
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("subscribing event logger: %w", err)
		}
		return bus, nil
	}

	bus, err := kafka.ConnectEventBus(
		&kafka.ClientConfig{Brokers: cfg.Kafka.Brokers, ClientID: cfg.Kafka.ClientID},
		kafka.Topics{StatusTopic: cfg.Kafka.StatusTopic, DispatchTopic: cfg.Kafka.DispatchTopic},
		log,
		metrics,
		tracer,
	)
	if err != nil {
		return nil, fmt.Errorf("connecting event bus: %w", err)
	}
	return bus, nil
}

func newCoordinator(
	cfg *config.Config,
	hostname string,
	log *logger.Logger,
	tracer trace.Tracer,
) (cluster.Coordinator, error) {
	le := cfg.LeaderElection
	if !le.Enabled {
		return cluster.NewStandalone(), nil
	}

	identity := le.Identity
	if identity == "" {
		identity = hostname
	}

	coord, err := kubernetes.NewCoordinator(kubernetes.K8sConfig{
		Namespace:     le.Namespace,
		LeaderLockID:  le.LockName,
		Identity:      identity,
		KubeConfig:    le.KubeConfig,
		LeaseDuration: le.LeaseDuration,
		RenewDeadline: le.RenewDeadline,
		RetryPeriod:   le.RetryPeriod,
	}, log, tracer)
	if err != nil {
		return nil, fmt.Errorf("creating coordinator: %w", err)
	}
	return coord, nil
}
