package gsa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

var _ transfer.ChecksumQuerier = (*ChecksumClient)(nil)

// ChecksumClient queries the archive CRC registry.
type ChecksumClient struct {
	transport *transport
	workers   int

	logger *logger.Logger
	tracer trace.Tracer
}

// NewChecksumClient creates a ChecksumClient for cfg.ChecksumURL.
func NewChecksumClient(
	cfg Config,
	httpClient *http.Client,
	logger *logger.Logger,
	tracer trace.Tracer,
) (*ChecksumClient, error) {
	cfg = cfg.withDefaults()
	logger = logger.With("component", "checksum_client")

	t, err := newTransport("crc_registry", cfg.ChecksumURL, httpClient, cfg, logger, tracer)
	if err != nil {
		return nil, err
	}

	return &ChecksumClient{
		transport: t,
		workers:   cfg.ChecksumWorkers,
		logger:    logger,
		tracer:    tracer,
	}, nil
}

type checksumResponse struct {
	File string `json:"file"`
	CRC  string `json:"crc"`
}

// Checksum returns the archive CRC for filename; false when the archive does
// not hold the file.
func (c *ChecksumClient) Checksum(ctx context.Context, filename string) (transfer.Checksum, bool, error) {
	ctx, span := c.tracer.Start(ctx, "checksum_client.checksum",
		trace.WithAttributes(attribute.String("filename", filename)))
	defer span.End()

	var resp checksumResponse
	err := c.transport.do(ctx, http.MethodGet, "/v1/checksum", url.Values{"file": {filename}}, nil, &resp)
	if errors.Is(err, errNotFound) {
		span.SetStatus(codes.Ok, "not archived")
		return 0, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checksum query failed")
		return 0, false, fmt.Errorf("querying checksum for %s: %w", filename, err)
	}
	if resp.CRC == "" {
		span.SetStatus(codes.Ok, "not archived")
		return 0, false, nil
	}

	crc, err := transfer.ParseChecksum(resp.CRC)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid checksum")
		return 0, false, fmt.Errorf("checksum for %s: %w", filename, err)
	}

	span.SetStatus(codes.Ok, "checksum resolved")
	return crc, true, nil
}

// Checksums looks filenames up concurrently on a bounded pool of workers. The
// whole batch shares one deadline; lookups still running when it expires are
// cancelled and their files left out of the result, as are failed lookups. Every worker has exited
// by the time Checksums returns.
func (c *ChecksumClient) Checksums(ctx context.Context, filenames []string, timeout time.Duration) map[string]transfer.ChecksumLookup {
	if timeout <= 0 {
		timeout = transfer.DefaultChecksumBatchTimeout
	}

	ctx, span := c.tracer.Start(ctx, "checksum_client.checksums",
		trace.WithAttributes(
			attribute.Int("file_count", len(filenames)),
			attribute.String("timeout", timeout.String()),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		out = make(map[string]transfer.ChecksumLookup, len(filenames))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for _, name := range filenames {
		if gctx.Err() != nil {
			break
		}

		name := name
		g.Go(func() error {
			crc, ok, err := c.Checksum(gctx, name)
			if err != nil {
				c.logger.Debug(gctx, "checksum lookup failed", "filename", name, "error", err)
				return nil
			}
			mu.Lock()
			out[name] = transfer.ChecksumLookup{Checksum: crc, Found: ok}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.logger.Warn(ctx, "checksum batch timed out",
			"requested", len(filenames),
			"resolved", len(out),
			"timeout", timeout,
		)
		span.AddEvent("batch_timeout")
	}

	span.SetAttributes(attribute.Int("resolved_count", len(out)))
	span.SetStatus(codes.Ok, "checksum batch completed")
	return out
}
