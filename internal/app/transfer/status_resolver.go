// Package transfer drives datasets through the archive transfer state machine:
// it resolves remote file statuses, snapshots local states across database
// shards, and reconciles the two on a schedule.
package transfer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// FileStatusResolver collapses the answers of both remote services into one
// FileStatus per file.
type FileStatusResolver interface {
	Resolve(ctx context.Context, filename string) (transfer.FileStatus, error)
	ResolveAll(ctx context.Context, filenames []string) (map[string]transfer.FileStatus, error)
}

var _ FileStatusResolver = (*StatusResolver)(nil)

// StatusResolver consults the e-transfer queue first and falls back to the
// archive CRC registry for files the queue has no entry for. Communication
// failures degrade to UNKNOWN; only an unrecognized remote code is returned as
// an error.
type StatusResolver struct {
	transfers       transfer.TransferStatusQuerier
	checksums       transfer.ChecksumQuerier
	checksumTimeout time.Duration

	logger *logger.Logger
	tracer trace.Tracer
}

// NewStatusResolver creates a StatusResolver. A non-positive checksumTimeout
// selects transfer.DefaultChecksumBatchTimeout.
func NewStatusResolver(
	transfers transfer.TransferStatusQuerier,
	checksums transfer.ChecksumQuerier,
	checksumTimeout time.Duration,
	logger *logger.Logger,
	tracer trace.Tracer,
) *StatusResolver {
	if checksumTimeout <= 0 {
		checksumTimeout = transfer.DefaultChecksumBatchTimeout
	}
	return &StatusResolver{
		transfers:       transfers,
		checksums:       checksums,
		checksumTimeout: checksumTimeout,
		logger:          logger.With("component", "status_resolver"),
		tracer:          tracer,
	}
}

// Resolve returns the remote status of a single file.
func (r *StatusResolver) Resolve(ctx context.Context, filename string) (transfer.FileStatus, error) {
	ctx, span := r.tracer.Start(ctx, "status_resolver.resolve",
		trace.WithAttributes(attribute.String("filename", filename)))
	defer span.End()

	status, found, err := r.transfers.TransferStatus(ctx, filename)
	if err != nil {
		if errors.Is(err, transfer.ErrUnrecognizedRemoteCode) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unrecognized remote code")
			return transfer.FileStatus{}, err
		}
		r.logger.Warn(ctx, "e-transfer status query failed", "filename", filename, "error", err)
		span.SetStatus(codes.Ok, "degraded to unknown")
		return transfer.FileStatusUnknown(err.Error()), nil
	}
	if found {
		span.SetStatus(codes.Ok, "resolved by e-transfer")
		return status, nil
	}

	crc, archived, err := r.checksums.Checksum(ctx, filename)
	if err != nil {
		r.logger.Warn(ctx, "checksum query failed", "filename", filename, "error", err)
		span.SetStatus(codes.Ok, "degraded to unknown")
		return transfer.FileStatusUnknown(err.Error()), nil
	}

	span.SetStatus(codes.Ok, "resolved by checksum registry")
	if !archived {
		return transfer.FileStatusNotFound(), nil
	}
	return transfer.FileStatusAccepted(crc), nil
}

// ResolveAll resolves filenames with one batch e-transfer query followed by one
// batch checksum query over the files the queue had no entry for. The result
// holds exactly one entry per distinct input filename; anything left
// unresolved is UNKNOWN.
func (r *StatusResolver) ResolveAll(ctx context.Context, filenames []string) (map[string]transfer.FileStatus, error) {
	names := uniqueStrings(filenames)

	ctx, span := r.tracer.Start(ctx, "status_resolver.resolve_all",
		trace.WithAttributes(attribute.Int("file_count", len(names))))
	defer span.End()

	out := make(map[string]transfer.FileStatus, len(names))
	if len(names) == 0 {
		return out, nil
	}

	lookups, err := r.transfers.TransferStatuses(ctx, names)
	if err != nil {
		if errors.Is(err, transfer.ErrUnrecognizedRemoteCode) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unrecognized remote code")
			return nil, err
		}
		r.logger.Warn(ctx, "e-transfer batch query failed, all files unknown",
			"file_count", len(names),
			"error", err,
		)
		for _, name := range names {
			out[name] = transfer.FileStatusUnknown(err.Error())
		}
		span.SetStatus(codes.Ok, "degraded to unknown")
		return out, nil
	}

	var archiveCandidates []string
	for _, name := range names {
		lookup, ok := lookups[name]
		if !ok {
			continue
		}
		if lookup.Found {
			out[name] = lookup.Status
			continue
		}
		archiveCandidates = append(archiveCandidates, name)
	}

	if len(archiveCandidates) > 0 {
		crcs := r.checksums.Checksums(ctx, archiveCandidates, r.checksumTimeout)
		for _, name := range archiveCandidates {
			lookup, ok := crcs[name]
			if !ok {
				continue
			}
			if lookup.Found {
				out[name] = transfer.FileStatusAccepted(lookup.Checksum)
			} else {
				out[name] = transfer.FileStatusNotFound()
			}
		}
	}

	unresolved := 0
	for _, name := range names {
		if _, ok := out[name]; !ok {
			out[name] = transfer.FileStatusUnknown("status unavailable")
			unresolved++
		}
	}
	if unresolved > 0 {
		r.logger.Warn(ctx, "files left unresolved", "count", unresolved)
	}

	span.SetAttributes(
		attribute.Int("checksum_lookups", len(archiveCandidates)),
		attribute.Int("unresolved", unresolved),
	)
	span.SetStatus(codes.Ok, "batch resolved")
	return out, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
