package gsa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

var _ transfer.TransferStatusQuerier = (*ETransferClient)(nil)

// ETransferClient queries the e-transfer queue system for the state of files
// handed to its pickup area.
type ETransferClient struct {
	transport *transport

	logger *logger.Logger
	tracer trace.Tracer
}

// NewETransferClient creates an ETransferClient for cfg.ETransferURL.
func NewETransferClient(
	cfg Config,
	httpClient *http.Client,
	logger *logger.Logger,
	tracer trace.Tracer,
) (*ETransferClient, error) {
	cfg = cfg.withDefaults()
	logger = logger.With("component", "etransfer_client")

	t, err := newTransport("etransfer", cfg.ETransferURL, httpClient, cfg, logger, tracer)
	if err != nil {
		return nil, err
	}

	return &ETransferClient{transport: t, logger: logger, tracer: tracer}, nil
}

type statusResponse struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type batchStatusRequest struct {
	Files []string `json:"files"`
}

type batchStatusResponse struct {
	Results []statusResponse `json:"results"`
}

// TransferStatus returns the translated e-transfer status of filename. A 404
// answer is the remote not-found code and therefore carries no entry.
func (c *ETransferClient) TransferStatus(ctx context.Context, filename string) (transfer.FileStatus, bool, error) {
	ctx, span := c.tracer.Start(ctx, "etransfer_client.transfer_status",
		trace.WithAttributes(attribute.String("filename", filename)))
	defer span.End()

	var resp statusResponse
	err := c.transport.do(ctx, http.MethodGet, "/v1/status", url.Values{"file": {filename}}, nil, &resp)
	if errors.Is(err, errNotFound) {
		span.SetStatus(codes.Ok, "no e-transfer entry")
		return transfer.FileStatus{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status query failed")
		return transfer.FileStatus{}, false, fmt.Errorf("querying e-transfer status for %s: %w", filename, err)
	}

	status, ok, err := transfer.RemoteStatus{Code: transfer.RemoteCode(resp.Code), Message: resp.Message}.Translate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unrecognized remote code")
		return transfer.FileStatus{}, false, fmt.Errorf("e-transfer status for %s: %w", filename, err)
	}

	span.SetAttributes(attribute.String("remote_code", resp.Code))
	span.SetStatus(codes.Ok, "status resolved")
	return status, ok, nil
}

// TransferStatuses resolves filenames in a single batch request. Entries the
// service could not answer are logged and omitted; not-found and success
// answers are present with Found unset.
func (c *ETransferClient) TransferStatuses(ctx context.Context, filenames []string) (map[string]transfer.StatusLookup, error) {
	ctx, span := c.tracer.Start(ctx, "etransfer_client.transfer_statuses",
		trace.WithAttributes(attribute.Int("file_count", len(filenames))))
	defer span.End()

	out := make(map[string]transfer.StatusLookup, len(filenames))
	if len(filenames) == 0 {
		return out, nil
	}

	var resp batchStatusResponse
	if err := c.transport.do(ctx, http.MethodPost, "/v1/status/batch", nil, batchStatusRequest{Files: filenames}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch status query failed")
		return nil, fmt.Errorf("querying e-transfer batch status: %w", err)
	}

	for _, r := range resp.Results {
		if r.Error != "" {
			c.logger.Warn(ctx, "e-transfer could not resolve file", "filename", r.File, "error", r.Error)
			continue
		}

		status, ok, err := transfer.RemoteStatus{Code: transfer.RemoteCode(r.Code), Message: r.Message}.Translate()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "unrecognized remote code")
			return nil, fmt.Errorf("e-transfer status for %s: %w", r.File, err)
		}
		out[r.File] = transfer.StatusLookup{Status: status, Found: ok}
	}

	span.SetAttributes(attribute.Int("resolved_count", len(out)))
	span.SetStatus(codes.Ok, "batch status resolved")
	return out, nil
}
