// Package gsa provides HTTP clients for the Gemini Science Archive services the
// vigilante polls: the e-transfer queue and the archive CRC registry.
package gsa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/pkg/common"
	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

// errNotFound is returned by the transport when the service answers 404.
var errNotFound = errors.New("resource not found")

// Config holds the connection settings shared by the GSA clients.
type Config struct {
	ETransferURL string
	ChecksumURL  string

	// RequestsPerSecond and Burst bound the request rate against each service.
	RequestsPerSecond float64
	Burst             int

	// RequestTimeout bounds one HTTP round trip.
	RequestTimeout time.Duration

	// MaxRetries is the number of additional attempts made for transport
	// failures and 5xx answers.
	MaxRetries uint64

	// ChecksumWorkers bounds concurrent lookups in a batch checksum query.
	ChecksumWorkers int
}

func (c Config) withDefaults() Config {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 20
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ChecksumWorkers <= 0 {
		c.ChecksumWorkers = 8
	}
	return c
}

// NewHTTPClient returns the http.Client the GSA clients share. Outbound
// requests carry the caller's trace context.
func NewHTTPClient(cfg Config) *http.Client {
	cfg = cfg.withDefaults()
	return &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// transport issues rate limited, retried JSON requests against one service.
type transport struct {
	name        string
	baseURL     *url.URL
	httpClient  *http.Client
	rateLimiter *common.RateLimiter
	maxRetries  uint64
	newBackOff  func() backoff.BackOff

	logger *logger.Logger
	tracer trace.Tracer
}

func newTransport(
	name, rawURL string,
	httpClient *http.Client,
	cfg Config,
	logger *logger.Logger,
	tracer trace.Tracer,
) (*transport, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing %s url: %w", name, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s url %q must be absolute", name, rawURL)
	}

	return &transport{
		name:        name,
		baseURL:     base,
		httpClient:  httpClient,
		rateLimiter: common.NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: logger,
		tracer: tracer,
	}, nil
}

// retryableError marks failures worth another attempt. throttled is set when
// the service answered 429.
type retryableError struct {
	err       error
	throttled bool
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// do sends one request and decodes a JSON answer into out. A 404 answer
// returns errNotFound.
func (t *transport) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, span := t.tracer.Start(ctx, t.name+".do_request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		))
	defer span.End()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to marshal request")
			return fmt.Errorf("marshaling %s request: %w", t.name, err)
		}
	}

	target := t.baseURL.JoinPath(path)
	target.RawQuery = query.Encode()

	attempts := 0
	operation := func() error {
		attempts++
		if err := t.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter wait failed: %w", err))
		}

		err := t.roundTrip(ctx, method, target.String(), payload, out)
		if err == nil || errors.Is(err, errNotFound) {
			t.rateLimiter.Recover()
		}
		var retryable *retryableError
		if err != nil && !errors.As(err, &retryable) {
			return backoff.Permanent(err)
		}
		if retryable != nil && retryable.throttled {
			limit := t.rateLimiter.Throttle()
			t.logger.Warn(ctx, "service asked to slow down",
				"service", t.name,
				"requests_per_second", limit,
			)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), t.maxRetries), ctx)
	err := backoff.Retry(operation, b)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		if errors.Is(err, errNotFound) {
			span.SetStatus(codes.Ok, "not found")
			return err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}

	span.SetStatus(codes.Ok, "request completed")
	return nil
}

func (t *transport) roundTrip(ctx context.Context, method, target string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", t.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s request: %w", t.name, err)
		}
		return &retryableError{err: fmt.Errorf("%s request: %w", t.name, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return errNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &retryableError{err: fmt.Errorf("%s returned %d", t.name, resp.StatusCode), throttled: true}
	case resp.StatusCode >= http.StatusInternalServerError:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retryableError{err: fmt.Errorf("%s returned %d: %s", t.name, resp.StatusCode, strings.TrimSpace(string(msg)))}
	case resp.StatusCode >= http.StatusBadRequest:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", t.name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", t.name, err)
	}
	return nil
}
