package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	pingOK   = pingFunc(func(context.Context) error { return nil })
	pingDown = pingFunc(func(context.Context) error { return errors.New("connection refused") })
)

type countingTrigger struct{ calls atomic.Int32 }

func (c *countingTrigger) RunOnce(context.Context) { c.calls.Add(1) }

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	metrics, err := NewAPIMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	cfg.Log = logger.Noop()
	cfg.Tracer = tracenoop.NewTracerProvider().Tracer("test")
	cfg.Metrics = metrics
	return NewServer(cfg)
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Config{Build: "abc123"})
	rec := serve(s, http.MethodGet, "/v1/liveness")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, healthResponse{Status: "ok", Build: "abc123"}, resp)
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		databases []DatabaseEndpoint
		want      int
	}{
		{name: "no databases", want: http.StatusOK},
		{
			name: "all reachable",
			databases: []DatabaseEndpoint{
				{Name: "primary", Shards: []Pinger{pingOK, pingOK}},
			},
			want: http.StatusOK,
		},
		{
			name: "primary shard down, replica up",
			databases: []DatabaseEndpoint{
				{Name: "primary", Shards: []Pinger{pingOK, pingDown}},
				{Name: "replica", Shards: []Pinger{pingOK}},
			},
			want: http.StatusOK,
		},
		{
			name: "everything down",
			databases: []DatabaseEndpoint{
				{Name: "primary", Shards: []Pinger{pingDown}},
				{Name: "replica", Shards: []Pinger{pingDown}},
			},
			want: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, Config{Databases: tt.databases})
			rec := serve(s, http.MethodGet, "/v1/readiness")
			assert.Equal(t, tt.want, rec.Code)

			var resp readyResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Len(t, resp.Databases, len(tt.databases))
		})
	}
}

func TestScanTrigger(t *testing.T) {
	t.Parallel()

	trigger := new(countingTrigger)
	s := newTestServer(t, Config{Trigger: trigger})

	rec := serve(s, http.MethodPost, "/v1/scan")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Eventually(t, func() bool { return trigger.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	rec = serve(s, http.MethodGet, "/v1/scan")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScanTriggerUnavailable(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Config{})
	rec := serve(s, http.MethodPost, "/v1/scan")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanTriggerInactiveReplica(t *testing.T) {
	t.Parallel()

	trigger := new(countingTrigger)
	s := newTestServer(t, Config{Trigger: trigger, Active: func() bool { return false }})

	rec := serve(s, http.MethodPost, "/v1/scan")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Zero(t, trigger.calls.Load())
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, Config{})
	rec := serve(s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
