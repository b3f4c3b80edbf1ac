// Package api serves the vigilante's health and admin endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/gsa-vigilante/pkg/common/logger"
	"github.com/ahrav/gsa-vigilante/pkg/common/otel"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseEndpoint groups the shards of one state database.
type DatabaseEndpoint struct {
	Name   string
	Shards []Pinger
}

// ScanTrigger starts a reconciliation pass outside the schedule.
type ScanTrigger interface {
	RunOnce(ctx context.Context)
}

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Addr      string
	Build     string
	Databases []DatabaseEndpoint
	Trigger   ScanTrigger
	// Active reports whether this replica currently runs the vigilante.
	// Triggers on inactive replicas are refused. Nil means always active.
	Active    func() bool
	Metrics   APIMetrics
	Log       *logger.Logger
	Tracer    trace.Tracer
}

type Server struct {
	cfg    Config
	logger *logger.Logger
	router *chi.Mux
	tracer trace.Tracer
}

func NewServer(cfg Config) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(cfg.Tracer))
	r.Use(loggerMiddleware(cfg.Log, cfg.Metrics))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:    cfg,
		logger: cfg.Log.With("component", "api"),
		router: r,
		tracer: cfg.Tracer,
	}

	s.routes()
	return s
}

func loggerMiddleware(log *logger.Logger, metrics APIMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				if metrics != nil {
					metrics.IncRequestsTotal(ctx, r.Method, r.URL.Path, ww.Status())
					metrics.ObserveRequestDuration(ctx, r.Method, r.URL.Path, time.Since(start))
				}
				log.Debug(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/liveness", s.handleLiveness)
		r.Get("/readiness", s.handleReadiness)
		r.Post("/scan", s.handleScan)
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Build  string `json:"build,omitempty"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Build: s.cfg.Build})
}

type readyResponse struct {
	Status    string            `json:"status"`
	Databases map[string]string `json:"databases,omitempty"`
}

// handleReadiness pings every shard of every database endpoint. The service
// is ready while at least one endpoint is fully reachable, since reads fail
// over between endpoints.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := readyResponse{Status: "ready"}
	if len(s.cfg.Databases) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Databases = make(map[string]string, len(s.cfg.Databases))
	healthy := 0
	for _, db := range s.cfg.Databases {
		var errs []error
		for _, shard := range db.Shards {
			if err := shard.Ping(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			s.logger.Warn(ctx, "database endpoint not reachable", "endpoint", db.Name, "error", err)
			resp.Databases[db.Name] = err.Error()
			continue
		}
		resp.Databases[db.Name] = "ok"
		healthy++
	}

	if healthy == 0 {
		resp.Status = "not ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type scanResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.IncScanRequestsTotal(r.Context())
	}
	if s.cfg.Trigger == nil {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.IncScanRequestErrors(r.Context(), "no_trigger")
		}
		http.Error(w, "scanning not available", http.StatusServiceUnavailable)
		return
	}

	if s.cfg.Active != nil && !s.cfg.Active() {
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.IncScanRequestErrors(r.Context(), "inactive")
		}
		http.Error(w, "vigilante not active on this replica", http.StatusConflict)
		return
	}

	// The pass outlives the request.
	ctx := context.WithoutCancel(r.Context())
	go s.cfg.Trigger.RunOnce(ctx)

	s.logger.Info(r.Context(), "scan triggered", "trace_id", otel.GetTraceID(r.Context()))
	writeJSON(w, http.StatusAccepted, scanResponse{Status: "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting server", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
