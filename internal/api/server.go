// Package api serves the generation pipeline over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/metrics"
	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
)

// maxBodyBytes bounds request bodies; file sets are sent inline.
const maxBodyBytes = 10 << 20

// Pipeline is the subset of the orchestrator the API exposes.
type Pipeline interface {
	Generate(ctx context.Context, description, appName string) orchestration.Result
	Modify(ctx context.Context, existing []swift.File, request string) orchestration.Result
	Recover(ctx context.Context, errs []string, files []swift.File) recovery.Outcome
	Metrics() *metrics.Tracker
}

// HistoryReader is the read side of the history database.
type HistoryReader interface {
	RecentGenerations(ctx context.Context, limit int) ([]storage.Generation, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

// Server is the HTTP API server.
type Server struct {
	pipeline  Pipeline
	history   HistoryReader
	providers []string
	addr      string
	logger    zerolog.Logger
	srv       *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables /v1/history and the persisted part of /v1/stats.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

// WithProviders lists the configured LLM providers on /healthz.
func WithProviders(names []string) Option {
	return func(s *Server) { s.providers = names }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, p Pipeline, opts ...Option) *Server {
	s := &Server{pipeline: p, addr: addr, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(bodySizeLimitMiddleware(maxBodyBytes))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/modify", s.handleModify)
		r.Post("/recover", s.handleRecover)
		r.Post("/repair", s.handleRepair)
		r.Post("/classify", s.handleClassify)
		r.Get("/stats", s.handleStats)
		r.Get("/history", s.handleHistory)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled or SIGINT/SIGTERM arrives,
// then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("api server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down api server")
		// Generation requests can run for minutes.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func bodySizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
