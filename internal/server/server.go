// Package server exposes an Analyzer over HTTP: start an analysis, poll its
// progress, cancel it and check probe health.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/idelchi/folderstat/internal/folderstat"
	"github.com/idelchi/folderstat/internal/progress"
)

// Server serves the analysis API.
type Server struct {
	analyzer *folderstat.Analyzer
	tracker  *progress.Tracker
	defaults folderstat.Options
	gatherer prometheus.Gatherer
	logger   *zap.Logger

	// Background runs outlive requests but not the server.
	ctx    context.Context //nolint:containedctx // Parent of background runs
	cancel context.CancelFunc
	runs   sync.WaitGroup

	mu       sync.Mutex
	inflight bool
}

// New creates a server. The analyzer must report to tracker.
func New(
	analyzer *folderstat.Analyzer,
	tracker *progress.Tracker,
	defaults folderstat.Options,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		analyzer: analyzer,
		tracker:  tracker,
		defaults: defaults,
		gatherer: gatherer,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.analyze())
		r.Get("/progress", s.progress())
		r.Post("/cancel", s.cancelRun())
		r.Get("/health", s.health())
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// Close cancels a background run and waits for it to finish.
func (s *Server) Close() {
	s.cancel()
	s.runs.Wait()
}

// Wait blocks until the background run, if any, has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()

		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)

	s.Close()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// logRequests logs each request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// writeJSON writes v with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", zap.Error(err))
	}
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
