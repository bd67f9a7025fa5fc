package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/idelchi/folderstat/internal/duration"
	"github.com/idelchi/folderstat/internal/folderstat"
	"github.com/idelchi/folderstat/internal/progress"
)

// analyzeRequest starts an analysis. Unset fields keep the server defaults.
type analyzeRequest struct {
	FolderPath         string `json:"folder_path"`
	CalculateDurations *bool  `json:"calculate_durations"`
	MaxFiles           *int64 `json:"max_files"`
	MaxDepth           *int   `json:"max_depth"`
	SkipSystemDirs     *bool  `json:"skip_system_dirs"`
	NoCache            *bool  `json:"no_cache"`
}

func (req analyzeRequest) options(defaults folderstat.Options) folderstat.Options {
	opts := defaults

	if req.CalculateDurations != nil {
		opts.CalculateDurations = *req.CalculateDurations
	}

	if req.MaxFiles != nil {
		opts.MaxFiles = *req.MaxFiles
	}

	if req.MaxDepth != nil {
		opts.MaxDepth = *req.MaxDepth
	}

	if req.SkipSystemDirs != nil {
		opts.SkipSystemDirs = *req.SkipSystemDirs
	}

	if req.NoCache != nil {
		opts.NoCache = *req.NoCache
	}

	return opts
}

type analyzeResponse struct {
	Status string `json:"status"`
	Path   string `json:"folder_path"`
}

func (s *Server) analyze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")

			return
		}

		opts := req.options(s.defaults)
		if err := opts.Validate(); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())

			return
		}

		root, err := folderstat.ResolveRoot(req.FolderPath)
		if err != nil {
			s.writeError(w, statusFor(err), err.Error())

			return
		}

		if !s.claim() {
			s.writeError(w, http.StatusConflict, progress.ErrBusy.Error())

			return
		}

		s.runs.Add(1)

		go s.run(s.ctx, root, opts)

		s.writeJSON(w, http.StatusAccepted, analyzeResponse{Status: "started", Path: root})
	}
}

// claim reserves the single analysis slot.
func (s *Server) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight || s.tracker.Current().Status == progress.StatusRunning {
		return false
	}

	s.inflight = true

	return true
}

func (s *Server) run(ctx context.Context, root string, opts folderstat.Options) {
	defer s.runs.Done()
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	report, err := s.analyzer.Analyze(ctx, root, opts)
	if err != nil {
		s.logger.Warn("analysis failed", zap.String("path", root), zap.Error(err))

		return
	}

	// Cache hits never touch the tracker, so publish them explicitly.
	if report.FromCache {
		if _, err := s.tracker.Begin(ctx); err == nil {
			s.tracker.Complete(report)
		}
	}
}

func (s *Server) progress() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, s.tracker.Current())
	}
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

func (s *Server) cancelRun() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !s.tracker.Cancel() {
			s.writeJSON(w, http.StatusConflict, cancelResponse{Cancelled: false})

			return
		}

		s.writeJSON(w, http.StatusOK, cancelResponse{Cancelled: true})
	}
}

type healthResponse struct {
	Status string              `json:"status"`
	Probe  duration.Capability `json:"ffprobe"`
	Error  string              `json:"ffprobe_error,omitempty"`
}

func (s *Server) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}

		prober := s.analyzer.Prober()
		if prober == nil {
			resp.Error = duration.ErrToolUnavailable.Error()
		} else if capability, err := prober.Available(r.Context()); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Probe = capability
		}

		s.writeJSON(w, http.StatusOK, resp)
	}
}

// statusFor maps analysis errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, folderstat.ErrInvalidInput), errors.Is(err, folderstat.ErrPathNotFound):
		return http.StatusBadRequest
	case errors.Is(err, folderstat.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, progress.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
