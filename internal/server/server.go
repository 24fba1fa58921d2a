// Package server exposes sizing runs over HTTP: jobs are started in the
// background, observed through SSE and persisted in the run store.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/pipesizer/internal/metrics"
	"github.com/cwbudde/pipesizer/internal/solver"
	"github.com/cwbudde/pipesizer/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	metrics    *metrics.Registry
	addr       string
	server     *http.Server
}

// NewServer creates a new HTTP server. st and reg may be nil, which
// disables persistence and the /metrics endpoint.
func NewServer(addr string, st *store.FSStore, reg *metrics.Registry) *Server {
	return &Server{
		jobManager: NewJobManager(),
		store:      st,
		metrics:    reg,
		addr:       addr,
	}
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/runs", s.handleJobs)
	mux.HandleFunc("/api/v1/runs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/results", s.handleListResults)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown cancels unfinished jobs and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.jobManager.CancelAll()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/runs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/runs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteJob(w, r, jobID)
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "report":
		s.handleGetReport(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/runs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var cfg JobConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if cfg.ProblemPath == "" {
		http.Error(w, "problemPath is required", http.StatusBadRequest)
		return
	}
	if _, _, err := prepareJob(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.cancel = cancel })

	go func() {
		defer cancel()
		runJob(ctx, s.jobManager, s.store, s.metrics, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/runs[?state=running]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	switch state := r.URL.Query().Get("state"); state {
	case "":
		writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
	case string(StateRunning):
		writeJSON(w, http.StatusOK, s.jobManager.GetRunningJobs())
	default:
		http.Error(w, "Unsupported state filter: "+state, http.StatusBadRequest)
	}
}

// handleListResults handles GET /api/v1/results
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.RunInfo{})
		return
	}
	infos, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetJobStatus handles GET /api/v1/runs/:id. Runs from an earlier
// server process are answered from the store.
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		record, err := s.loadRecord(jobID)
		if err != nil {
			writeLoadError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	response := map[string]interface{}{
		"id":        job.ID,
		"state":     job.State,
		"config":    job.Config,
		"problem":   job.Problem,
		"algorithm": job.Algorithm,
		"trials":    job.Trials,
		"found":     job.Found,
		"bestCost":  job.BestCost,
		"result":    job.Result,
		"elapsed":   elapsed.Seconds(),
		"startTime": job.StartTime,
		"endTime":   job.EndTime,
		"error":     job.Error,
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGetReport handles GET /api/v1/runs/:id/report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, jobID string) {
	var result *solver.Result
	if job, exists := s.jobManager.GetJob(jobID); exists {
		if !job.State.Terminal() {
			http.Error(w, "Run still in progress", http.StatusConflict)
			return
		}
		result = job.Result
	} else {
		record, err := s.loadRecord(jobID)
		if err != nil {
			writeLoadError(w, err)
			return
		}
		result = record.Result
	}
	if result == nil {
		http.Error(w, "No result for this run", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := solver.WriteReport(w, result); err != nil {
		slog.Error("Failed to write report", "run_id", jobID, "error", err)
	}
}

// handleDeleteJob handles DELETE /api/v1/runs/:id. An unfinished job is
// cancelled; a finished one is forgotten and removed from the store.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if job, exists := s.jobManager.GetJob(jobID); exists && !job.State.Terminal() {
		if err := s.jobManager.CancelJob(jobID); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	_, inMemory := s.jobManager.GetJob(jobID)
	if inMemory {
		s.jobManager.RemoveJob(jobID)
	}

	if s.store != nil {
		err := s.store.DeleteRun(jobID)
		if err != nil && !(inMemory && errors.Is(err, store.ErrNotFound)) {
			writeLoadError(w, err)
			return
		}
	} else if !inMemory {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadRecord(runID string) (*store.Record, error) {
	if s.store == nil {
		return nil, &store.NotFoundError{RunID: runID}
	}
	return s.store.LoadRun(runID)
}

func writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
