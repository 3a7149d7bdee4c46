// Package server exposes people counting over HTTP
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/swdee/go-peoplecount"
	"github.com/swdee/go-peoplecount/report"
	"github.com/swdee/go-peoplecount/store"
)

// Counter counts the people in a video, it is satisfied by peoplecount.Pool
type Counter interface {
	CountPeople(path string) (*peoplecount.Result, error)
	Size() int
	Available() int
}

// RunStore persists run history, it is satisfied by store.DB
type RunStore interface {
	RecordRun(res *peoplecount.Result) error
	Runs(limit int) ([]*peoplecount.Result, error)
	Run(id string) (*peoplecount.Result, error)
}

// CountRequest is the body of POST /count
type CountRequest struct {
	VideoPath string `json:"video_path"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Server routes HTTP requests to the counter and run store
type Server struct {
	counter Counter
	runs    RunStore
	log     *zap.SugaredLogger
	router  *mux.Router

	started      time.Time
	totalRuns    atomic.Int64
	failedRuns   atomic.Int64
	totalFrames  atomic.Int64
	failedFrames atomic.Int64
}

// New returns a Server.  runs may be nil in which case run history is not
// kept and the /runs routes report it as unavailable.
func New(counter Counter, runs RunStore, log *zap.SugaredLogger) *Server {

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &Server{
		counter: counter,
		runs:    runs,
		log:     log,
		router:  mux.NewRouter(),
		started: time.Now(),
	}

	s.router.HandleFunc("/count", s.handleCount).Methods("POST")
	s.router.HandleFunc("/runs", s.handleRuns).Methods("GET")
	s.router.HandleFunc("/runs/{id}", s.handleRun).Methods("GET")
	s.router.HandleFunc("/runs/{id}/chart", s.handleChart).Methods("GET")
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {

	srv := &http.Server{
		Handler: s,
		Addr:    addr,
		// counting a long video takes a while
		WriteTimeout: 10 * time.Minute,
		ReadTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Infow("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Infow("shutting down server")

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {

	var req CountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "invalid_request", "Failed to decode request body", err.Error(), http.StatusBadRequest)
		return
	}

	if req.VideoPath == "" {
		sendErrorResponse(w, "invalid_request", "video_path is required", "", http.StatusBadRequest)
		return
	}

	res, err := s.counter.CountPeople(req.VideoPath)

	s.totalRuns.Add(1)

	if err != nil {
		s.failedRuns.Add(1)

		if errors.Is(err, peoplecount.ErrOpenVideo) || errors.Is(err, peoplecount.ErrReadFirstFrame) {
			sendErrorResponse(w, "invalid_video", "Failed to open video", err.Error(), http.StatusUnprocessableEntity)
			return
		}

		s.log.Errorw("counting failed", "path", req.VideoPath, "error", err)
		sendErrorResponse(w, "processing_error", "Failed to count people", err.Error(), http.StatusInternalServerError)
		return
	}

	s.totalFrames.Add(int64(res.FramesSampled))
	s.failedFrames.Add(int64(res.FramesFailed))

	if s.runs != nil {
		if err := s.runs.RecordRun(res); err != nil {
			s.log.Warnw("error recording run", "run", res.RunID, "error", err)
		}
	}

	sendJSON(w, http.StatusOK, res)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {

	if s.runs == nil {
		sendErrorResponse(w, "unavailable", "Run history is disabled", "", http.StatusNotFound)
		return
	}

	limit := 50

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)

		if err != nil || n < 1 {
			sendErrorResponse(w, "invalid_request", "limit must be a positive integer", v, http.StatusBadRequest)
			return
		}

		limit = n
	}

	runs, err := s.runs.Runs(limit)

	if err != nil {
		s.log.Errorw("error listing runs", "error", err)
		sendErrorResponse(w, "storage_error", "Failed to list runs", err.Error(), http.StatusInternalServerError)
		return
	}

	if runs == nil {
		runs = []*peoplecount.Result{}
	}

	sendJSON(w, http.StatusOK, runs)
}

// lookupRun writes an error response and returns nil if the run in the
// request path can not be loaded
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) *peoplecount.Result {

	if s.runs == nil {
		sendErrorResponse(w, "unavailable", "Run history is disabled", "", http.StatusNotFound)
		return nil
	}

	id := mux.Vars(r)["id"]

	res, err := s.runs.Run(id)

	if errors.Is(err, store.ErrNotFound) {
		sendErrorResponse(w, "not_found", "Run not found", id, http.StatusNotFound)
		return nil
	}

	if err != nil {
		s.log.Errorw("error loading run", "run", id, "error", err)
		sendErrorResponse(w, "storage_error", "Failed to load run", err.Error(), http.StatusInternalServerError)
		return nil
	}

	return res
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if res := s.lookupRun(w, r); res != nil {
		sendJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {

	res := s.lookupRun(w, r)

	if res == nil {
		return
	}

	var buf bytes.Buffer

	if err := report.Render(&buf, res); err != nil {
		s.log.Errorw("error rendering chart", "run", res.RunID, "error", err)
		sendErrorResponse(w, "render_error", "Failed to render chart", err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {

	size := s.counter.Size()
	available := s.counter.Available()

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"pool_size":       size,
		"counters_in_use": size - available,
		"runs_total":      s.totalRuns.Load(),
		"runs_failed":     s.failedRuns.Load(),
		"frames_sampled":  s.totalFrames.Load(),
		"frames_failed":   s.failedFrames.Load(),
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
	})
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func sendErrorResponse(w http.ResponseWriter, code, message, details string, status int) {
	sendJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
