// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/feed"
	"github.com/poiesic/ragline/index"
)

// RequestIDHeader carries the request ID. An incoming value is reused.
const RequestIDHeader = "X-Request-ID"

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 4 << 20

var (
	// ErrAnswererRequired indicates New was called without an answerer.
	ErrAnswererRequired = errors.New("answerer is required")

	// ErrIndexRequired indicates New was called without an index.
	ErrIndexRequired = errors.New("index is required")
)

// Answerer turns a question into a grounded answer. *query.Orchestrator
// satisfies it.
type Answerer interface {
	Answer(ctx context.Context, req core.QueryRequest) (*core.QueryResponse, error)
}

// Publisher accepts events for ingestion. *feed.Channel satisfies it.
type Publisher interface {
	Publish(ctx context.Context, events ...core.IngestEvent) error
}

// Server is the HTTP surface of the service.
type Server struct {
	answerer     Answerer
	index        index.Index
	publisher    Publisher
	maxBodyBytes int64
	readTimeout  time.Duration
	writeTimeout time.Duration
	logger       *slog.Logger
	mux          *http.ServeMux
}

// Option configures a Server.
type Option func(*Server) error

// WithPublisher enables POST /ingest. Without one the route answers 503.
func WithPublisher(p Publisher) Option {
	return func(s *Server) error {
		s.publisher = p
		return nil
	}
}

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("max body bytes must be positive, got %d", n)
		}
		s.maxBodyBytes = n
		return nil
	}
}

// WithTimeouts sets the listener read and write timeouts used by Run.
func WithTimeouts(read, write time.Duration) Option {
	return func(s *Server) error {
		s.readTimeout = read
		s.writeTimeout = write
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// New creates a Server.
func New(answerer Answerer, idx index.Index, opts ...Option) (*Server, error) {
	if answerer == nil {
		return nil, ErrAnswererRequired
	}
	if idx == nil {
		return nil, ErrIndexRequired
	}

	s := &Server{
		answerer:     answerer,
		index:        idx,
		maxBodyBytes: DefaultMaxBodyBytes,
		readTimeout:  15 * time.Second,
		writeTimeout: 30 * time.Second,
		logger:       slog.Default(),
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "server")

	s.route("POST /query", s.handleQuery)
	s.route("POST /ingest", s.handleIngest)
	s.route("DELETE /documents/{id}", s.handleDelete)
	s.route("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// route registers h with request IDs, access logging and metrics.
func (s *Server) route(pattern string, h http.HandlerFunc) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		elapsed := time.Since(start)
		httpRequestsTotal.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(pattern).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", elapsed,
			"request_id", id)
	}))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"status", status,
			"request_id", w.Header().Get(RequestIDHeader),
			"err", err)
	}
	writeError(w, status, detail)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorDetail{CodeInvalidRequest, "request body too large"})
			return nil, false
		}
		writeError(w, http.StatusBadRequest, ErrorDetail{CodeInvalidRequest, "failed to read request body"})
		return nil, false
	}
	return body, true
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req core.QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorDetail{CodeInvalidRequest, "invalid request body: " + err.Error()})
		return
	}

	resp, err := s.answerer.Answer(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestResponse acknowledges accepted events.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorDetail{CodeUnavailable, "ingestion is not enabled"})
		return
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorDetail{CodeInvalidRequest, err.Error()})
		return
	}
	for i := range events {
		if err := core.ValidateIngestEvent(&events[i]); err != nil {
			writeError(w, http.StatusBadRequest, ErrorDetail{CodeInvalidRequest, fmt.Sprintf("event %d: %v", i, err)})
			return
		}
	}

	if err := s.publisher.Publish(r.Context(), events...); err != nil {
		var accepted int
		var pubErr *feed.PublishError
		if errors.As(err, &pubErr) {
			accepted = pubErr.Accepted
		}
		s.logger.Warn("ingest publish failed", "events", len(events), "accepted", accepted, "err", err)
		status, detail := classify(err)
		if r.Context().Err() != nil {
			status, detail = http.StatusServiceUnavailable, ErrorDetail{CodeUnavailable, "request cancelled while enqueueing"}
		}
		writeJSON(w, status, ErrorResponse{Error: detail, Accepted: accepted})
		return
	}
	writeJSON(w, http.StatusAccepted, IngestResponse{Accepted: len(events)})
}

// decodeEvents accepts a single event object or an array of events.
func decodeEvents(body []byte) ([]core.IngestEvent, error) {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			var events []core.IngestEvent
			if err := json.Unmarshal(body, &events); err != nil {
				return nil, fmt.Errorf("invalid request body: %w", err)
			}
			if len(events) == 0 {
				return nil, errors.New("no events in request")
			}
			return events, nil
		}
		var ev core.IngestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		return []core.IngestEvent{ev}, nil
	}
	return nil, errors.New("empty request body")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.index.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Health(r.Context()); err != nil {
		s.logger.Warn("health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
