// Copyright 2026 The Promptwire Authors
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

// Package server is the HTTP front door: an OpenAI-compatible chat
// completion endpoint that runs the configured workflow pipeline, plus
// health and prometheus metrics endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves the front door and owns the active Runtime.
type Server struct {
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	runtime *Runtime

	httpSrv         *http.Server
	shutdownTimeout time.Duration
}

// New creates a Server listening on addr once Serve is called.
func New(addr string, runtime *Runtime, m *Metrics, logger *slog.Logger, shutdownTimeout time.Duration) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	s := &Server{
		logger:          logger,
		metrics:         m,
		runtime:         runtime,
		shutdownTimeout: shutdownTimeout,
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// NewMetrics builds the server's collectors on a fresh registry along with
// the process and Go runtime collectors, and returns both.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg), reg
}

// routes builds the HTTP mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletion)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// WithMetricsHandler mounts the prometheus handler for a registry.
func (s *Server) WithMetricsHandler(reg *prometheus.Registry) *Server {
	mux := s.httpSrv.Handler.(*http.ServeMux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return s
}

// SwapRuntime atomically replaces the active runtime. In-flight requests
// finish on the runtime they started with.
func (s *Server) SwapRuntime(rt *Runtime) {
	s.mu.Lock()
	s.runtime = rt
	s.mu.Unlock()
	s.logger.Info("runtime swapped")
}

func (s *Server) currentRuntime() *Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtime
}

// Serve blocks until ctx is done or the listener fails, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
