package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tlsgatedev/tlsgate/internal/metrics"
)

// Server binds the gateway handler to the configured address and
// provides graceful shutdown support.
type Server struct {
	router  chi.Router
	httpSrv *http.Server
}

// NewServer creates a Server around the gateway handler. Zero-value
// timeouts leave the corresponding http.Server field at its default.
// When collector is non-nil a Prometheus text endpoint is mounted at
// /metrics.
func NewServer(handler *Handler, addr string, collector *metrics.Collector, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	r := chi.NewRouter()

	// Standard chi middleware.
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/health/ready", handleHealth)
	if collector != nil {
		r.Get("/metrics", metrics.PrometheusHandler(collector))
	}

	// Everything else flows through the pipeline.
	r.Handle("/*", handler)

	return &Server{
		router: r,
		httpSrv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
	}
}

// Router returns the underlying chi.Router, useful for testing or
// additional route mounting by the caller.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening for HTTP connections on the configured address.
// It blocks until the server is shut down or encounters a fatal error.
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// StartTLS begins listening for HTTPS connections using the given
// certificate and key files.
func (s *Server) StartTLS(certFile, keyFile string) error {
	if err := s.httpSrv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server (TLS): %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
}
