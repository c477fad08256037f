// Package server provides the HTTP serve mode: a REST view over run
// artifacts, Prometheus metrics, health probes and the MCP streamable
// endpoint, all behind one chi router.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/averyhale/dossier/internal/pool"
)

// scanWorkers bounds the parallel run-directory scans behind GET /api/runs.
const scanWorkers = 8

// Config carries the listen address and connection timeouts.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP API server for serve mode.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	runsDir    string
	mcpHandler http.Handler
	pool       *pool.Pool
	logger     zerolog.Logger
}

// NewServer creates the HTTP server. runsDir is the run artifact root the
// REST endpoints read from. mcpHandler, when non-nil, is mounted at /mcp.
func NewServer(cfg Config, runsDir string, mcpHandler http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		runsDir:    runsDir,
		mcpHandler: mcpHandler,
		pool:       pool.New(scanWorkers),
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter assembles the route tree.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/runs", func(r chi.Router) {
		r.Get("/", s.listRuns)
		r.Get("/{runID}", s.getRun)
		r.Get("/{runID}/report", s.getRunReport)
		r.Get("/{runID}/verdict", s.getRunVerdict)
	})

	if s.mcpHandler != nil {
		r.Mount("/mcp", s.mcpHandler)
	}

	return r
}

// Handler exposes the router for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until Shutdown is
// called or the listener fails.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("serving HTTP")
	return s.httpServer.Serve(ln)
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler answers liveness probes.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the run artifact root is usable. The
// directory is created on demand so a fresh deployment is ready before its
// first run.
func (s *Server) readinessHandler(w http.ResponseWriter, _ *http.Request) {
	if err := os.MkdirAll(s.runsDir, 0o755); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"runs_dir": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"runs_dir": "ok",
	})
}

// writeJSON emits v as the response body with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Encode failures past this point cannot change the response code.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError wraps message in the JSON error envelope.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
