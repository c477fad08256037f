package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/averyhale/dossier/internal/config"
	"github.com/averyhale/dossier/internal/mcptools"
	"github.com/averyhale/dossier/internal/observability"
	"github.com/averyhale/dossier/internal/server"
)

// runServeMCP serves the research tools over stdio until the context ends.
func runServeMCP(ctx context.Context, cfg *config.Config, logger zerolog.Logger) int {
	svc := mcptools.NewResearchService(pipelineConfig(cfg), logger, collaborators(cfg))
	srv := mcptools.NewResearchMCPServer(svc)

	logger.Info().Msg("MCP server listening on stdio")
	if err := mcptools.RunStdio(ctx, srv); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}

// runServeHTTP serves the REST API, Prometheus metrics and the MCP
// streamable endpoint on one address. An empty addr falls back to the
// configured http.addr.
func runServeHTTP(ctx context.Context, cfg *config.Config, addr string, logger zerolog.Logger) int {
	if addr == "" {
		addr = cfg.HTTP.Addr
	}

	collab := collaborators(cfg)
	collab.Metrics = observability.NewMetrics("dossier")
	svc := mcptools.NewResearchService(pipelineConfig(cfg), logger, collab)
	mcpServer := mcptools.NewResearchMCPServer(svc)

	srv := server.NewServer(server.Config{
		Address:         addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, cfg.RunsDir, mcptools.StreamableHandler(mcpServer), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitError
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "error: shutdown: %v\n", err)
			return exitError
		}
		<-errCh
		logger.Info().Msg("HTTP server stopped")
	}
	return exitOK
}
