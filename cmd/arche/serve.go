package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/perforate-org/arche/internal/config"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/mcp"
	"github.com/perforate-org/arche/internal/sqlite"
	"github.com/perforate-org/arche/internal/transport"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: `Opens the configured backend, restores the indices from the snapshot
(rebuilding them when it is missing or unreadable) and serves MCP over stdio
or HTTP. On SIGINT or SIGTERM the indices are snapshotted before exit.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("close storage", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := b.app.Manager.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to load indices: %w", err)
	}
	logger.Info("storage ready",
		"backend", cfg.Storage.Backend,
		"restored", report.Restored,
		"rebuilt_kinds", report.RebuiltKinds)

	// Terminate writes the final snapshot, so it runs on a fresh context.
	defer func() {
		termCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		b.app.Manager.Terminate(termCtx)
	}()

	if cfg.Bootstrap.SeedAnonymous {
		if err := b.app.Users.SeedAnonymous(ctx); err != nil {
			return fmt.Errorf("failed to seed anonymous user: %w", err)
		}
	}

	var defaultCaller user.PrimaryKey
	httpAuth := cfg.Transport.Mode == config.TransportHTTP && cfg.Auth.Enabled
	if !httpAuth {
		defaultCaller, err = b.app.Users.Resolve(cfg.Auth.DefaultCaller)
		if err != nil {
			return fmt.Errorf("default caller %q: %w", cfg.Auth.DefaultCaller, err)
		}
	}

	var keys *sqlite.APIKeyRepository
	if httpAuth {
		repo, closeKeys, err := openKeys(cfg, b)
		if err != nil {
			return err
		}
		defer closeKeys()
		keys = repo
	}

	mcpCfg := mcp.Config{
		Services: mcp.Services{
			Users:    b.app.Users,
			Papers:   b.app.Papers,
			Articles: b.app.Articles,
			Stats:    b.app.State,
		},
		AuthEnabled:   cfg.Auth.Enabled,
		TransportMode: cfg.Transport.Mode,
		DefaultCaller: defaultCaller,
		Logger:        logger,
	}
	if keys != nil {
		mcpCfg.Resolver = keys
	}
	mcpServer := mcp.NewServer(mcpCfg)

	if cfg.Transport.Mode == config.TransportStdio {
		return runStdioMode(ctx, logger, mcpServer)
	}

	routerCfg := transport.RouterConfig{
		MCP:     mcp.NewHTTPHandler(mcpServer),
		Metrics: promhttp.Handler(),
		Admin:   b.app.Manager,
		Stats:   b.app.State,
	}
	if keys != nil {
		routerCfg.Auth = transport.AuthMiddleware(keys, logger.With("component", "admin"))
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return runHTTPMode(ctx, logger, &http.Server{
		Addr:    addr,
		Handler: transport.NewRouter(routerCfg),
	})
}

func runStdioMode(ctx context.Context, logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport", "auth", "disabled")

	// Run blocks until stdin closes or ctx is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	logger.Info("shutting down")
	return nil
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, server *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		return nil
	})
	return g.Wait()
}
