package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaenox/doc-analyzer/internal/analyzer"
	"github.com/xaenox/doc-analyzer/internal/assistants"
	"github.com/xaenox/doc-analyzer/internal/server"
	"github.com/xaenox/doc-analyzer/internal/storage"
	"github.com/xaenox/doc-analyzer/pkg/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Long: `Creates the instance agent, then serves POST /DocumentAnalyzer until interrupted.
The agent is deleted on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root)
		},
	}
}

func runServe(ctx context.Context, root *rootOptions) error {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := loadConfig(root.ConfigFile)
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err), zap.String("path", root.ConfigFile))
		return err
	}

	journal, err := newJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client := assistants.New(assistantsConfig(cfg), logger.Named("assistants"))
	backend := analyzer.WithReadRetry(client, cfg.Agent.RetryDelay, logger)
	agents := analyzer.NewLifecycle(backend, "", logger.Named("agent"))
	logger = logger.With(zap.String("instance_id", agents.InstanceID()))

	if err := startAgent(ctx, cfg, agents); err != nil {
		journal.Close()
		return err
	}

	srv, err := buildServer(ctx, cfg, journal, backend, agents, logger)
	if err != nil {
		agents.Teardown(ctx)
		journal.Close()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error("Server stopped", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdown(shutdownCtx, srv, agents, journal); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		runErr = multierror.Append(runErr, err).ErrorOrNil()
	}
	return runErr
}

func buildServer(ctx context.Context, cfg *config.Config, journal storage.Storage, backend analyzer.Backend, agents *analyzer.Lifecycle, logger *zap.Logger) (*http.Server, error) {
	files, err := newFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps := server.Deps{
		Analyzer: analyzer.New(backend, agents, journal, analyzerOptions(cfg), logger.Named("analyzer")),
		Files:    files,
		Journal:  journal,
		Metrics:  server.NewMetrics(),
		Logger:   logger.Named("http"),
	}

	if cfg.Vision.Enabled {
		extractor, err := newVision(cfg, agents.InstanceID(), journal, logger)
		if err != nil {
			return nil, err
		}
		deps.Vision = extractor
		logger.Info("Vision path enabled", zap.String("model", cfg.Vision.Model))
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(deps, server.Options{
		APIKeys:         cfg.Server.APIKeys,
		MaxDocumentSize: cfg.Server.MaxDocumentSize,
	})
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// shutdown stops accepting requests, deletes the agent and closes the journal.
// Agent deletion only logs, the other failures are aggregated.
func shutdown(ctx context.Context, srv *http.Server, agents *analyzer.Lifecycle, journal storage.Storage) error {
	var errs *multierror.Error
	if err := srv.Shutdown(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	agents.Teardown(ctx)
	if err := journal.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close journal: %w", err))
	}
	return errs.ErrorOrNil()
}
