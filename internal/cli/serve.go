package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petrorag/petrorag/internal/api/handlers"
	"github.com/petrorag/petrorag/internal/jobs"
	"github.com/petrorag/petrorag/internal/server"
	"github.com/petrorag/petrorag/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the PetroRAG API server. The server listens immediately and
prepares the corpus in the background; queries made before preparation
finishes are answered with 503.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "5000", "Port to listen on")
	cmd.Flags().String("host", "127.0.0.1", "Address to bind")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stdout)
	defer initTelemetry(cfg, logger)()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterConfig{
		QueryHandler: handlers.NewQueryHandler(a.engine),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr(), "memory", cfg.UseMemory)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var reload *jobs.Worker
	if cfg.ReloadInterval > 0 {
		reload = jobs.NewWorker(jobs.NewReload(a.indexer, logger), cfg.ReloadInterval, logger)
	}

	go func() {
		a.prepare(ctx)
		// Start returns at once if ctx ended during prepare, so Stop never hangs.
		if reload != nil {
			reload.Start(ctx)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if reload != nil {
		reload.Stop()
	}

	logger.Info("server exited")
	return nil
}

// prepare loads the engine. Failure leaves it not ready; the server keeps
// serving health checks and 503s.
func (a *app) prepare(ctx context.Context) {
	result, err := a.indexer.Prepare(ctx, false)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.CaptureError(ctx, err)
		a.logger.Error("failed to prepare engine", "err", err)
		return
	}
	a.logger.Info("engine ready", "chunks", result.Chunks, "recomputed", result.Recomputed)
}
