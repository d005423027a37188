package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/config"
	"github.com/JakeFAU/magazine-archive/internal/schedule"
)

// newServeCmd creates the 'serve' subcommand: the HTTP API plus the optional
// ingestion schedule.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the magazine API",
		Long: `Starts the HTTP API (list, search, lookup, ingest trigger, health and
metrics). When ingest.schedule is set, ingestion also runs on that cron schedule.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, rt, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a, rt.logger)
	logger := rt.logger

	if rt.cfg.Ingest.Schedule != "" {
		if a.Orchestrator == nil {
			logger.Warn("ingest.schedule is set but archive.url is empty; schedule disabled")
		} else {
			sched, err := schedule.New(ctx, rt.cfg.Ingest.Schedule, a.Orchestrator, logger)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler:           a.Server(ctx).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server started", zap.Int("port", rt.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown initiated")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(rt.cfg.Server.ShutdownTimeoutSeconds))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	return nil
}
