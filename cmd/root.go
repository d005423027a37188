// Package cmd defines and implements the CLI commands for the magarchive executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/app"
	"github.com/JakeFAU/magazine-archive/internal/config"
	"github.com/JakeFAU/magazine-archive/internal/logging"
	"github.com/JakeFAU/magazine-archive/internal/telemetry"
)

// sessionKeyType is the key for storing the loaded session in the context.
type sessionKeyType string

const sessionKey sessionKeyType = "session"

// session is what PersistentPreRunE prepares for every subcommand.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	tracer *sdktrace.TracerProvider
}

// newApp is the application factory. It's a variable so tests can swap in
// a factory with preconfigured backends.
var newApp = app.New

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "magarchive",
		Short: "Ingests a magazine archive and serves full-text search over it.",
		Long: `magarchive discovers the issues linked from a magazine archive page,
downloads and extracts each document, stores it in object storage alongside a
searchable metadata row, and serves list, search and lookup endpoints.`,
		SilenceUsage: true,

		// Runs before every subcommand: config and logger are shared, the
		// stores are built by the subcommands that need them.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			tp, err := telemetry.InitTracerProvider(cmd.Context(), "magarchive")
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, &session{cfg: cfg, logger: logger, tracer: tp}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if rt, ok := cmd.Context().Value(sessionKey).(*session); ok && rt != nil {
				if err := rt.tracer.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
					rt.logger.Warn("Tracer shutdown failed", zap.Error(err))
				}
				if err := logging.Sync(rt.logger); err != nil {
					fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables use the MAGARCHIVE_ prefix)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newMigrateCmd())

	return cmd
}

func resolveSession(ctx context.Context) (*session, error) {
	rt, ok := ctx.Value(sessionKey).(*session)
	if !ok || rt == nil {
		return nil, errors.New("configuration not loaded")
	}
	return rt, nil
}

// buildApp wires the stores for commands that need them. The caller closes it.
func buildApp(ctx context.Context) (*app.App, *session, error) {
	rt, err := resolveSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, rt.cfg, rt.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application services: %w", err)
	}
	return a, rt, nil
}

func closeApp(a *app.App, logger *zap.Logger) {
	if err := a.Close(); err != nil {
		logger.Warn("Failed to close application services", zap.Error(err))
	}
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context: serve shuts down and ingest stops between issues.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "magarchive: %v\n", err)
		os.Exit(1)
	}
}
