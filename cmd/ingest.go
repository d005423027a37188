package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newIngestCmd creates the 'ingest' subcommand, which runs one ingestion pass
// in the foreground and prints its report as JSON.
func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Runs one ingestion pass over the archive page",
		Long: `Discovers every document linked from archive.url, downloads, extracts and
stores each one, then prints the run report. Per-issue failures are reported,
not fatal; the command fails only when the archive page cannot be read.`,
		RunE: runIngestCommand,
	}
}

func runIngestCommand(cmd *cobra.Command, _ []string) error {
	a, rt, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a, rt.logger)
	if a.Orchestrator == nil {
		return errors.New("archive.url is required for ingestion")
	}

	report, runErr := a.Orchestrator.Run(cmd.Context())
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("ingest: %w", runErr)
	}
	return nil
}

// newReconcileCmd creates the 'reconcile' subcommand, which reports stored
// issues whose document object is missing.
func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Checks every stored issue against object storage",
		RunE:  runReconcileCommand,
	}
}

func runReconcileCommand(cmd *cobra.Command, _ []string) error {
	a, rt, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(a, rt.logger)

	report, err := a.Reconciler.Reconcile(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if len(report.Missing) > 0 {
		return fmt.Errorf("%d issues reference missing documents", len(report.Missing))
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
