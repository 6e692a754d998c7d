package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roadsafe/roadsafe/internal/app"
	"github.com/roadsafe/roadsafe/internal/config"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the vector index from the knowledge base CSV",
	Long: `index loads the knowledge base CSV, embeds every record, and upserts
it into the configured vector store. Record IDs are derived from record
content, so re-indexing an unchanged CSV changes nothing and entries
removed from the CSV are deleted from persistent stores.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.Reindex(ctx); err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	n, err := a.Store.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting documents: %w", err)
	}
	fmt.Printf("Indexed %d interventions from %s\n", n, cfg.DatasetPath)
	return nil
}
