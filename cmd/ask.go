package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roadsafe/roadsafe/internal/app"
	"github.com/roadsafe/roadsafe/internal/config"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [issue description]",
	Short: "Get a one-shot intervention recommendation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the recommendation as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(_ *cobra.Command, args []string) error {
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

	if err := a.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("building knowledge index: %w", err)
	}

	question := strings.Join(args, " ")
	rec, err := a.Pipeline.Recommend(ctx, question)
	if err != nil {
		return fmt.Errorf("analyzing issue: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	if rec.InsufficientData {
		fmt.Println("Status: Insufficient Data")
		fmt.Println()
		fmt.Println(rec.Explanation)
		return nil
	}

	fmt.Println("Recommended Intervention(s):")
	fmt.Println(rec.Interventions)
	if rec.Explanation != "" {
		fmt.Println()
		fmt.Println("Explanation & Justification:")
		fmt.Println(rec.Explanation)
	}
	if len(rec.Citations) > 0 {
		fmt.Println()
		fmt.Println("Database Reference:")
		for _, c := range rec.Citations {
			fmt.Printf("Source: %s, Clause: %s\n", c.Source, c.Clause)
		}
	}
	return nil
}
