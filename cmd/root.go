// Package cmd provides the CLI commands for the intervention tool.
//
// Commands:
//   - serve: HTTP server with the form page and JSON API
//   - index: rebuild the vector index from the knowledge base CSV
//   - ask:   one-shot recommendation on the command line
//   - mcp:   Model Context Protocol server for IDE integration
//
// All long-running commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roadsafe/roadsafe/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "roadsafe",
	Short: "Road safety intervention recommendation tool",
	Long: `roadsafe analyzes described road safety issues and recommends
interventions from a curated knowledge base, citing the source document
and clause behind every recommendation.

Running roadsafe without a subcommand starts the HTTP server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute is the entry point for the CLI.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(log.New(log.Config{Level: level}))

	return rootCmd.Execute()
}
