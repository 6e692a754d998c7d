// Package app wires the application together: Genkit, the AI provider,
// the knowledge store, and the recommendation pipeline. Commands build an
// App and use its components; Close releases everything in reverse order.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roadsafe/roadsafe/internal/config"
	"github.com/roadsafe/roadsafe/internal/knowledge"
	"github.com/roadsafe/roadsafe/internal/rag"
)

// App is the application container.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool // nil when the memory store is used
	Store    knowledge.Store
	Pipeline *rag.Pipeline

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down application")

	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("closing knowledge store", "error", err)
		}
	}

	if a.Pool != nil {
		a.Pool.Close()
		logger.Info("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
