package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/roadsafe/roadsafe/db"
	"github.com/roadsafe/roadsafe/internal/config"
	"github.com/roadsafe/roadsafe/internal/dataset"
	"github.com/roadsafe/roadsafe/internal/knowledge"
	"github.com/roadsafe/roadsafe/internal/rag"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	switch cfg.Store {
	case config.StorePostgres:
		pool, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.Store = knowledge.NewPostgres(pool, embedder, logger)
	default: // memory
		a.Store = knowledge.NewMemory(embedder, logger)
	}

	a.Pipeline = rag.New(g, cfg.FullModelName(), cfg.Temperature, a.Store, cfg.TopK, logger)

	return a, nil
}

// EnsureIndex makes sure the knowledge store is populated. The memory store
// starts empty on every boot and is always rebuilt; a persistent store is
// only built when empty, so restarts do not re-embed an unchanged corpus.
func (a *App) EnsureIndex(ctx context.Context) error {
	if a.Config.Store == config.StorePostgres {
		n, err := a.Store.Count(ctx)
		if err != nil {
			return fmt.Errorf("checking index size: %w", err)
		}
		if n > 0 {
			a.Logger.Info("knowledge index already populated", "documents", n)
			return nil
		}
	}
	return a.Reindex(ctx)
}

// Reindex loads the knowledge base CSV and rebuilds the vector index.
// Record IDs are deterministic, so rebuilding an unchanged CSV is a no-op
// upsert and stale entries are removed from persistent stores.
func (a *App) Reindex(ctx context.Context) error {
	records, err := dataset.Load(a.Config.DatasetPath, a.Logger)
	if err != nil {
		return err
	}

	if _, err := rag.Index(ctx, a.Store, records, a.Logger); err != nil {
		return err
	}
	return nil
}

// provideOtelShutdown registers an OTLP HTTP span exporter on Genkit's
// TracerProvider. Must run before provideGenkit so the provider is ready.
// Tracing is disabled when no endpoint is configured.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	tr := cfg.Tracing
	if tr.Endpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly once
	// during startup, before goroutines are spawned.
	if tr.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", tr.ServiceName)
	}
	if tr.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+tr.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(tr.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", tr.Endpoint,
		"service", tr.ServiceName,
		"environment", tr.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	default: // gemini
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
		return g, nil
	}
}

// provideEmbedder looks up the embedder registered by the provider plugin.
// The ollama embedder is keyed by server address, gemini by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default: // gemini
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
