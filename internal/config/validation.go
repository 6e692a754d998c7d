package config

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Sentinel errors for configuration validation; check with errors.Is.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the required LLM API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is empty.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopK indicates the retrieval fan-out is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidDatasetPath indicates the CSV knowledge base path is empty.
	ErrInvalidDatasetPath = errors.New("invalid dataset path")

	// ErrInvalidStore indicates the vector store backend is unknown.
	ErrInvalidStore = errors.New("invalid store backend")

	// ErrInvalidAddr indicates the HTTP listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidPostgres indicates the PostgreSQL settings are incomplete.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidRateLimit indicates the rate limit settings are out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration and fails fast with a sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: set GEMINI_API_KEY (https://ai.google.dev/)", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host must be set for the ollama provider", ErrInvalidProvider)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama)", ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: %d (must be in [1, 20])", ErrInvalidTopK, c.TopK)
	}
	if c.DatasetPath == "" {
		return fmt.Errorf("%w: dataset_path must not be empty", ErrInvalidDatasetPath)
	}

	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if err := c.validatePostgres(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q (supported: memory, postgres)", ErrInvalidStore, c.Store)
	}

	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddr, c.Addr, err)
	}

	if c.RateRPS <= 0 {
		return fmt.Errorf("%w: rate_rps must be positive, got %v", ErrInvalidRateLimit, c.RateRPS)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("%w: rate_burst must be at least 1, got %d", ErrInvalidRateLimit, c.RateBurst)
	}

	return nil
}

// validatePostgres checks the fields required by the postgres store backend.
func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("%w: user must not be empty", ErrInvalidPostgres)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgres)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: unknown sslmode %q", ErrInvalidPostgres, c.PostgresSSLMode)
	}
	return nil
}
