// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables
//  2. Config file (~/.roadsafe/config.yaml, or ./config.yaml)
//  3. Defaults
//
// The only required secret is GEMINI_API_KEY (read directly by Genkit, its
// presence is validated here). PostgresPassword is masked in MarshalJSON so
// the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Store backend identifiers used in Config.Store.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// DefaultEmbedderModel is the Gemini embedding model used for the
// intervention index. text-embedding-004 produces 768-dimension vectors;
// the pgvector schema depends on that width (see db/migrations).
const DefaultEmbedderModel = "text-embedding-004"

// EmbeddingDimensions is the vector width produced by the default embedder.
const EmbeddingDimensions = 768

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding a new
// secret field, update MarshalJSON as well.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"`             // "gemini" (default) or "ollama"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`         // e.g. "gemini-2.5-flash"
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"` // e.g. "text-embedding-004"
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`       // 0 for deterministic grading/generation
	OllamaHost    string  `mapstructure:"ollama_host" json:"ollama_host"`

	// Knowledge base
	DatasetPath string `mapstructure:"dataset_path" json:"dataset_path"` // CSV, single source of truth
	TopK        int    `mapstructure:"top_k" json:"top_k"`               // retrieved records per query

	// Vector store backend: "memory" (built at startup) or "postgres" (pgvector)
	Store string `mapstructure:"store" json:"store"`

	// PostgreSQL connection (used when Store == "postgres")
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server
	Addr       string  `mapstructure:"addr" json:"addr"`
	RateRPS    float64 `mapstructure:"rate_rps" json:"rate_rps"`     // tokens per second per client IP
	RateBurst  int     `mapstructure:"rate_burst" json:"rate_burst"` // bucket size per client IP
	TrustProxy bool    `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Tracing (OTLP HTTP export, disabled unless endpoint is set)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// TracingConfig configures OTLP trace export. Spans are shipped to a local
// collector/agent over OTLP HTTP; the agent handles auth and forwarding.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"` // e.g. "localhost:4318"; empty disables tracing
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".roadsafe")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* fields when set.
	if err := cfg.parseDatabaseURL(os.Getenv("DATABASE_URL")); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	// Deterministic output: grading must be strict, recommendations must not drift.
	v.SetDefault("temperature", 0.0)
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("dataset_path", "DATA SOURCE.csv")
	v.SetDefault("top_k", 4)
	v.SetDefault("store", StoreMemory)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "roadsafe")
	v.SetDefault("postgres_password", "roadsafe_dev_password")
	v.SetDefault("postgres_db_name", "roadsafe")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("addr", "127.0.0.1:5000")
	v.SetDefault("rate_rps", 1.0)
	v.SetDefault("rate_burst", 5)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "roadsafe")
	v.SetDefault("tracing.environment", "dev")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; Validate only
// checks that it is present when the gemini provider is selected.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime condition.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "ROADSAFE_PROVIDER")
	mustBind("model_name", "ROADSAFE_MODEL_NAME")
	mustBind("embedder_model", "ROADSAFE_EMBEDDER_MODEL")
	mustBind("ollama_host", "ROADSAFE_OLLAMA_HOST")
	mustBind("dataset_path", "ROADSAFE_DATASET")
	mustBind("store", "ROADSAFE_STORE")
	mustBind("addr", "ROADSAFE_ADDR")
	mustBind("trust_proxy", "ROADSAFE_TRUST_PROXY")
	mustBind("rate_rps", "ROADSAFE_RATE_RPS")
	mustBind("rate_burst", "ROADSAFE_RATE_BURST")
	mustBind("tracing.endpoint", "ROADSAFE_OTLP_ENDPOINT")
}

// parseDatabaseURL applies a postgres:// URL on top of the individual
// postgres_* fields. An empty rawURL is a no-op.
func (c *Config) parseDatabaseURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if host := u.Hostname(); host != "" {
		c.PostgresHost = host
	}
	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", port, err)
		}
		c.PostgresPort = p
	}
	if u.User != nil {
		if name := u.User.Username(); name != "" {
			c.PostgresUser = name
		}
		if pass, ok := u.User.Password(); ok {
			c.PostgresPassword = pass
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		c.PostgresDBName = db
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.PostgresSSLMode = mode
	}

	return nil
}

// PostgresURL returns the postgres:// connection URL (used by migrations).
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost, c.PostgresPort, c.PostgresDBName, c.PostgresSSLMode)
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "********"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debugging.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash" or "ollama/llama3.3".
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	if c.Provider == ProviderOllama {
		return "ollama/" + c.ModelName
	}
	return "googleai/" + c.ModelName
}
