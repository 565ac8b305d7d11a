// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Supported backend names.
var (
	embeddingProviders = []string{"fastembed", "ollama", "hashing"}
	vectorBackends     = []string{"qdrant", "pgvector", "memory"}
)

// minProductionSecretLen is the shortest JWT secret accepted outside development.
const minProductionSecretLen = 32

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Cache (Redis). Empty runs revocation, rate limiting and ingest in process.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// Identity tokens
	JWTSecret               string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL                  time.Duration `env:"JWT_TTL" envDefault:"1h"`
	RevocationPruneInterval time.Duration `env:"REVOCATION_PRUNE_INTERVAL" envDefault:"1m"`

	// Embedding model
	EmbeddingProvider    string        `env:"EMBEDDING_PROVIDER" envDefault:"fastembed"`
	EmbeddingModel       string        `env:"EMBEDDING_MODEL" envDefault:"BAAI/bge-base-en-v1.5"`
	EmbeddingDimension   int           `env:"EMBEDDING_DIMENSION" envDefault:"768"`
	EmbeddingCacheDir    string        `env:"EMBEDDING_CACHE_DIR" envDefault:"local_cache"`
	EmbeddingInitTimeout time.Duration `env:"EMBEDDING_INIT_TIMEOUT" envDefault:"2m"`
	EmbeddingTimeout     time.Duration `env:"EMBEDDING_TIMEOUT" envDefault:"10s"`
	OllamaURL            string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`

	// Vector index
	VectorBackend     string        `env:"VECTOR_BACKEND" envDefault:"qdrant"`
	VectorCollection  string        `env:"VECTOR_COLLECTION" envDefault:"images"`
	QdrantHost        string        `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort        int           `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantAPIKey      string        `env:"QDRANT_API_KEY" envDefault:""`
	QdrantUseTLS      bool          `env:"QDRANT_USE_TLS" envDefault:"false"`
	VectorPersistPath string        `env:"VECTOR_PERSIST_PATH" envDefault:""`
	IndexQueryTimeout time.Duration `env:"INDEX_QUERY_TIMEOUT" envDefault:"5s"`
	SearchTopK        int           `env:"SEARCH_TOP_K" envDefault:"10"`

	// Uploads and caption ingest
	UploadDir        string `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxUploadFiles   int    `env:"MAX_UPLOAD_FILES" envDefault:"10"`
	MaxUploadSize    int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
	InternalAPIToken string `env:"INTERNAL_API_TOKEN" envDefault:""`
	IngestWorkers    int    `env:"INGEST_WORKERS" envDefault:"4"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Per-user rate limiting
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes for JSON endpoints (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// HasRedis reports whether a Redis URL is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks cross-field rules env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.EmbeddingProvider, embeddingProviders) {
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER %q must be one of %s", c.EmbeddingProvider, strings.Join(embeddingProviders, ", ")))
	}
	if !oneOf(c.VectorBackend, vectorBackends) {
		errs = append(errs, fmt.Errorf("VECTOR_BACKEND %q must be one of %s", c.VectorBackend, strings.Join(vectorBackends, ", ")))
	}
	if c.EmbeddingDimension <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSION must be positive"))
	}
	if c.SearchTopK <= 0 {
		errs = append(errs, errors.New("SEARCH_TOP_K must be positive"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLen))
	}
	if c.MaxUploadFiles <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_FILES must be positive"))
	}
	if c.IngestWorkers <= 0 {
		errs = append(errs, errors.New("INGEST_WORKERS must be positive"))
	}

	return errors.Join(errs...)
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
