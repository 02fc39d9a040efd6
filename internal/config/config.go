package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"GD_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"GD_DB_MAX_CONNS" default:"8"`

	HTTPHost            string `envconfig:"HTTP_HOST" default:"0.0.0.0"`
	HTTPPort            int    `envconfig:"HTTP_PORT" default:"8090"`
	CORSAllowedOrigins  string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// EmbeddingCustomEndpoint, when set, is tried first for every embedding
	// request. It must accept {"inputs": [...]} and return [[float,...],...].
	EmbeddingCustomEndpoint string `envconfig:"EMBEDDING_CUSTOM_ENDPOINT" default:""`
	// EmbeddingFallbackEndpoint is the local all-MiniLM-L6-v2 service.
	EmbeddingFallbackEndpoint string `envconfig:"EMBEDDING_FALLBACK_ENDPOINT" default:"http://127.0.0.1:8844/embeddings"`
	EmbeddingModelName        string `envconfig:"EMBEDDING_MODEL_NAME" default:"sentence-transformers/all-MiniLM-L6-v2"`
	EmbeddingModelVersion     string `envconfig:"EMBEDDING_MODEL_VERSION" default:"1"`
	EmbeddingDimensions       int    `envconfig:"EMBEDDING_DIMENSIONS" default:"384"`
	EmbeddingMaxRetries       int    `envconfig:"EMBEDDING_MAX_RETRIES" default:"3"`
	EmbeddingRetryWaitSeconds int    `envconfig:"EMBEDDING_RETRY_WAIT_SECONDS" default:"2"`

	HistoricalPoolSize  int `envconfig:"GD_HISTORICAL_POOL_SIZE" default:"1000"`
	EmbeddingWorkerPool int `envconfig:"GD_EMBEDDING_WORKER_POOL" default:"4"`
	SimilarityTopK      int `envconfig:"GD_SIMILARITY_TOP_K" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("GD_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("GD_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("GD_DB_MIN_CONNS (%d) cannot exceed GD_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if strings.TrimSpace(c.EmbeddingFallbackEndpoint) == "" {
		return fmt.Errorf("EMBEDDING_FALLBACK_ENDPOINT is required")
	}
	if c.EmbeddingDimensions < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be >= 1")
	}
	if c.EmbeddingMaxRetries < 1 {
		return fmt.Errorf("EMBEDDING_MAX_RETRIES must be >= 1")
	}
	if c.HistoricalPoolSize < 1 {
		return fmt.Errorf("GD_HISTORICAL_POOL_SIZE must be >= 1")
	}
	if c.EmbeddingWorkerPool < 1 {
		return fmt.Errorf("GD_EMBEDDING_WORKER_POOL must be >= 1")
	}
	if c.SimilarityTopK < 1 {
		return fmt.Errorf("GD_SIMILARITY_TOP_K must be >= 1")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
