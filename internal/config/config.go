package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Embedding / chat collaborators (Ollama-compatible endpoint).
	LLMBaseURL     string `mapstructure:"LLM_BASE_URL"`
	EmbeddingModel string `mapstructure:"EMBEDDING_MODEL"`
	EmbeddingDim   int    `mapstructure:"EMBEDDING_DIM"`
	ChatModel      string `mapstructure:"CHAT_MODEL"`

	// External text-extraction service.
	ExtractorURL     string        `mapstructure:"EXTRACTOR_URL"`
	ExtractorTimeout time.Duration `mapstructure:"EXTRACTOR_TIMEOUT"`

	// Batch processing.
	BatchWorkers  int     `mapstructure:"BATCH_WORKERS"`
	EmbedRPS      float64 `mapstructure:"EMBED_RPS"`
	EmbedBurst    int     `mapstructure:"EMBED_BURST"`
	ChunkSize     int     `mapstructure:"CHUNK_SIZE"`
	ChunkOverlap  int     `mapstructure:"CHUNK_OVERLAP"`
	RetryAttempts int     `mapstructure:"RETRY_ATTEMPTS"`

	// Context assembly.
	ContextTopK        int `mapstructure:"CONTEXT_TOP_K"`
	ContextTokenBudget int `mapstructure:"CONTEXT_TOKEN_BUDGET"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LLM_BASE_URL", "http://localhost:11434")
	v.SetDefault("EMBEDDING_MODEL", "nomic-embed-text:latest")
	v.SetDefault("EMBEDDING_DIM", 768)
	v.SetDefault("CHAT_MODEL", "mistral")
	v.SetDefault("EXTRACTOR_TIMEOUT", "30s")
	v.SetDefault("BATCH_WORKERS", 4)
	v.SetDefault("EMBED_RPS", 5)
	v.SetDefault("EMBED_BURST", 10)
	v.SetDefault("CHUNK_SIZE", 1000)
	v.SetDefault("CHUNK_OVERLAP", 200)
	v.SetDefault("RETRY_ATTEMPTS", 3)
	v.SetDefault("CONTEXT_TOP_K", 5)
	v.SetDefault("CONTEXT_TOKEN_BUDGET", 4000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("LLM_BASE_URL")
	v.BindEnv("EMBEDDING_MODEL")
	v.BindEnv("EMBEDDING_DIM")
	v.BindEnv("CHAT_MODEL")
	v.BindEnv("EXTRACTOR_URL")
	v.BindEnv("EXTRACTOR_TIMEOUT")
	v.BindEnv("BATCH_WORKERS")
	v.BindEnv("EMBED_RPS")
	v.BindEnv("EMBED_BURST")
	v.BindEnv("CHUNK_SIZE")
	v.BindEnv("CHUNK_OVERLAP")
	v.BindEnv("RETRY_ATTEMPTS")
	v.BindEnv("CONTEXT_TOP_K")
	v.BindEnv("CONTEXT_TOKEN_BUDGET")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.BatchWorkers <= 0 {
		return fmt.Errorf("BATCH_WORKERS must be positive, got %d", c.BatchWorkers)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("RETRY_ATTEMPTS cannot be negative, got %d", c.RetryAttempts)
	}
	return nil
}
