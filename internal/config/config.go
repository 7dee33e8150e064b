package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable. Unprefixed names are
// accepted as a fallback.
const Prefix = "PETRORAG"

type Config struct {
	Host  string `envconfig:"HOST" default:"127.0.0.1"`
	Port  string `envconfig:"PORT" default:"5000"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel  string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	LLMModel        string        `envconfig:"LLM_MODEL" default:"gpt-4o"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`
	SystemPrompt    string        `envconfig:"SYSTEM_PROMPT" default:"You are a helpful assistant specializing in petroleum engineering."`

	DataDir            string `envconfig:"DATA_DIR" default:"data"`
	EmbeddingsFile     string `envconfig:"EMBEDDINGS_FILE" default:"data/embeddings.bin"`
	ChunkSize          int    `envconfig:"CHUNK_SIZE" default:"10"`
	MaxContextSections int    `envconfig:"MAX_CONTEXT_SECTIONS" default:"5"`

	EmbedConcurrency int           `envconfig:"EMBED_CONCURRENCY" default:"4"`
	EmbedMaxAttempts int           `envconfig:"EMBED_MAX_ATTEMPTS" default:"3"`
	EmbedRetryDelay  time.Duration `envconfig:"EMBED_RETRY_DELAY" default:"1s"`

	UseMemory       bool          `envconfig:"USE_MEMORY" default:"false"`
	MaxHistory      int           `envconfig:"MAX_HISTORY" default:"10"`
	MemoryMaxTokens int           `envconfig:"MEMORY_MAX_TOKENS" default:"1000"`
	MaxSessions     int           `envconfig:"MAX_SESSIONS" default:"1000"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"30m"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"petrorag-embeddings"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Key       string `envconfig:"S3_KEY" default:"embeddings.bin"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Zero disables periodic corpus reloads.
	ReloadInterval time.Duration `envconfig:"RELOAD_INTERVAL" default:"0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be at least 1, got %d", c.ChunkSize))
	}
	if c.MaxContextSections < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_SECTIONS must be at least 1, got %d", c.MaxContextSections))
	}
	if c.EmbedConcurrency < 1 {
		errs = append(errs, fmt.Errorf("EMBED_CONCURRENCY must be at least 1, got %d", c.EmbedConcurrency))
	}
	if c.MaxHistory < 1 {
		errs = append(errs, fmt.Errorf("MAX_HISTORY must be at least 1, got %d", c.MaxHistory))
	}
	if c.ReloadInterval < 0 {
		errs = append(errs, errors.New("RELOAD_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
