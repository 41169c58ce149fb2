package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "OUTREACH"

const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
	StoreBackendS3       = "s3"

	EmbedderOpenAI = "openai"
	EmbedderHash   = "hash"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	APIToken    string `envconfig:"API_TOKEN"`

	OpenAIAPIKey        string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string  `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string  `envconfig:"CHAT_MODEL" default:"gpt-4o"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	Embedder            string  `envconfig:"EMBEDDER" default:"openai"`
	Temperature         float32 `envconfig:"TEMPERATURE" default:"0.6"`
	MaxTokens           int     `envconfig:"MAX_TOKENS" default:"4096"`

	MaxTurns      int           `envconfig:"MAX_TURNS" default:"5"`
	ToolTimeout   time.Duration `envconfig:"TOOL_TIMEOUT" default:"20s"`
	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchMaxChars int           `envconfig:"FETCH_MAX_CHARS" default:"4000"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	DataDir      string `envconfig:"DATA_DIR" default:"./data/knowledge"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DBMaxConns   int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"outreach-knowledge"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3IndexKey  string `envconfig:"S3_INDEX_KEY" default:"knowledge/index.json"`

	RedisURL string        `envconfig:"REDIS_URL"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"6h"`

	SearchProvider string `envconfig:"SEARCH_PROVIDER" default:"brave"`
	SearchAPIKey   string `envconfig:"SEARCH_API_KEY"`

	OutreachDir    string        `envconfig:"OUTREACH_DIR" default:"./outputs"`
	ImportInterval time.Duration `envconfig:"IMPORT_INTERVAL" default:"1m"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks enumerated settings and backend prerequisites.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendFile:
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("invalid config: %s_DATABASE_URL is required for the postgres store backend", envPrefix)
		}
	case StoreBackendS3:
		if !c.HasS3() {
			return fmt.Errorf("invalid config: %s_S3_ENDPOINT, %s_S3_ACCESS_KEY_ID and %s_S3_SECRET_ACCESS_KEY are required for the s3 store backend",
				envPrefix, envPrefix, envPrefix)
		}
	default:
		return fmt.Errorf("invalid config: unknown store backend %q", c.StoreBackend)
	}

	switch c.Embedder {
	case EmbedderOpenAI, EmbedderHash:
	default:
		return fmt.Errorf("invalid config: unknown embedder %q", c.Embedder)
	}

	if c.MaxTurns < 1 {
		return fmt.Errorf("invalid config: %s_MAX_TURNS must be at least 1", envPrefix)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasSearchAPI() bool {
	return c.SearchAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
