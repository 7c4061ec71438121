package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloo-solutions/bokai/internal/learning"
	"github.com/cloo-solutions/bokai/internal/service"
)

const envPrefix = "BOKAI"

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	TenantMaxConns int32  `envconfig:"TENANT_MAX_CONNS" default:"4"`

	// pgvector | memory
	VectorBackend string `envconfig:"VECTOR_BACKEND" default:"pgvector"`

	EmbeddingAPIKey     string        `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingBaseURL    string        `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingModel      string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int           `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBatchSize  int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"64"`
	EmbeddingTimeout    time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"5s"`
	EmbeddingCacheSize  int           `envconfig:"EMBEDDING_CACHE_SIZE" default:"1024"`
	EmbeddingCacheTTL   time.Duration `envconfig:"EMBEDDING_CACHE_TTL" default:"10m"`

	SearchTimeout       time.Duration `envconfig:"SEARCH_TIMEOUT" default:"5s"`
	SimilarityThreshold float64       `envconfig:"SIMILARITY_THRESHOLD" default:"0.7"`
	RetrievalLimit      int           `envconfig:"RETRIEVAL_LIMIT" default:"5"`
	ChunkMaxLength      int           `envconfig:"CHUNK_MAX_LENGTH" default:"500"`
	GroundingMinRatio   float64       `envconfig:"GROUNDING_MIN_RATIO" default:"0.2"`

	MaxTokens         int           `envconfig:"MAX_TOKENS" default:"500"`
	Temperature       float64       `envconfig:"TEMPERATURE" default:"0.3"`
	GenerationTimeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`
	GenerationRetries int           `envconfig:"GENERATION_RETRIES" default:"2"`
	HistoryTurns      int           `envconfig:"HISTORY_TURNS" default:"3"`

	LocalURL   string `envconfig:"LOCAL_URL" default:"http://localhost:11434"`
	LocalModel string `envconfig:"LOCAL_MODEL" default:"llama3.1:8b"`

	// openai | gemini
	RemoteProvider string `envconfig:"REMOTE_PROVIDER" default:"openai"`
	RemoteModel    string `envconfig:"REMOTE_MODEL" default:"gpt-3.5-turbo"`
	RemoteAPIKey   string `envconfig:"REMOTE_API_KEY"`
	RemoteBaseURL  string `envconfig:"REMOTE_BASE_URL"`

	CostInputPer1K  float64 `envconfig:"COST_INPUT_PER_1K" default:"0.002"`
	CostOutputPer1K float64 `envconfig:"COST_OUTPUT_PER_1K" default:"0.002"`
	CostCurrency    float64 `envconfig:"COST_CURRENCY_FACTOR" default:"4.5"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"bokai-knowledge"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	RedisURL        string        `envconfig:"REDIS_URL"`
	RateLimitMax    int64         `envconfig:"RATE_LIMIT_MAX" default:"1000"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`

	KafkaBrokers       []string `envconfig:"KAFKA_BROKERS"`
	KafkaInboundTopic  string   `envconfig:"KAFKA_INBOUND_TOPIC" default:"bokai.inbound"`
	KafkaOutboundTopic string   `envconfig:"KAFKA_OUTBOUND_TOPIC" default:"bokai.outbound"`
	KafkaGroup         string   `envconfig:"KAFKA_GROUP" default:"bokai-pipeline"`
	KafkaClientID      string   `envconfig:"KAFKA_CLIENT_ID" default:"bokd"`

	ConversationBatchSize     int           `envconfig:"CONVERSATION_BATCH_SIZE" default:"100"`
	ConversationFlushInterval time.Duration `envconfig:"CONVERSATION_FLUSH_INTERVAL" default:"30s"`
	IndexPollInterval         time.Duration `envconfig:"INDEX_POLL_INTERVAL" default:"10s"`

	SeedFile      string        `envconfig:"SEED_FILE"`
	SeedIndexNow  bool          `envconfig:"SEED_INDEX_NOW" default:"false"`
	HealthTimeout time.Duration `envconfig:"HEALTH_TIMEOUT" default:"2s"`
}

// PipelineSettings holds the service configuration derived from Config.
type PipelineSettings struct {
	Indexer           service.IndexerConfig
	Retriever         service.RetrieverConfig
	Generator         service.GeneratorConfig
	Cost              service.CostConfig
	GroundingMinRatio float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
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

func (c *Config) validate() error {
	switch c.VectorBackend {
	case "pgvector", "memory":
	default:
		return fmt.Errorf("invalid VECTOR_BACKEND %q: want pgvector or memory", c.VectorBackend)
	}
	switch c.RemoteProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid REMOTE_PROVIDER %q: want openai or gemini", c.RemoteProvider)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0,1], got %v", c.SimilarityThreshold)
	}
	if c.GroundingMinRatio < 0 || c.GroundingMinRatio > 1 {
		return fmt.Errorf("GROUNDING_MIN_RATIO must be within [0,1], got %v", c.GroundingMinRatio)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	return nil
}

func (c *Config) PipelineSettings() PipelineSettings {
	chunk := service.DefaultChunkConfig()
	if c.ChunkMaxLength > 0 {
		chunk.MaxChars = c.ChunkMaxLength
	}
	return PipelineSettings{
		Indexer: service.IndexerConfig{Chunk: chunk, Dimensions: c.EmbeddingDimensions},
		Retriever: service.RetrieverConfig{
			Threshold:     c.SimilarityThreshold,
			Limit:         c.RetrievalLimit,
			SearchTimeout: c.SearchTimeout,
		},
		Generator: service.GeneratorConfig{
			MaxTokens:    c.MaxTokens,
			Temperature:  c.Temperature,
			HistoryTurns: c.HistoryTurns,
			Timeout:      c.GenerationTimeout,
		},
		Cost: service.CostConfig{
			InputPer1K:     c.CostInputPer1K,
			OutputPer1K:    c.CostOutputPer1K,
			CurrencyFactor: c.CostCurrency,
		},
		GroundingMinRatio: c.GroundingMinRatio,
	}
}

// ConversationLogger returns the batching settings of the conversation sink.
func (c *Config) ConversationLogger() learning.LoggerConfig {
	cfg := learning.DefaultLoggerConfig()
	if c.ConversationBatchSize > 0 {
		cfg.BatchSize = c.ConversationBatchSize
	}
	if c.ConversationFlushInterval > 0 {
		cfg.FlushInterval = c.ConversationFlushInterval
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasKafka() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) HasEmbeddings() bool {
	return c.EmbeddingAPIKey != ""
}

// RemoteKey returns the remote backend API key, falling back to the
// embedding key when both use the same OpenAI account.
func (c *Config) RemoteKey() string {
	if c.RemoteAPIKey != "" {
		return c.RemoteAPIKey
	}
	if c.RemoteProvider == "openai" {
		return c.EmbeddingAPIKey
	}
	return ""
}

func (c *Config) HasRemote() bool {
	return c.RemoteKey() != ""
}
