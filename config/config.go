// Package config loads deployment-time configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreMemory   = "memory"
	StorePostgres = "postgres"

	ChunkingNone  = "none"
	ChunkingFixed = "fixed"
	ChunkingAuto  = "auto"

	// ScopeDocument attaches one metadata record per document; ScopeChunk
	// extracts metadata for each chunk individually.
	ScopeDocument = "document"
	ScopeChunk    = "chunk"
)

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type ModelConfig struct {
	Provider          string
	Model             string
	RequestsPerMinute int
}

type ChunkingConfig struct {
	Strategy        string
	ChunkTokens     int
	OverlapFraction float64
}

type RetryConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
	CallTimeout time.Duration
}

type SearchConfig struct {
	OverfetchFactor int
	GroupCap        int
	GroupField      string
}

type Config struct {
	PostgresDSN string
	StoreDriver string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string

	SchemaPath string
	DataDir    string

	MetadataScope string
	StrictFilters bool

	Embeddings EmbeddingsConfig
	Model      ModelConfig
	Chunking   ChunkingConfig
	Retry      RetryConfig
	Search     SearchConfig
}

func Load() Config {
	return Config{
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/docsearch?sslmode=disable"),
		StoreDriver: getEnv("STORE_DRIVER", StorePostgres),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),

		SchemaPath: getEnv("SCHEMA_PATH", "schema.yaml"),
		DataDir:    getEnv("DATA_DIR", "./data"),

		MetadataScope: getEnv("METADATA_SCOPE", ScopeDocument),
		StrictFilters: getEnvBool("STRICT_FILTERS", false),

		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		Model: ModelConfig{
			Provider:          getEnv("MODEL_PROVIDER", ProviderOpenAI),
			Model:             getEnv("MODEL_NAME", "gpt-4o-mini"),
			RequestsPerMinute: getEnvInt("MODEL_REQUESTS_PER_MINUTE", 60),
		},
		Chunking: ChunkingConfig{
			Strategy:        getEnv("CHUNKING_STRATEGY", ChunkingFixed),
			ChunkTokens:     getEnvInt("CHUNK_TOKENS", 2000),
			OverlapFraction: getEnvFloat("CHUNK_OVERLAP_FRACTION", 0.10),
		},
		Retry: RetryConfig{
			MaxRetries:  getEnvInt("MODEL_MAX_RETRIES", 2),
			BackoffBase: getEnvDuration("MODEL_BACKOFF_BASE", 500*time.Millisecond),
			CallTimeout: getEnvDuration("MODEL_CALL_TIMEOUT", 60*time.Second),
		},
		Search: SearchConfig{
			OverfetchFactor: getEnvInt("SEARCH_OVERFETCH_FACTOR", 3),
			GroupCap:        getEnvInt("SEARCH_GROUP_CAP", 5),
			GroupField:      getEnv("SEARCH_GROUP_FIELD", "company"),
		},
	}
}

// Validate rejects option combinations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}
	switch c.StoreDriver {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown store driver: %s", c.StoreDriver)
	}
	switch c.Chunking.Strategy {
	case ChunkingNone, ChunkingFixed, ChunkingAuto:
	default:
		return fmt.Errorf("unknown chunking strategy: %s", c.Chunking.Strategy)
	}
	switch c.MetadataScope {
	case ScopeDocument, ScopeChunk:
	default:
		return fmt.Errorf("unknown metadata scope: %s", c.MetadataScope)
	}
	if c.Search.OverfetchFactor <= 0 {
		return fmt.Errorf("overfetch factor must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
