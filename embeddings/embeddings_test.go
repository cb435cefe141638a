package embeddings

import (
	"testing"

	"github.com/anycompany/docsearch/config"
)

func TestNewEmbedderOllama(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingsConfig{
			Provider:  config.ProviderOllama,
			Model:     "nomic-embed-text",
			Dimension: 768,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("expected embedder, got error: %v", err)
	}
	if embedder.Dimension() != 768 {
		t.Fatalf("unexpected dimension: %d", embedder.Dimension())
	}
}

func TestNewEmbedderOpenAIRequiresAPIKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingsConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewEmbedderRejectsInvalidOptions(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingsConfig{Provider: config.ProviderOllama, Model: "m", Dimension: 0},
	}
	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for zero dimension")
	}

	cfg.Embeddings.Dimension = 3
	cfg.Embeddings.Provider = "bedrock"
	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
