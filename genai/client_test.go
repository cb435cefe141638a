package genai

import (
	"testing"

	"github.com/anycompany/docsearch/config"
)

func TestNewClientOllama(t *testing.T) {
	cfg := config.Config{
		Model:      config.ModelConfig{Provider: config.ProviderOllama, Model: "llama3.1:8b"},
		OllamaHost: "http://localhost:11434",
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("expected client, got error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

func TestNewClientOpenAIRequiresAPIKey(t *testing.T) {
	cfg := config.Config{
		Model: config.ModelConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini"},
	}

	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	cfg := config.Config{
		Model: config.ModelConfig{Provider: "bedrock", Model: "claude"},
	}

	if _, err := NewClient(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
