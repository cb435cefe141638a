// Package genai abstracts the generative model used for structured extraction
// and query translation. Callers must treat the model as an untrusted
// dependency: calls can fail transiently and responses can be malformed.
package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anycompany/docsearch/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.Model.Provider,
		Model:         cfg.Model.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", opts.Provider)
	}
}

// RetryPolicy bounds retries of model calls. MaxRetries counts retries after
// the first attempt, so MaxRetries=2 allows three attempts in total.
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	CallTimeout time.Duration
}

func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{
		MaxRetries:  cfg.MaxRetries,
		BackoffBase: cfg.BackoffBase,
		CallTimeout: cfg.CallTimeout,
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = 500 * time.Millisecond
	}
	if p.CallTimeout <= 0 {
		p.CallTimeout = 60 * time.Second
	}
	return p
}

// Attempts returns the total number of calls the policy allows.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return p.MaxRetries + 1
}

// Backoff returns the exponential delay before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Generate runs one model call under the policy's per-call timeout.
func (p RetryPolicy) Generate(ctx context.Context, client Client, messages []Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.CallTimeout)
	defer cancel()
	return client.Generate(callCtx, messages)
}

// Timeout reports whether err represents a model call timeout.
func Timeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ProviderError carries the HTTP status of a failed provider call. A zero
// status means the request never reached the provider (transport failure).
type ProviderError struct {
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("model provider unreachable: %v", e.Err)
	}
	return fmt.Sprintf("model provider returned status %d: %v", e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: rate limiting,
// server-side errors, or transport failures.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// Transient reports whether err is worth retrying with backoff: timeouts,
// rate limiting, and server-side failures. Malformed requests and auth errors
// are not transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if Timeout(err) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return false
}
