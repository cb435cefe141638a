// Package extract turns document text into a raw metadata record by prompting
// a generative model with the schema's field vocabulary. The model's output is
// untrusted: unknown fields are dropped and unparseable responses are reported
// as parse errors after a bounded number of attempts.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anycompany/docsearch/genai"
	"github.com/anycompany/docsearch/schema"
)

// ParseError reports a model response that could not be parsed into a
// field-value mapping.
type ParseError struct {
	Response string
}

func (e *ParseError) Error() string {
	snippet := e.Response
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	return fmt.Sprintf("extraction response is not a field mapping: %q", snippet)
}

// TimeoutError reports that every allowed attempt hit the per-call timeout.
type TimeoutError struct {
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extraction timed out after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

type Extractor struct {
	model  genai.Client
	policy genai.RetryPolicy
	logger *log.Logger
}

func New(model genai.Client, policy genai.RetryPolicy, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.Default()
	}
	return &Extractor{model: model, policy: policy, logger: logger}
}

// Extract prompts the model with the schema and the target text and returns
// the raw field mapping. Transient model failures are retried with exponential
// backoff; malformed responses are re-asked up to the same bound.
func (x *Extractor) Extract(ctx context.Context, text string, s *schema.Schema) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("extraction text is empty")
	}
	if s == nil || len(s.Fields) == 0 {
		return nil, fmt.Errorf("extraction schema is empty")
	}

	messages := []genai.Message{
		{Role: genai.RoleSystem, Content: buildPrompt(s)},
		{Role: genai.RoleUser, Content: text},
	}

	attempts := x.policy.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := x.policy.Generate(ctx, x.model, messages)
		if err != nil {
			lastErr = err
			if !genai.Transient(err) {
				return nil, fmt.Errorf("extraction model call: %w", err)
			}
			if attempt < attempts {
				x.logger.Printf("extraction attempt %d/%d failed (%v), backing off", attempt, attempts, err)
				if waitErr := sleep(ctx, x.policy.Backoff(attempt)); waitErr != nil {
					return nil, waitErr
				}
			}
			continue
		}

		fields, ok := decodeObject(response)
		if !ok {
			lastErr = &ParseError{Response: response}
			x.logger.Printf("extraction attempt %d/%d returned unparseable output", attempt, attempts)
			continue
		}

		return pruneToSchema(fields, s), nil
	}

	if genai.Timeout(lastErr) {
		return nil, &TimeoutError{Attempts: attempts, Err: lastErr}
	}
	var parseErr *ParseError
	if errors.As(lastErr, &parseErr) {
		return nil, parseErr
	}
	return nil, fmt.Errorf("extraction failed after %d attempts: %w", attempts, lastErr)
}

// pruneToSchema drops fields the schema does not define; the schema is
// authoritative and extra model output is not an error. Derived fields are
// pruned too since they are computed, never extracted.
func pruneToSchema(fields map[string]any, s *schema.Schema) map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		if field.Derived() {
			continue
		}
		if value, ok := fields[field.Name]; ok {
			out[field.Name] = value
		}
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
