// Package query translates natural-language questions into a semantic query
// plus a structured filter predicate over the metadata schema. Translation
// degrades rather than fails: clauses that do not type-check against the
// schema are dropped, and an unparseable model response falls back to an
// unfiltered semantic search, because over-filtering on a misparse is worse
// than under-filtering.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anycompany/docsearch/genai"
	"github.com/anycompany/docsearch/schema"
	"github.com/anycompany/docsearch/store"
)

// Translation is the result of mapping a question onto the schema vocabulary.
type Translation struct {
	Query     string
	Predicate store.Predicate
}

// TranslationError reports that the model call itself failed after retries.
// Unparseable-but-returned responses are not errors; they degrade.
type TranslationError struct {
	Err error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("query translation failed: %v", e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

type Translator struct {
	model  genai.Client
	policy genai.RetryPolicy
	strict bool
	logger *log.Logger
}

// NewTranslator builds a translator. With strict enabled, clauses referencing
// unknown fields or invalid operators fail the translation instead of being
// dropped.
func NewTranslator(model genai.Client, policy genai.RetryPolicy, strict bool, logger *log.Logger) *Translator {
	if logger == nil {
		logger = log.Default()
	}
	return &Translator{model: model, policy: policy, strict: strict, logger: logger}
}

func (t *Translator) Translate(ctx context.Context, question string, s *schema.Schema) (Translation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Translation{}, fmt.Errorf("question is empty")
	}

	response, err := t.generate(ctx, question, s)
	if err != nil {
		return Translation{}, &TranslationError{Err: err}
	}

	fallback := Translation{Query: question, Predicate: store.And()}

	payload, ok := genai.JSONObject(response)
	if !ok {
		t.logger.Printf("translation response unparseable, degrading to unfiltered search")
		return fallback, nil
	}

	var raw rawTranslation
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.logger.Printf("translation response unparseable, degrading to unfiltered search")
		return fallback, nil
	}

	predicate, err := t.buildPredicate(raw, s)
	if err != nil {
		return Translation{}, err
	}

	semantic := strings.TrimSpace(raw.SemanticQuery)
	if semantic == "" {
		semantic = question
	}

	return Translation{Query: semantic, Predicate: predicate}, nil
}

func (t *Translator) generate(ctx context.Context, question string, s *schema.Schema) (string, error) {
	messages := buildMessages(question, s)
	attempts := t.policy.Attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		response, err := t.policy.Generate(ctx, t.model, messages)
		if err == nil {
			return response, nil
		}
		lastErr = err
		if !genai.Transient(err) {
			return "", err
		}
		if attempt < attempts {
			t.logger.Printf("translation attempt %d/%d failed (%v), backing off", attempt, attempts, err)
			if waitErr := sleep(ctx, t.policy.Backoff(attempt)); waitErr != nil {
				return "", waitErr
			}
		}
	}
	return "", fmt.Errorf("model call failed after %d attempts: %w", attempts, lastErr)
}

func (t *Translator) buildPredicate(raw rawTranslation, s *schema.Schema) (store.Predicate, error) {
	join := store.JoinAnd
	if strings.EqualFold(raw.Join, "or") {
		join = store.JoinOr
	}

	clauses := make([]store.Clause, 0, len(raw.Filters))
	for _, filter := range raw.Filters {
		clause, err := checkClause(filter, s)
		if err != nil {
			if t.strict {
				return store.Predicate{}, err
			}
			t.logger.Printf("dropping filter clause on %q: %v", filter.Field, err)
			continue
		}
		clauses = append(clauses, clause)
	}

	return store.Predicate{Join: join, Clauses: clauses}, nil
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
