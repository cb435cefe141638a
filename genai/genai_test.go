package genai

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJSONObjectWholeResponse(t *testing.T) {
	payload, ok := JSONObject(`  {"company": "AnyCompany"}  `)
	if !ok {
		t.Fatal("expected valid JSON to be accepted")
	}
	if payload != `{"company": "AnyCompany"}` {
		t.Fatalf("unexpected payload: %q", payload)
	}
}

func TestJSONObjectRecoversFromProse(t *testing.T) {
	response := "Sure! Here is the result:\n```json\n{\"company\": \"AnyCompany\"}\n```\nAnything else?"
	payload, ok := JSONObject(response)
	if !ok {
		t.Fatal("expected JSON recovery from fenced response")
	}
	if payload != `{"company": "AnyCompany"}` {
		t.Fatalf("unexpected payload: %q", payload)
	}
}

func TestJSONObjectRejectsNonJSON(t *testing.T) {
	for _, response := range []string{"", "no braces here", "{broken", "{not: valid}"} {
		if _, ok := JSONObject(response); ok {
			t.Fatalf("expected rejection of %q", response)
		}
	}
}

func TestRetryPolicyAttempts(t *testing.T) {
	if got := (RetryPolicy{MaxRetries: 2}).Attempts(); got != 3 {
		t.Fatalf("expected 3 attempts for MaxRetries=2, got %d", got)
	}
	if got := (RetryPolicy{MaxRetries: 0}).Attempts(); got != 1 {
		t.Fatalf("expected 1 attempt for MaxRetries=0, got %d", got)
	}
	if got := (RetryPolicy{MaxRetries: -1}).Attempts(); got != 1 {
		t.Fatalf("expected 1 attempt for negative MaxRetries, got %d", got)
	}
}

func TestRetryPolicyBackoffDoubles(t *testing.T) {
	p := RetryPolicy{BackoffBase: 100 * time.Millisecond}
	if p.Backoff(1) != 100*time.Millisecond {
		t.Fatalf("unexpected first backoff: %v", p.Backoff(1))
	}
	if p.Backoff(2) != 200*time.Millisecond {
		t.Fatalf("unexpected second backoff: %v", p.Backoff(2))
	}
	if p.Backoff(3) != 400*time.Millisecond {
		t.Fatalf("unexpected third backoff: %v", p.Backoff(3))
	}
}

type slowClient struct{}

func (slowClient) Generate(ctx context.Context, messages []Message) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(time.Second):
		return "too late", nil
	}
}

func TestRetryPolicyGenerateAppliesCallTimeout(t *testing.T) {
	p := RetryPolicy{CallTimeout: 10 * time.Millisecond}
	_, err := p.Generate(context.Background(), slowClient{}, nil)
	if !Timeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestTransientClassification(t *testing.T) {
	transient := []error{
		context.DeadlineExceeded,
		&ProviderError{StatusCode: 429, Err: errors.New("rate limited")},
		&ProviderError{StatusCode: 500, Err: errors.New("server error")},
		&ProviderError{StatusCode: 0, Err: errors.New("connection refused")},
	}
	for _, err := range transient {
		if !Transient(err) {
			t.Fatalf("expected %v to be transient", err)
		}
	}

	permanent := []error{
		nil,
		context.Canceled,
		&ProviderError{StatusCode: 400, Err: errors.New("bad request")},
		&ProviderError{StatusCode: 401, Err: errors.New("unauthorized")},
		errors.New("opaque failure"),
	}
	for _, err := range permanent {
		if Transient(err) {
			t.Fatalf("expected %v not to be transient", err)
		}
	}
}

type failingClient struct {
	err   error
	calls int
}

func (c *failingClient) Generate(ctx context.Context, messages []Message) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "ok", nil
}

func TestGuardedClientTripsBreaker(t *testing.T) {
	inner := &failingClient{err: errors.New("provider down")}
	guarded := NewGuardedClient(inner, GuardOptions{})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := guarded.Generate(ctx, nil); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := guarded.Generate(ctx, nil)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 429 {
		t.Fatalf("expected rate-limit-style error from open breaker, got %v", err)
	}
	if inner.calls != 5 {
		t.Fatalf("open breaker must not call the provider, got %d calls", inner.calls)
	}
}

func TestGuardedClientPassesThrough(t *testing.T) {
	inner := &failingClient{}
	guarded := NewGuardedClient(inner, GuardOptions{RequestsPerMinute: 6000, Burst: 10})

	got, err := guarded.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected response: %q", got)
	}
}
