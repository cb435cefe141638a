package genai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardedClient wraps a Client with a client-side rate limiter and a circuit
// breaker so a misbehaving provider cannot stall the whole pipeline.
type GuardedClient struct {
	inner   Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

type GuardOptions struct {
	// RequestsPerMinute caps outbound call rate; zero disables limiting.
	RequestsPerMinute int
	Burst             int
}

func NewGuardedClient(inner Client, opts GuardOptions) *GuardedClient {
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), burst)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "generative-model",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &GuardedClient{inner: inner, limiter: limiter, breaker: breaker}
}

func (c *GuardedClient) Generate(ctx context.Context, messages []Message) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("model rate limiter: %w", err)
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.Generate(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &ProviderError{StatusCode: 429, Err: err}
		}
		return "", err
	}

	return result.(string), nil
}

var _ Client = (*GuardedClient)(nil)
