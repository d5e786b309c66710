// Package middleware adapts the teacher's Provider-wrapping middleware
// (circuit breaker, timeout) from the OpenAI-shaped Request/Event pair to
// the core's NormalizedGenerateChatOptions / StreamItem contract.
package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/runtimectx"
)

// ErrCircuitOpen is returned in place of the upstream error once the
// breaker has opened, so callers never see raw gobreaker sentinels.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerMiddleware trips the active-provider dispatch open after
// repeated consecutive failures, grounded on the teacher's
// CircuitBreakerMiddleware (middleware/circuitbreaker.go).
type CircuitBreakerMiddleware struct {
	cb *gobreaker.CircuitBreaker
}

// NewCircuitBreakerMiddleware creates a circuit breaker that opens once
// consecutive failures exceed maxFailures (on failure maxFailures+1) and
// stays open for timeout.
func NewCircuitBreakerMiddleware(name string, maxFailures uint32, timeout time.Duration) *CircuitBreakerMiddleware {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > maxFailures
		},
	})
	return &CircuitBreakerMiddleware{cb: cb}
}

func (m *CircuitBreakerMiddleware) Wrap(next provider.Provider) provider.Provider {
	return &circuitBreakerProvider{Provider: next, cb: m.cb}
}

// State returns the current circuit breaker state.
func (m *CircuitBreakerMiddleware) State() gobreaker.State {
	return m.cb.State()
}

type circuitBreakerProvider struct {
	provider.Provider
	cb *gobreaker.CircuitBreaker
}

func (p *circuitBreakerProvider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.Provider.GenerateChatCompletion(ctx, opts)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result.(<-chan provider.StreamItem), nil
}
