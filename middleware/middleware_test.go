package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/runtimectx"
)

type stubProvider struct {
	name  string
	err   error
	delay time.Duration
	items []provider.StreamItem
}

func (s *stubProvider) Name() string                                 { return s.name }
func (s *stubProvider) Models() []runtimectx.ModelInfo                { return nil }
func (s *stubProvider) Capabilities() runtimectx.ProviderCapabilities { return runtimectx.ProviderCapabilities{} }
func (s *stubProvider) ClearState()                                   {}

func (s *stubProvider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan provider.StreamItem, len(s.items))
	go func() {
		defer close(ch)
		for _, item := range s.items {
			if s.delay > 0 {
				select {
				case <-time.After(s.delay):
				case <-ctx.Done():
					ch <- provider.StreamItem{Err: ctx.Err()}
					return
				}
			}
			ch <- item
		}
	}()
	return ch, nil
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	upstreamErr := errors.New("upstream boom")
	stub := &stubProvider{name: "flaky", err: upstreamErr}
	cbm := NewCircuitBreakerMiddleware("flaky", 2, 50*time.Millisecond)
	wrapped := cbm.Wrap(stub)

	for i := 0; i < 3; i++ {
		_, err := wrapped.GenerateChatCompletion(context.Background(), runtimectx.NormalizedGenerateChatOptions{})
		assert.ErrorIs(t, err, upstreamErr)
	}

	_, err := wrapped.GenerateChatCompletion(context.Background(), runtimectx.NormalizedGenerateChatOptions{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_PassesThroughOnSuccess(t *testing.T) {
	stub := &stubProvider{name: "ok", items: []provider.StreamItem{{}}}
	cbm := NewCircuitBreakerMiddleware("ok", 5, time.Second)
	wrapped := cbm.Wrap(stub)

	ch, err := wrapped.GenerateChatCompletion(context.Background(), runtimectx.NormalizedGenerateChatOptions{})
	require.NoError(t, err)
	var count int
	for range ch {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestTimeout_CancelsSlowStream(t *testing.T) {
	stub := &stubProvider{
		name:  "slow",
		delay: 50 * time.Millisecond,
		items: []provider.StreamItem{{}, {}, {}},
	}
	tm := NewTimeoutMiddleware(10 * time.Millisecond)
	wrapped := tm.Wrap(stub)

	ch, err := wrapped.GenerateChatCompletion(context.Background(), runtimectx.NormalizedGenerateChatOptions{})
	require.NoError(t, err)

	var sawTimeoutErr bool
	for item := range ch {
		if item.Err != nil {
			sawTimeoutErr = true
			assert.ErrorIs(t, item.Err, context.DeadlineExceeded)
		}
	}
	assert.True(t, sawTimeoutErr, "expected a deadline-exceeded item before the channel closed")
}

func TestTimeout_PassesThroughFastStream(t *testing.T) {
	stub := &stubProvider{name: "fast", items: []provider.StreamItem{{}, {}}}
	tm := NewTimeoutMiddleware(time.Second)
	wrapped := tm.Wrap(stub)

	ch, err := wrapped.GenerateChatCompletion(context.Background(), runtimectx.NormalizedGenerateChatOptions{})
	require.NoError(t, err)

	var count int
	for item := range ch {
		assert.NoError(t, item.Err)
		count++
	}
	assert.Equal(t, 2, count)
}
