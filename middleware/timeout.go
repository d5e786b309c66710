package middleware

import (
	"context"
	"time"

	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/runtimectx"
)

// TimeoutMiddleware bounds a call's wall-clock time, grounded on the
// teacher's TimeoutMiddleware (middleware/timeout.go), generalized from
// wrapping Complete/Stream to wrapping the single GenerateChatCompletion
// entry point and its StreamItem channel.
type TimeoutMiddleware struct {
	timeout time.Duration
}

// NewTimeoutMiddleware creates a timeout middleware bounding each call to
// the given duration.
func NewTimeoutMiddleware(timeout time.Duration) *TimeoutMiddleware {
	return &TimeoutMiddleware{timeout: timeout}
}

func (m *TimeoutMiddleware) Wrap(next provider.Provider) provider.Provider {
	return &timeoutProvider{Provider: next, timeout: m.timeout}
}

type timeoutProvider struct {
	provider.Provider
	timeout time.Duration
}

func (p *timeoutProvider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)

	upstream, err := p.Provider.GenerateChatCompletion(ctx, opts)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan provider.StreamItem)
	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				out <- provider.StreamItem{Err: ctx.Err()}
				return
			case item, ok := <-upstream:
				if !ok {
					return
				}
				select {
				case out <- item:
				case <-ctx.Done():
					out <- provider.StreamItem{Err: ctx.Err()}
					return
				}
				if item.Err != nil {
					return
				}
			}
		}
	}()

	return out, nil
}
