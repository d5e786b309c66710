package manager

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/runtimectx"
)

// loggingDecorator wraps a Provider with structured logging and session
// token accounting (§3 "Provider adapter instance" lifecycle). The circuit
// breaker that RegisterProvider layers over it keeps its own failure counts.
//
// Grounded on the teacher's middleware.Wrap pattern (middleware/timeout.go,
// middleware/circuitbreaker.go), generalized from wrapping a Request/Event
// pair to wrapping the IContent stream and recording usage metadata as it
// passes through.
type loggingDecorator struct {
	next   provider.Provider
	logger zerolog.Logger
	tokens *sessionTokens
}

func newLoggingDecorator(next provider.Provider, logger zerolog.Logger, tokens *sessionTokens) *loggingDecorator {
	return &loggingDecorator{next: next, logger: logger.With().Str("provider", next.Name()).Logger(), tokens: tokens}
}

func (d *loggingDecorator) Name() string                                  { return d.next.Name() }
func (d *loggingDecorator) Models() []runtimectx.ModelInfo                { return d.next.Models() }
func (d *loggingDecorator) Capabilities() runtimectx.ProviderCapabilities { return d.next.Capabilities() }
func (d *loggingDecorator) ClearState()                                   { d.next.ClearState() }

func (d *loggingDecorator) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	log := d.logger.With().Str("runtime_id", opts.Runtime.RuntimeID).Str("model", opts.Resolved.Model).Logger()
	log.Debug().Msg("generateChatCompletion start")

	upstream, err := d.next.GenerateChatCompletion(ctx, opts)
	if err != nil {
		log.Error().Err(err).Msg("generateChatCompletion failed before streaming")
		return nil, err
	}

	out := make(chan provider.StreamItem)
	go func() {
		defer close(out)
		for item := range upstream {
			if item.Content != nil && item.Content.Metadata != nil && item.Content.Metadata.Usage != nil {
				d.tokens.accumulate(d.next.Name(), TokenUsage{
					Input:  item.Content.Metadata.Usage.PromptTokens,
					Output: item.Content.Metadata.Usage.CompletionTokens,
					Total:  item.Content.Metadata.Usage.TotalTokens,
				})
			}
			if item.Err != nil {
				log.Error().Err(item.Err).Msg("generateChatCompletion stream error")
			}
			out <- item
		}
		log.Debug().Msg("generateChatCompletion done")
	}()

	return out, nil
}
