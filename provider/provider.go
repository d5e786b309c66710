// Package provider defines the contract every wire-family adapter
// implements, generalizing the teacher's Provider interface
// (Name/Models/Complete/Stream/SupportsTools) from an OpenAI-shaped
// Request/Event pair to the core's provider-neutral IContent stream.
package provider

import (
	"context"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/runtimectx"
)

// StreamItem is one element of the lazy sequence a call yields: either a
// content block batch or a terminal error. A StreamItem with a non-nil Err
// always ends the sequence.
type StreamItem struct {
	Content *content.IContent
	Err     error
}

// Provider is the core interface every wire-family adapter implements.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Models returns the list of supported model IDs.
	Models() []runtimectx.ModelInfo

	// GenerateChatCompletion performs the call described in §4.F: resolve
	// auth, acquire an HTTP client, translate contents to wire format,
	// retry-wrap the request, drive the provider's streaming state
	// machine, and yield IContent lazily on the returned channel. The
	// channel is always closed by the adapter, exactly once, after the
	// final item (success or error) has been sent.
	GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan StreamItem, error)

	// Capabilities returns this provider's capability descriptor.
	Capabilities() runtimectx.ProviderCapabilities

	// ClearState drops any cached auth/HTTP-client state this provider
	// instance holds. Called by the provider manager when switching away
	// from a non-server-tools provider.
	ClearState()
}

// Middleware wraps a Provider with additional functionality (circuit
// breaking, timeouts), mirroring the teacher's Middleware
// interface one-for-one.
type Middleware interface {
	Wrap(next Provider) Provider
}
