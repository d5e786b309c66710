package manager

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/runtimectx"
)

type fakeProvider struct {
	name    string
	cleared bool
	models  []runtimectx.ModelInfo
	caps    runtimectx.ProviderCapabilities
}

func (f *fakeProvider) Name() string                                 { return f.name }
func (f *fakeProvider) Models() []runtimectx.ModelInfo                { return f.models }
func (f *fakeProvider) Capabilities() runtimectx.ProviderCapabilities { return f.caps }
func (f *fakeProvider) ClearState()                                   { f.cleared = true }
func (f *fakeProvider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	ch := make(chan provider.StreamItem)
	close(ch)
	return ch, nil
}

func newTestManager() (*ProviderManager, *runtimectx.MemorySettingsService, *runtimectx.MemoryConfig) {
	settings := runtimectx.NewMemorySettingsService()
	cfg := runtimectx.NewMemoryConfig("gpt-4.1-mini", "openai")
	m := New(settings, cfg, zerolog.Nop())
	return m, settings, cfg
}

func TestRegisterProvider_FirstDefaultBecomesActive(t *testing.T) {
	m, _, _ := newTestManager()
	m.RegisterProvider(&fakeProvider{name: "openai"}, true)

	p, err := m.GetActiveProvider()
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestSetActiveProvider_UnknownNameErrors(t *testing.T) {
	m, _, _ := newTestManager()
	m.RegisterProvider(&fakeProvider{name: "openai"}, true)

	err := m.SetActiveProvider("nope")
	assert.Error(t, err)
}

func TestSetActiveProvider_ClearsOutgoingStateUnlessPinned(t *testing.T) {
	m, _, _ := newTestManager()
	gem := &fakeProvider{name: "gemini"}
	m.RegisterProvider(gem, true)
	anth := &fakeProvider{name: "anthropic"}
	m.RegisterProvider(anth, false)
	m.SetServerToolsProvider("gemini")

	require.NoError(t, m.SetActiveProvider("anthropic"))
	assert.False(t, gem.cleared, "pinned server-tools provider must not be cleared")

	m.SetServerToolsProvider("") // nothing pinned: the outgoing anthropic is cleared
	require.NoError(t, m.SetActiveProvider("gemini"))
	assert.True(t, anth.cleared, "unpinned outgoing provider must be cleared")
}

func TestGetActiveProvider_FallbackLadderWritesBackToSettings(t *testing.T) {
	m, settings, _ := newTestManager()
	m.RegisterProvider(&fakeProvider{name: "openai"}, false) // not default

	p, err := m.GetActiveProvider()
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	v, ok := settings.Get("activeProvider")
	require.True(t, ok)
	assert.Equal(t, "openai", v)
}

func TestGetActiveProvider_NoProvidersErrors(t *testing.T) {
	m, _, _ := newTestManager()
	_, err := m.GetActiveProvider()
	assert.Error(t, err)
}

func TestSnapshotRuntimeContext_UniqueIDsPerCall(t *testing.T) {
	m, _, _ := newTestManager()
	rc1, err := m.SnapshotRuntimeContext("chat", "base", 1000)
	require.NoError(t, err)
	rc2, err := m.SnapshotRuntimeContext("chat", "base", 1001)
	require.NoError(t, err)

	assert.NotEqual(t, rc1.RuntimeID, rc2.RuntimeID)
	assert.Equal(t, "chat", rc1.Metadata["source"])
}

func TestSnapshotRuntimeContext_MissingConfigIsFatal(t *testing.T) {
	settings := runtimectx.NewMemorySettingsService()
	m := New(settings, nil, zerolog.Nop())

	_, err := m.SnapshotRuntimeContext("chat", "base", 1000)
	assert.Error(t, err)
}

func TestSessionTokenAccumulation_ClampsNegativeAndIsAssociative(t *testing.T) {
	m, _, _ := newTestManager()
	m.AccumulateSessionTokens("openai", TokenUsage{Input: 10, Output: -5, Total: 5})
	m.AccumulateSessionTokens("openai", TokenUsage{Input: 3, Output: 4, Total: 7})

	totals := m.GetSessionTokenUsage()
	assert.Equal(t, 13, totals.Input)
	assert.Equal(t, 4, totals.Output) // -5 clamped to 0 before summing
	assert.Equal(t, 12, totals.Total)

	m.ResetSessionTokenUsage()
	assert.Equal(t, TokenUsage{}, m.GetSessionTokenUsage())
}

func TestCompareProviders(t *testing.T) {
	m, _, _ := newTestManager()
	caps := runtimectx.ProviderCapabilities{SupportsStreaming: true}
	m.RegisterProvider(&fakeProvider{name: "a", caps: caps}, false)
	m.RegisterProvider(&fakeProvider{name: "b", caps: caps}, false)

	same, err := m.CompareProviders("a", "b")
	require.NoError(t, err)
	assert.True(t, same)
}
