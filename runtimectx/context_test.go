package runtimectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxTokensForModel_MatchesTableOrDefaults(t *testing.T) {
	assert.Equal(t, 64000, MaxTokensForModel("claude-sonnet-4-20250514"))
	assert.Equal(t, 8192, MaxTokensForModel("claude-3-5-haiku-20241022"))
	assert.Equal(t, 4096, MaxTokensForModel("some-unknown-model"))
}

func TestCustomHeaders_LaterWritesWin(t *testing.T) {
	base := map[string]string{"x-a": "base", "x-b": "base"}
	cfg := map[string]string{"x-b": "config"}
	ephemeral := map[string]any{"custom-headers": map[string]any{"x-a": "ephemeral"}}

	out := CustomHeaders(base, cfg, ephemeral)

	assert.Equal(t, "ephemeral", out["x-a"])
	assert.Equal(t, "config", out["x-b"])
}

func TestSettingsSnapshot_StreamingEnabledDefaultsTrue(t *testing.T) {
	s := SettingsSnapshot{Ephemeral: map[string]any{}}
	assert.True(t, s.StreamingEnabled())

	disabled := SettingsSnapshot{Ephemeral: map[string]any{"streaming": "disabled"}}
	assert.False(t, disabled.StreamingEnabled())
}

func TestMemorySettingsService_ProviderSettingsRoundTrip(t *testing.T) {
	svc := NewMemorySettingsService()
	svc.SetProviderSetting("openai", "model", "gpt-4.1")
	svc.SetProviderSetting("openai", "baseUrl", "https://api.example")

	ps := svc.GetProviderSettings("openai")
	assert.Equal(t, "gpt-4.1", ps.Model)
	assert.Equal(t, "https://api.example", ps.BaseURL)
}

func TestMemorySettingsService_ExportImportProfile(t *testing.T) {
	svc := NewMemorySettingsService()
	svc.Set("active-provider", "anthropic")

	snap := svc.ExportForProfile()

	other := NewMemorySettingsService()
	other.ImportFromProfile(snap)

	v, ok := other.Get("active-provider")
	assert.True(t, ok)
	assert.Equal(t, "anthropic", v)
}

func TestMemoryConfig_EphemeralSettings(t *testing.T) {
	cfg := NewMemoryConfig("gpt-4.1-mini", "openai")
	cfg.SetEphemeralSetting("streaming", "disabled")

	v, ok := cfg.GetEphemeralSetting("streaming")
	assert.True(t, ok)
	assert.Equal(t, "disabled", v)
	assert.Equal(t, "gpt-4.1-mini", cfg.GetModel())
}
