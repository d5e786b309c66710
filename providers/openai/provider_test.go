package openai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
)

func TestNew_DefaultsToOpenAIPreset(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4.1-mini", p.cfg.DefaultModel)
	assert.Equal(t, "https://api.openai.com/v1/", p.cfg.BaseURL)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, p.cfg.AuthConfig.APIKeyEnvs)
	assert.NotEmpty(t, p.Models())
}

func TestNew_GroqPresetAppliesGroqDefaults(t *testing.T) {
	p := New(Config{PresetName: "groq"})

	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, "llama-3.3-70b-versatile", p.cfg.DefaultModel)
	assert.Equal(t, []string{"GROQ_API_KEY"}, p.cfg.AuthConfig.APIKeyEnvs)
}

func TestNew_ExplicitBaseURLGetsTrailingSlash(t *testing.T) {
	p := New(Config{PresetName: "ollama", BaseURL: "http://localhost:11434/v1"})
	assert.Equal(t, "http://localhost:11434/v1/", p.cfg.BaseURL)
}

func TestNew_ExplicitDefaultModelOverridesPreset(t *testing.T) {
	p := New(Config{PresetName: "openai", DefaultModel: "custom"})
	assert.Equal(t, "custom", p.cfg.DefaultModel)
}

func TestCapabilities_OllamaIsNotPaidMode(t *testing.T) {
	p := New(Config{PresetName: "ollama"})
	assert.False(t, p.Capabilities().SupportsPaidMode)
}

func TestCapabilities_OpenAISupportsVisionOthersDoNot(t *testing.T) {
	assert.True(t, New(Config{PresetName: "openai"}).Capabilities().SupportsVision)
	assert.False(t, New(Config{PresetName: "groq"}).Capabilities().SupportsVision)
}

func TestClearState_ResetsAdapterState(t *testing.T) {
	p := New(Config{})
	before := p.state.HTTPCache()
	p.ClearState()
	after := p.state.HTTPCache()
	assert.NotSame(t, before, after)
}

func TestParseToolArguments_ValidJSON(t *testing.T) {
	out := parseToolArguments(`{"x":1}`)
	assert.EqualValues(t, 1, out["x"])
}

func TestParseToolArguments_InvalidYieldsEmptyMap(t *testing.T) {
	assert.Equal(t, map[string]any{}, parseToolArguments("{bad"))
}

func TestResultText_ErrorTakesPrecedence(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: "x", Error: errors.New("nope")}
	assert.Equal(t, "nope", resultText(tr))
}

func TestResultText_StringPassthrough(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: "ok"}
	assert.Equal(t, "ok", resultText(tr))
}

func TestWrapError_NilIsNil(t *testing.T) {
	assert.Nil(t, wrapError(nil, "openai"))
}

func TestWrapError_WrapsGenericError(t *testing.T) {
	cause := errors.New("timeout")
	err := wrapError(cause, "openai")

	var apiErr *llmerr.ApiError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "openai", apiErr.Provider)
}

func TestTextFor_ConcatenatesTextAndCodeBlocks(t *testing.T) {
	item := content.IContent{Blocks: []content.Block{
		content.TextBlock{Text: "hello "},
		content.CodeBlock{Code: "world"},
	}}
	assert.Equal(t, "hello world", textFor(item))
}

func TestToolCallParamsFor_MarshalsParameters(t *testing.T) {
	item := content.IContent{Speaker: content.SpeakerAI, Blocks: []content.Block{
		content.ToolCallBlock{ID: "hist_tool_abc", Name: "search", Parameters: map[string]any{"q": "go"}},
	}}
	calls := toolCallParamsFor(item)
	assert.Len(t, calls, 1)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "", firstNonEmpty())
}

func TestStringMeta(t *testing.T) {
	assert.Equal(t, "", stringMeta(nil, "k"))
	assert.Equal(t, "v", stringMeta(map[string]any{"k": "v"}, "k"))
}
