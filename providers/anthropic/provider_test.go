package anthropic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/runtimectx"
)

func TestNew_AppliesDefaults(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, "anthropic", p.Name())
	assert.Equal(t, DefaultModels, p.Models())
	assert.Equal(t, "claude-sonnet-4-20250514", p.cfg.DefaultModel)
	assert.Equal(t, []string{"ANTHROPIC_API_KEY"}, p.cfg.AuthConfig.APIKeyEnvs)
}

func TestNew_PreservesExplicitConfig(t *testing.T) {
	custom := []runtimectx.ModelInfo{{ID: "custom-model", Provider: "anthropic"}}
	p := New(Config{DefaultModel: "custom-model", Models: custom})

	assert.Equal(t, "custom-model", p.cfg.DefaultModel)
	assert.Equal(t, custom, p.Models())
}

func TestCapabilities_AdvertisesStreamingToolsAndVision(t *testing.T) {
	p := New(Config{})
	caps := p.Capabilities()

	assert.True(t, caps.SupportsStreaming)
	assert.True(t, caps.SupportsTools)
	assert.True(t, caps.SupportsVision)
	assert.True(t, caps.HasAPIKeyConfig)
	assert.True(t, caps.HasBaseURLConfig)
}

func TestClearState_ResetsAdapterState(t *testing.T) {
	p := New(Config{})
	before := p.state.Resolver()
	p.ClearState()
	after := p.state.Resolver()

	assert.NotSame(t, before, after)
}

func TestParseToolArguments_ValidJSON(t *testing.T) {
	out := parseToolArguments(`{"path":"/tmp/x","count":3}`)
	assert.Equal(t, "/tmp/x", out["path"])
	assert.EqualValues(t, 3, out["count"])
}

func TestParseToolArguments_EmptyStringYieldsEmptyMap(t *testing.T) {
	out := parseToolArguments("")
	assert.Equal(t, map[string]any{}, out)
}

func TestParseToolArguments_InvalidJSONYieldsEmptyMapNotError(t *testing.T) {
	out := parseToolArguments(`{not valid json`)
	assert.Equal(t, map[string]any{}, out)
}

func TestResultText_PlainString(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: "done"}
	assert.Equal(t, "done", resultText(tr))
}

func TestResultText_MarshalsStructuredResult(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: map[string]any{"ok": true}}
	assert.JSONEq(t, `{"ok":true}`, resultText(tr))
}

func TestResultText_ErrorTakesPrecedence(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: "ignored", Error: errors.New("boom")}
	assert.Equal(t, "boom", resultText(tr))
}

func TestWrapError_NilIsNil(t *testing.T) {
	assert.Nil(t, wrapError(nil, "anthropic"))
}

func TestWrapError_WrapsGenericErrorAsApiError(t *testing.T) {
	cause := errors.New("network unreachable")
	err := wrapError(cause, "anthropic")

	var apiErr *llmerr.ApiError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "anthropic", apiErr.Provider)
	assert.Equal(t, cause, errors.Unwrap(apiErr))
}

func TestWrapSystemAsUserPrefix_PrependsWrappedText(t *testing.T) {
	history := []content.IContent{
		content.TextOnly(content.SpeakerHuman, "hi there"),
	}
	out := wrapSystemAsUserPrefix(history, "be helpful")

	assert.Len(t, out, 1)
	assert.Len(t, out[0].Blocks, 2)
	first, ok := out[0].Blocks[0].(content.TextBlock)
	assert.True(t, ok)
	assert.Equal(t, "<system>be helpful</system>", first.Text)
	second, ok := out[0].Blocks[1].(content.TextBlock)
	assert.True(t, ok)
	assert.Equal(t, "hi there", second.Text)
}

func TestWrapSystemAsUserPrefix_EmptyPromptReturnsUnchanged(t *testing.T) {
	history := []content.IContent{content.TextOnly(content.SpeakerHuman, "hi")}
	out := wrapSystemAsUserPrefix(history, "")
	assert.Equal(t, history, out)
}

func TestWrapSystemAsUserPrefix_EmptyHistoryReturnsUnchanged(t *testing.T) {
	out := wrapSystemAsUserPrefix(nil, "be helpful")
	assert.Nil(t, out)
}

func TestWrapSystemAsUserPrefix_DoesNotMutateInput(t *testing.T) {
	original := content.TextOnly(content.SpeakerHuman, "hi there")
	history := []content.IContent{original}

	_ = wrapSystemAsUserPrefix(history, "be helpful")

	assert.Len(t, history[0].Blocks, 1, "original slice must not be mutated")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
}

func TestStringMeta_MissingKeyReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", stringMeta(nil, "runtimeId"))
	assert.Equal(t, "", stringMeta(map[string]any{"other": "x"}, "runtimeId"))
}

func TestStringMeta_ReturnsStringValue(t *testing.T) {
	assert.Equal(t, "rt-1", stringMeta(map[string]any{"runtimeId": "rt-1"}, "runtimeId"))
}

func TestEnvSet_TrueWhenAnyNamedVarIsSet(t *testing.T) {
	t.Setenv("LLXPRT_TEST_ENV_A", "")
	t.Setenv("LLXPRT_TEST_ENV_B", "present")
	assert.True(t, envSet([]string{"LLXPRT_TEST_ENV_A", "LLXPRT_TEST_ENV_B"}))
}

func TestEnvSet_FalseWhenNoneSet(t *testing.T) {
	assert.False(t, envSet([]string{"LLXPRT_TEST_ENV_DOES_NOT_EXIST"}))
}

func TestInputAsMap_PassesThroughMap(t *testing.T) {
	m := map[string]any{"a": 1}
	assert.Equal(t, m, inputAsMap(m))
}

func TestInputAsMap_NonMapYieldsEmpty(t *testing.T) {
	assert.Equal(t, map[string]any{}, inputAsMap("not a map"))
}
