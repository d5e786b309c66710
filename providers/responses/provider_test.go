package responses

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/runtimectx"
	"github.com/llxprt/core/toolid"
)

func TestNew_AppliesDefaults(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, "responses", p.Name())
	assert.Equal(t, "gpt-4.1-mini", p.cfg.DefaultModel)
	assert.Equal(t, defaultBaseURL, p.cfg.BaseURL)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, p.cfg.AuthConfig.APIKeyEnvs)
	assert.Equal(t, DefaultModels, p.Models())
}

func TestNew_TrimsTrailingSlashFromBaseURL(t *testing.T) {
	p := New(Config{BaseURL: "https://example.test/v1/"})
	assert.Equal(t, "https://example.test/v1", p.cfg.BaseURL)
}

func TestCapabilities_AdvertisesBaseURLAndModelSelection(t *testing.T) {
	caps := New(Config{}).Capabilities()
	assert.True(t, caps.HasBaseURLConfig)
	assert.True(t, caps.HasModelSelection)
	assert.Equal(t, []string{string(toolid.FormatOpenAI)}, caps.SupportedFormats)
}

func TestClearState_ResetsAdapterState(t *testing.T) {
	p := New(Config{})
	before := p.state.Resolver()
	p.ClearState()
	assert.NotSame(t, before, p.state.Resolver())
}

func TestToWireInput_UserAssistantToolRoundTrip(t *testing.T) {
	history := []content.IContent{
		content.TextOnly(content.SpeakerHuman, "hi"),
		{
			Speaker: content.SpeakerAI,
			Blocks: []content.Block{
				content.TextBlock{Text: "let me check"},
				content.ToolCallBlock{ID: toolid.CanonicalPrefix + "1", Name: "search", Parameters: map[string]any{"q": "go"}},
			},
		},
		{
			Speaker: content.SpeakerTool,
			Blocks:  []content.Block{content.ToolResponseBlock{CallID: toolid.CanonicalPrefix + "1", Result: "ok"}},
		},
	}

	items := toWireInput(history)

	assert.Equal(t, "user", items[0].Role)
	assert.Equal(t, "assistant", items[1].Role)
	assert.Equal(t, "function_call", items[2].Type)
	assert.Equal(t, "search", items[2].Name)
	assert.Equal(t, "function_call_output", items[3].Type)
	assert.Equal(t, "ok", items[3].Output)
}

func TestBlockFromOutput_MessageConcatenatesTextParts(t *testing.T) {
	o := wireOutput{Type: "message", Content: []wireContentPart{{Type: "output_text", Text: "a"}, {Type: "output_text", Text: "b"}}}
	b, ok := blockFromOutput(o).(content.TextBlock)
	assert.True(t, ok)
	assert.Equal(t, "ab", b.Text)
}

func TestBlockFromOutput_EmptyMessageYieldsNil(t *testing.T) {
	assert.Nil(t, blockFromOutput(wireOutput{Type: "message"}))
}

func TestBlockFromOutput_FunctionCallRewritesCallIDToCanonical(t *testing.T) {
	o := wireOutput{Type: "function_call", CallID: "call_abc", Name: "search", Arguments: `{"q":"go"}`}
	b, ok := blockFromOutput(o).(content.ToolCallBlock)
	assert.True(t, ok)
	assert.Equal(t, toolid.ToCanonical("call_abc"), b.ID)
	assert.Equal(t, map[string]any{"q": "go"}, b.Parameters)
}

func TestBlockFromOutput_UnknownTypeYieldsNil(t *testing.T) {
	assert.Nil(t, blockFromOutput(wireOutput{Type: "reasoning"}))
}

func TestParseToolArguments_EmptyStringYieldsEmptyMap(t *testing.T) {
	assert.Equal(t, map[string]any{}, parseToolArguments(""))
}

func TestParseToolArguments_InvalidJSONYieldsEmptyMap(t *testing.T) {
	assert.Equal(t, map[string]any{}, parseToolArguments("not json"))
}

func TestParseToolArguments_ValidJSON(t *testing.T) {
	assert.Equal(t, map[string]any{"a": 1.0}, parseToolArguments(`{"a":1}`))
}

func TestResultText_ErrorTakesPrecedence(t *testing.T) {
	tr := content.ToolResponseBlock{Error: errors.New("boom"), Result: "ignored"}
	assert.Equal(t, "boom", resultText(tr))
}

func TestResultText_StringPassthrough(t *testing.T) {
	tr := content.ToolResponseBlock{Result: "plain"}
	assert.Equal(t, "plain", resultText(tr))
}

func TestResultText_MarshalsStructuredResult(t *testing.T) {
	tr := content.ToolResponseBlock{Result: map[string]any{"ok": true}}
	assert.JSONEq(t, `{"ok":true}`, resultText(tr))
}

func TestToWireTools_DefaultsToObjectParameters(t *testing.T) {
	tools := toWireTools([]runtimectx.ToolGroup{{Name: "search", Description: "search the web"}})
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "object", tools[0].Parameters["type"])
}

func TestWrapError_NilIsNil(t *testing.T) {
	assert.Nil(t, wrapError(nil, "responses"))
}

func TestWrapError_WrapsGenericErrorAsApiError(t *testing.T) {
	err := wrapError(errors.New("boom"), "responses")
	var apiErr *llmerr.ApiError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "responses", apiErr.Provider)
}

func TestWrapWireError_UsesMessageFromBody(t *testing.T) {
	err := wrapWireError("responses", 429, &wireError{Message: "rate limited"}, "12")
	var apiErr *llmerr.ApiError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Status)
	assert.Equal(t, "rate limited", apiErr.Message)
	assert.Equal(t, "12", apiErr.RetryAfter)
}

func TestWrapWireError_FallsBackWhenBodyMissing(t *testing.T) {
	err := wrapWireError("responses", 500, nil, "")
	var apiErr *llmerr.ApiError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "request failed", apiErr.Message)
}

func TestParseWireEvent_DecodesDeltaAndItem(t *testing.T) {
	ev, err := parseWireEvent([]byte(`{"type":"response.output_text.delta","delta":"hi"}`))
	assert.NoError(t, err)
	assert.Equal(t, "response.output_text.delta", ev.Type)
	assert.Equal(t, "hi", ev.Delta)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}

func TestStringMeta(t *testing.T) {
	assert.Equal(t, "", stringMeta(nil, "k"))
	assert.Equal(t, "v", stringMeta(map[string]any{"k": "v"}, "k"))
}
