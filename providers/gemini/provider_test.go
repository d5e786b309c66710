package gemini

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/toolid"
)

func TestNew_AppliesDefaults(t *testing.T) {
	p := New(Config{})

	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-1.5-flash", p.cfg.DefaultModel)
	assert.Equal(t, []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}, p.cfg.AuthConfig.APIKeyEnvs)
	assert.Equal(t, DefaultModels, p.Models())
}

func TestCapabilities_HasNoBaseURLConfig(t *testing.T) {
	p := New(Config{})
	assert.False(t, p.Capabilities().HasBaseURLConfig)
	assert.True(t, p.Capabilities().SupportsStreaming)
}

func TestClearState_ResetsAdapterState(t *testing.T) {
	p := New(Config{})
	before := p.state.Resolver()
	p.ClearState()
	assert.NotSame(t, before, p.state.Resolver())
}

func TestTextFor_ConcatenatesBlocks(t *testing.T) {
	item := content.IContent{Blocks: []content.Block{content.TextBlock{Text: "a"}, content.CodeBlock{Code: "b"}}}
	assert.Equal(t, "ab", textFor(item))
}

func TestToWireHistory_LastHumanTurnBecomesLastMsgNotHistory(t *testing.T) {
	history := []content.IContent{
		content.TextOnly(content.SpeakerHuman, "earlier"),
		content.TextOnly(content.SpeakerHuman, "latest"),
	}
	wire, last := toWireHistory(history)

	assert.Equal(t, "latest", last)
	assert.Len(t, wire, 1)
	assert.Equal(t, "user", wire[0].Role)
}

func TestToWireHistory_EmptyLastMsgDefaultsToContinue(t *testing.T) {
	history := []content.IContent{
		{Speaker: content.SpeakerAI, Blocks: []content.Block{content.TextBlock{Text: "hi"}}},
	}
	_, last := toWireHistory(history)
	assert.Equal(t, "Continue", last)
}

func TestToolNameFromResponse_PrefersStashedName(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: map[string]any{"_tool_name": "search", "ok": true}}
	assert.Equal(t, "search", toolNameFromResponse(tr))
}

func TestToolNameFromResponse_FallsBackToCallID(t *testing.T) {
	tr := content.ToolResponseBlock{CallID: "hist_tool_1", Result: "plain"}
	assert.Equal(t, "hist_tool_1", toolNameFromResponse(tr))
}

func TestResultMap_ErrorTakesPrecedence(t *testing.T) {
	tr := content.ToolResponseBlock{Error: errors.New("boom")}
	assert.Equal(t, map[string]any{"error": "boom"}, resultMap(tr))
}

func TestResultMap_PassesThroughMap(t *testing.T) {
	tr := content.ToolResponseBlock{Result: map[string]any{"a": 1.0}}
	assert.Equal(t, map[string]any{"a": 1.0}, resultMap(tr))
}

func TestResultMap_ParsesJSONString(t *testing.T) {
	tr := content.ToolResponseBlock{Result: `{"a":1}`}
	assert.Equal(t, map[string]any{"a": 1.0}, resultMap(tr))
}

func TestConvertSchema_NilParamsYieldsNilSchema(t *testing.T) {
	assert.Nil(t, convertSchema(nil))
}

func TestConvertSchema_BuildsPropertiesAndRequired(t *testing.T) {
	params := map[string]any{
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "description": "the name"},
		},
		"required": []any{"name"},
	}
	schema := convertSchema(params)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Contains(t, schema.Required, "name")
	assert.Equal(t, genai.TypeString, schema.Properties["name"].Type)
	assert.Equal(t, "the name", schema.Properties["name"].Description)
}

func TestConvertPropertySchema_ArrayOfObjects(t *testing.T) {
	prop := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "integer"},
			},
		},
	}
	schema := convertPropertySchema(prop)

	assert.Equal(t, genai.TypeArray, schema.Type)
	assert.Equal(t, genai.TypeObject, schema.Items.Type)
	assert.Equal(t, genai.TypeInteger, schema.Items.Properties["id"].Type)
}

func TestBlocksFromParts_SynthesizesCanonicalIDForFunctionCalls(t *testing.T) {
	parts := []genai.Part{genai.FunctionCall{Name: "search", Args: map[string]any{"q": "go"}}}
	blocks := blocksFromParts(parts)

	assert.Len(t, blocks, 1)
	tc, ok := blocks[0].(content.ToolCallBlock)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(tc.ID, toolid.CanonicalPrefix))
	assert.Equal(t, "search", tc.Name)
}

func TestBlocksFromParts_TextPartBecomesTextBlock(t *testing.T) {
	blocks := blocksFromParts([]genai.Part{genai.Text("hello")})
	assert.Equal(t, []content.Block{content.TextBlock{Text: "hello"}}, blocks)
}

func TestWrapError_NilIsNil(t *testing.T) {
	assert.Nil(t, wrapError(nil, "gemini"))
}

func TestWrapError_WrapsAsApiError(t *testing.T) {
	err := wrapError(errors.New("boom"), "gemini")
	var apiErr *llmerr.ApiError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "gemini", apiErr.Provider)
}

func TestStringMeta(t *testing.T) {
	assert.Equal(t, "", stringMeta(nil, "k"))
	assert.Equal(t, "v", stringMeta(map[string]any{"k": "v"}, "k"))
}
