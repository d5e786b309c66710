package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/runtimectx"
	"github.com/llxprt/core/toolid"
)

// toWireMessages converts a prepared, canonical-ID history into Anthropic
// MessageParam values, grounded on the teacher's convertMessages
// (providers/anthropic/converter.go) generalized from a single
// OpenAI-shaped Message to the provider-neutral IContent, and rewriting
// tool-call IDs to Anthropic's "toolu_" form on egress (§4.B).
func toWireMessages(history []content.IContent) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))

	for _, item := range history {
		switch item.Speaker {
		case content.SpeakerHuman:
			out = append(out, anthropic.NewUserMessage(textBlocksFor(item)...))

		case content.SpeakerAI:
			blocks := []anthropic.ContentBlockParamUnion{}
			for _, b := range item.Blocks {
				switch v := b.(type) {
				case content.TextBlock:
					blocks = append(blocks, anthropic.NewTextBlock(v.Text))
				case content.CodeBlock:
					blocks = append(blocks, anthropic.NewTextBlock(v.Code))
				case content.ToolCallBlock:
					wireID := toolid.ToAnthropic(v.ID)
					blocks = append(blocks, anthropic.NewToolUseBlockParam(wireID, v.Name, v.Parameters))
				}
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case content.SpeakerTool:
			blocks := []anthropic.ContentBlockParamUnion{}
			for _, b := range item.Blocks {
				if tr, ok := b.(content.ToolResponseBlock); ok {
					wireID := toolid.ToAnthropic(tr.CallID)
					blocks = append(blocks, anthropic.NewToolResultBlock(wireID, resultText(tr), tr.Error != nil))
				}
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	return out
}

func textBlocksFor(item content.IContent) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(item.Blocks))
	for _, b := range item.Blocks {
		switch v := b.(type) {
		case content.TextBlock:
			blocks = append(blocks, anthropic.NewTextBlock(v.Text))
		case content.CodeBlock:
			blocks = append(blocks, anthropic.NewTextBlock(v.Code))
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return blocks
}

func resultText(tr content.ToolResponseBlock) string {
	if tr.Error != nil {
		return tr.Error.Error()
	}
	if s, ok := tr.Result.(string); ok {
		return s
	}
	b, err := json.Marshal(tr.Result)
	if err != nil {
		return ""
	}
	return string(b)
}

// toWireTools converts declarative ToolGroups to Anthropic's ToolParam
// shape, grounded on the teacher's convertTools.
func toWireTools(tools []runtimectx.ToolGroup) []anthropic.ToolParam {
	out := make([]anthropic.ToolParam, len(tools))
	for i, t := range tools {
		var schema any
		if t.Parameters == nil {
			schema = map[string]any{"type": "object"}
		} else {
			t.Parameters["type"] = "object"
			schema = t.Parameters
		}
		out[i] = anthropic.ToolParam{
			Name:        anthropic.F(t.Name),
			Description: anthropic.F(t.Description),
			InputSchema: anthropic.F(schema),
		}
	}
	return out
}

// parseToolArguments implements the §4.B "parameter normalization" rule:
// tool-call parameters received as a JSON string are parsed; on parse
// failure, emit {} rather than surfacing an error to the consumer (per
// §7 "Invalid tool parameters in stream").
func parseToolArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{}
	}
	return out
}

// wrapError implements §4.F.3's failure classification for the Anthropic
// wire family into llmerr.ApiError, carrying the Retry-After header when
// the SDK's error exposes the underlying *http.Response, so the retry
// engine's RetryAfterFromError can honor it.
func wrapError(err error, providerName string) error {
	if err == nil {
		return nil
	}

	apiErr := &llmerr.ApiError{Provider: providerName, Message: err.Error(), Cause: err}

	if antErr, ok := err.(*anthropic.Error); ok {
		apiErr.Status = antErr.StatusCode
		if antErr.Response != nil {
			apiErr.RetryAfter = antErr.Response.Header.Get("Retry-After")
		}
	}

	return apiErr
}
