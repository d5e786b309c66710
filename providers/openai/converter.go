package openai

import (
	"encoding/json"

	"github.com/openai/openai-go"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/runtimectx"
	"github.com/llxprt/core/toolid"
)

// toWireMessages converts a prepared history into OpenAI Chat Completions
// message params, grounded on the teacher's convertMessages, generalized
// from a single llmrouter.Message shape to the provider-neutral IContent
// and rewriting tool-call IDs to OpenAI's "call_" form on egress (§4.B).
func toWireMessages(history []content.IContent, systemPrompt string) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)

	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}

	for _, item := range history {
		switch item.Speaker {
		case content.SpeakerHuman:
			out = append(out, openai.UserMessage(textFor(item)))

		case content.SpeakerAI:
			calls := toolCallParamsFor(item)
			if len(calls) > 0 {
				out = append(out, openai.ChatCompletionAssistantMessageParam{
					Role:      openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
					Content:   openai.F([]openai.ChatCompletionAssistantMessageParamContentUnion{openai.TextPart(textFor(item))}),
					ToolCalls: openai.F(calls),
				})
			} else {
				out = append(out, openai.AssistantMessage(textFor(item)))
			}

		case content.SpeakerTool:
			for _, b := range item.Blocks {
				if tr, ok := b.(content.ToolResponseBlock); ok {
					out = append(out, openai.ToolMessage(toolid.ToOpenAI(tr.CallID), resultText(tr)))
				}
			}
		}
	}

	return out
}

func textFor(item content.IContent) string {
	var s string
	for _, b := range item.Blocks {
		switch v := b.(type) {
		case content.TextBlock:
			s += v.Text
		case content.CodeBlock:
			s += v.Code
		}
	}
	return s
}

func toolCallParamsFor(item content.IContent) []openai.ChatCompletionMessageToolCallParam {
	var calls []openai.ChatCompletionMessageToolCallParam
	for _, b := range item.Blocks {
		tc, ok := b.(content.ToolCallBlock)
		if !ok {
			continue
		}
		args, err := json.Marshal(tc.Parameters)
		if err != nil {
			args = []byte("{}")
		}
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID:   openai.F(toolid.ToOpenAI(tc.ID)),
			Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
			Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      openai.F(tc.Name),
				Arguments: openai.F(string(args)),
			}),
		})
	}
	return calls
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

// toWireTools converts declarative ToolGroups to OpenAI's function-tool
// shape, grounded on the teacher's convertTools.
func toWireTools(tools []runtimectx.ToolGroup) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object"}
		} else {
			params["type"] = "object"
		}
		out[i] = openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.F(t.Name),
				Description: openai.F(t.Description),
				Parameters:  openai.F(openai.FunctionParameters(params)),
			}),
		}
	}
	return out
}

// parseToolArguments implements the §4.B parameter-normalization rule for
// the OpenAI wire family: a tool call's Arguments field arrives as a JSON
// string and is parsed into a structured value, or {} on parse failure.
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

// wrapError implements §4.F.3's failure classification for the OpenAI wire
// family into llmerr.ApiError, carrying the Retry-After header when the
// SDK's error exposes the underlying *http.Response.
func wrapError(err error, providerName string) error {
	if err == nil {
		return nil
	}

	apiErr := &llmerr.ApiError{Provider: providerName, Message: err.Error(), Cause: err}

	if oaiErr, ok := err.(*openai.Error); ok {
		apiErr.Status = oaiErr.StatusCode
		apiErr.Message = oaiErr.Message
		if oaiErr.Response != nil {
			apiErr.RetryAfter = oaiErr.Response.Header.Get("Retry-After")
		}
	}

	return apiErr
}

// pendingToolCall accumulates one tool call's incremental Arguments deltas
// across a streamed response, keyed by the wire-level Index field OpenAI
// assigns each parallel tool call (§4.F.2 "OpenAI streaming tool calls").
type pendingToolCall struct {
	id, name, args string
}
