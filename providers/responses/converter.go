package responses

import (
	"encoding/json"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/runtimectx"
	"github.com/llxprt/core/toolid"
)

// toWireInput converts a prepared history into the Responses API's input
// array, rewriting canonical tool-call IDs to OpenAI's "call_<u>" form
// (toolid.ToOpenAI) on the way out, matching OpenAI's own
// function-call/function-call-output pairing contract; inbound call_ids
// are canonicalized with toolid.ToCanonical.
func toWireInput(history []content.IContent) []wireItem {
	out := make([]wireItem, 0, len(history))

	for _, item := range history {
		switch item.Speaker {
		case content.SpeakerHuman:
			out = append(out, wireItem{Role: "user", Content: []wireContentPart{{Type: "input_text", Text: textFor(item)}}})

		case content.SpeakerAI:
			if text := textFor(item); text != "" {
				out = append(out, wireItem{Role: "assistant", Content: []wireContentPart{{Type: "output_text", Text: text}}})
			}
			for _, b := range item.Blocks {
				if tc, ok := b.(content.ToolCallBlock); ok {
					args, err := json.Marshal(tc.Parameters)
					if err != nil {
						args = []byte("{}")
					}
					out = append(out, wireItem{Type: "function_call", CallID: toolid.ToOpenAI(tc.ID), Name: tc.Name, Arguments: string(args)})
				}
			}

		case content.SpeakerTool:
			for _, b := range item.Blocks {
				if tr, ok := b.(content.ToolResponseBlock); ok {
					out = append(out, wireItem{Type: "function_call_output", CallID: toolid.ToOpenAI(tr.CallID), Output: resultText(tr)})
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

// toWireTools converts declarative ToolGroups to the Responses API's flat
// function-tool shape (no nested "function" wrapper, unlike Chat
// Completions).
func toWireTools(tools []runtimectx.ToolGroup) []wireTool {
	out := make([]wireTool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object"}
		} else {
			params["type"] = "object"
		}
		out[i] = wireTool{Type: "function", Name: t.Name, Description: t.Description, Parameters: params}
	}
	return out
}

// blockFromOutput converts one non-streaming output item to a canonical
// block, or nil if the item type isn't one this adapter surfaces to
// callers.
func blockFromOutput(o wireOutput) content.Block {
	switch o.Type {
	case "message":
		var text string
		for _, part := range o.Content {
			text += part.Text
		}
		if text == "" {
			return nil
		}
		return content.TextBlock{Text: text}
	case "function_call":
		return content.ToolCallBlock{
			ID:         toolid.ToCanonical(o.CallID),
			Name:       o.Name,
			Parameters: parseToolArguments(o.Arguments),
		}
	default:
		return nil
	}
}

// parseToolArguments implements the §4.B parameter-normalization rule for
// the Responses wire family: Arguments arrives as a JSON string and is
// parsed into a structured value, or {} on parse failure.
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

func wrapError(err error, providerName string) error {
	if err == nil {
		return nil
	}
	return &llmerr.ApiError{Provider: providerName, Message: err.Error(), Cause: err}
}

// wrapWireError converts a non-2xx response body's structured error into
// an ApiError, carrying Retry-After when the caller supplies one from the
// response headers.
func wrapWireError(providerName string, status int, we *wireError, retryAfter string) error {
	msg := "request failed"
	if we != nil && we.Message != "" {
		msg = we.Message
	}
	return &llmerr.ApiError{Provider: providerName, Status: status, Message: msg, RetryAfter: retryAfter}
}
