package gemini

import (
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"

	"github.com/llxprt/core/content"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/runtimectx"
	"github.com/llxprt/core/toolid"
)

// toWireHistory converts a prepared history into Gemini chat history plus
// the final user turn Gemini's SendMessage/SendMessageStream API sends
// separately, grounded on the teacher's convertHistory. Unlike the
// strict-pairing wire families, Gemini has no notion of a tool-call ID on
// the wire: outbound FunctionResponse parts correlate to a prior
// FunctionCall by Name alone, so canonical IDs never reach the wire here
// (§4.B "Gemini has no wire-level tool-call ID").
func toWireHistory(history []content.IContent) ([]*genai.Content, string) {
	var wire []*genai.Content
	var lastUserMsg string

	for i, item := range history {
		switch item.Speaker {
		case content.SpeakerHuman:
			if i == len(history)-1 {
				lastUserMsg = textFor(item)
				continue
			}
			wire = append(wire, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(textFor(item))}})

		case content.SpeakerAI:
			var parts []genai.Part
			if text := textFor(item); text != "" {
				parts = append(parts, genai.Text(text))
			}
			for _, b := range item.Blocks {
				if tc, ok := b.(content.ToolCallBlock); ok {
					parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Parameters})
				}
			}
			if len(parts) > 0 {
				wire = append(wire, &genai.Content{Role: "model", Parts: parts})
			}

		case content.SpeakerTool:
			for _, b := range item.Blocks {
				tr, ok := b.(content.ToolResponseBlock)
				if !ok {
					continue
				}
				wire = append(wire, &genai.Content{
					Role:  "function",
					Parts: []genai.Part{genai.FunctionResponse{Name: toolNameFromResponse(tr), Response: resultMap(tr)}},
				})
			}
		}
	}

	if lastUserMsg == "" {
		lastUserMsg = "Continue"
	}
	return wire, lastUserMsg
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

// toolNameFromResponse recovers the function name a ToolResponseBlock
// answers. The canonical CallID carries no name, so callers are expected to
// have stashed the name in Result under "_tool_name" when the runtime
// cannot otherwise recover it; falling back to the bare CallID keeps the
// response attributable even when that convention isn't followed.
func toolNameFromResponse(tr content.ToolResponseBlock) string {
	if m, ok := tr.Result.(map[string]any); ok {
		if name, ok := m["_tool_name"].(string); ok {
			return name
		}
	}
	return tr.CallID
}

func resultMap(tr content.ToolResponseBlock) map[string]any {
	if tr.Error != nil {
		return map[string]any{"error": tr.Error.Error()}
	}
	if m, ok := tr.Result.(map[string]any); ok {
		return m
	}
	if s, ok := tr.Result.(string); ok {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed
		}
		return map[string]any{"result": s}
	}
	b, err := json.Marshal(tr.Result)
	if err != nil {
		return map[string]any{}
	}
	var parsed map[string]any
	if err := json.Unmarshal(b, &parsed); err != nil {
		return map[string]any{}
	}
	return parsed
}

// toWireTools converts declarative ToolGroups to Gemini FunctionDeclarations,
// grounded on the teacher's convertTools/convertSchema/convertPropertySchema.
func toWireTools(tools []runtimectx.ToolGroup) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.Parameters),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertSchema(params map[string]any) *genai.Schema {
	if params == nil {
		return nil
	}
	schema := &genai.Schema{Type: genai.TypeObject}

	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = convertPropertySchema(propMap)
			}
		}
	}
	if required, ok := params["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func convertPropertySchema(prop map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if t, ok := prop["type"].(string); ok {
		switch t {
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		case "array":
			schema.Type = genai.TypeArray
			if items, ok := prop["items"].(map[string]any); ok {
				schema.Items = convertPropertySchema(items)
			}
		case "object":
			schema.Type = genai.TypeObject
			if props, ok := prop["properties"].(map[string]any); ok {
				schema.Properties = make(map[string]*genai.Schema, len(props))
				for name, p := range props {
					if pm, ok := p.(map[string]any); ok {
						schema.Properties[name] = convertPropertySchema(pm)
					}
				}
			}
		}
	}
	if desc, ok := prop["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := prop["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	return schema
}

// blocksFromParts converts one candidate's Content.Parts into canonical
// blocks, synthesizing a fresh canonical tool-call ID for every
// FunctionCall part since Gemini's wire format carries none (§4.B).
func blocksFromParts(parts []genai.Part) []content.Block {
	var blocks []content.Block
	for _, part := range parts {
		switch p := part.(type) {
		case genai.Text:
			blocks = append(blocks, content.TextBlock{Text: string(p)})
		case genai.FunctionCall:
			blocks = append(blocks, content.ToolCallBlock{
				ID:         toolid.CanonicalPrefix + uuid.New().String(),
				Name:       p.Name,
				Parameters: p.Args,
			})
		}
	}
	return blocks
}

func wrapError(err error, providerName string) error {
	if err == nil {
		return nil
	}
	return &llmerr.ApiError{Provider: providerName, Message: err.Error(), Cause: err}
}
