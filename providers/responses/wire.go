// Package responses implements the OpenAI-style Responses API adapter
// (§4.F), the stateful-thread sibling of Chat Completions. The pack
// carries no typed SDK for this API, so the adapter is built directly on
// net/http + encoding/json, grounded on the raw-HTTP SSE parsing pattern in
// the goclaw LLM client's completeOnceStreamOpenAI/Anthropic methods
// (bufio.Scanner over text/event-stream, "event:"/"data:" line pairs).
package responses

import "encoding/json"

// wireRequest is the request body: {model, input, stream,
// previous_response_id?} plus the optional fields below. Ephemeral
// settings are not merged into it; only these named fields are sent.
type wireRequest struct {
	Model              string      `json:"model"`
	Input              []wireItem  `json:"input"`
	Stream             bool        `json:"stream"`
	PreviousResponseID string      `json:"previous_response_id,omitempty"`
	Instructions       string      `json:"instructions,omitempty"`
	Tools              []wireTool  `json:"tools,omitempty"`
	Temperature        *float64    `json:"temperature,omitempty"`
	TopP               *float64    `json:"top_p,omitempty"`
	MaxOutputTokens    *int        `json:"max_output_tokens,omitempty"`
}

// wireItem is one input-array element: a role+content message, a
// function-call the model previously emitted, or a function-call result
// the caller is feeding back.
type wireItem struct {
	Type      string             `json:"type,omitempty"`
	Role      string             `json:"role,omitempty"`
	Content   []wireContentPart  `json:"content,omitempty"`
	CallID    string             `json:"call_id,omitempty"`
	Name      string             `json:"name,omitempty"`
	Arguments string             `json:"arguments,omitempty"`
	Output    string             `json:"output,omitempty"`
}

type wireContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// wireResponse is the non-streaming response body: an ordered list of
// output items plus usage.
type wireResponse struct {
	ID     string       `json:"id"`
	Output []wireOutput `json:"output"`
	Usage  *wireUsage   `json:"usage,omitempty"`
	Error  *wireError   `json:"error,omitempty"`
}

type wireOutput struct {
	Type    string            `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []wireContentPart `json:"content,omitempty"`
	CallID  string            `json:"call_id,omitempty"`
	Name    string            `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type wireError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// wireEvent is a decoded SSE "data:" payload. Only the fields the §4.F.1
// state machine consumes are named; the rest are ignored by
// encoding/json's default unknown-field tolerance.
type wireEvent struct {
	Type     string      `json:"type"`
	Delta    string      `json:"delta"`
	Item     *wireOutput `json:"item"`
	Response *wireResponse `json:"response"`
}

func parseWireEvent(payload []byte) (wireEvent, error) {
	var ev wireEvent
	err := json.Unmarshal(payload, &ev)
	return ev, err
}
