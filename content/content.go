// Package content defines the provider-neutral conversation item (IContent)
// and the speaker-agnostic normalization rules (orphan pruning, placeholder
// insertion) that every strict-pairing provider's wire adapter relies on.
//
// It is grounded on the teacher's types.go (Message/ToolCall/Role) and on
// each provider's converter.go, generalized: the teacher modeled one
// OpenAI-shaped Message per provider; this model is provider-neutral and
// lets a provider adapter walk a single representation regardless of which
// wire family it targets.
package content

// Speaker identifies who produced an IContent item.
type Speaker string

const (
	SpeakerHuman Speaker = "human"
	SpeakerAI    Speaker = "ai"
	SpeakerTool  Speaker = "tool"
)

// Block is a typed payload within an IContent item.
type Block interface {
	blockKind() string
}

// TextBlock carries plain text.
type TextBlock struct {
	Text string
}

func (TextBlock) blockKind() string { return "text" }

// CodeBlock carries a fenced code snippet.
type CodeBlock struct {
	Language string
	Code     string
}

func (CodeBlock) blockKind() string { return "code" }

// ToolCallBlock is a tool invocation requested by the model. Speaker must
// be SpeakerAI. Parameters is always a structured value; any wire-level
// JSON-string form is parsed during decoding before this type is built.
type ToolCallBlock struct {
	ID         string
	Name       string
	Parameters map[string]any
}

func (ToolCallBlock) blockKind() string { return "tool_call" }

// ToolResponseBlock carries the result of a prior tool call. Speaker must
// be SpeakerTool, and CallID must reference a ToolCallBlock.ID emitted
// earlier in the same conversation.
type ToolResponseBlock struct {
	CallID string
	Result any
	Error  error
}

func (ToolResponseBlock) blockKind() string { return "tool_response" }

// Usage carries token accounting for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Metadata carries optional out-of-band information attached to an
// IContent item, typically emitted alongside a usage_update stream event.
type Metadata struct {
	Usage        *Usage
	RuntimeID    string
	ProviderName string
}

// IContent is the canonical conversation item flowing through the core.
type IContent struct {
	Speaker  Speaker
	Blocks   []Block
	Metadata *Metadata
}

// HasToolResponse reports whether the item contains at least one
// ToolResponseBlock.
func (c IContent) HasToolResponse() bool {
	for _, b := range c.Blocks {
		if _, ok := b.(ToolResponseBlock); ok {
			return true
		}
	}
	return false
}

// ToolCallIDs returns the IDs of every ToolCallBlock in this item, in
// order.
func (c IContent) ToolCallIDs() []string {
	var ids []string
	for _, b := range c.Blocks {
		if tc, ok := b.(ToolCallBlock); ok {
			ids = append(ids, tc.ID)
		}
	}
	return ids
}

// ToolResponseCallIDs returns the CallIDs of every ToolResponseBlock in
// this item, in order.
func (c IContent) ToolResponseCallIDs() []string {
	var ids []string
	for _, b := range c.Blocks {
		if tr, ok := b.(ToolResponseBlock); ok {
			ids = append(ids, tr.CallID)
		}
	}
	return ids
}

// TextOnly builds a single-text-block IContent item for speaker, used for the
// placeholder items §4.B requires at strict-pairing conversation
// boundaries.
func TextOnly(speaker Speaker, text string) IContent {
	return IContent{Speaker: speaker, Blocks: []Block{TextBlock{Text: text}}}
}
