// Package toolid implements the canonical tool-call ID scheme (§3 "ToolId
// canonical form") and the per-provider egress/ingress rewrites the
// tool-format adapter applies at the wire boundary.
//
// Grounded on the teacher's tool-call ID handling in
// providers/anthropic/converter.go (anthropic.NewToolUseBlockParam /
// NewToolResultBlock, which pass IDs straight through) and
// providers/openai/converter.go (ChatCompletionMessageToolCallParam.ID):
// the teacher never canonicalizes IDs because it only speaks one wire
// format per adapter instance. This package adds the canonicalization
// layer the provider-dispatch runtime needs to keep one history consistent
// across adapters with different ID conventions.
package toolid

import "strings"

// CanonicalPrefix is the prefix every tool-call ID uses inside the core.
const CanonicalPrefix = "hist_tool_"

const (
	anthropicPrefix = "toolu_"
	openaiPrefix    = "call_"
)

// ToCanonical converts a wire-level tool-call ID (anthropic "toolu_<u>",
// openai "call_<u>", or a bare UUID) into the canonical "hist_tool_<u>"
// form used everywhere inside the core. IDs already in canonical form are
// returned unchanged.
func ToCanonical(wireID string) string {
	switch {
	case strings.HasPrefix(wireID, CanonicalPrefix):
		return wireID
	case strings.HasPrefix(wireID, anthropicPrefix):
		return CanonicalPrefix + strings.TrimPrefix(wireID, anthropicPrefix)
	case strings.HasPrefix(wireID, openaiPrefix):
		return CanonicalPrefix + strings.TrimPrefix(wireID, openaiPrefix)
	default:
		// Unknown-prefix IDs are treated as bare UUIDs.
		return CanonicalPrefix + wireID
	}
}

// ToAnthropic converts a canonical ID to Anthropic's "toolu_<u>" form.
func ToAnthropic(canonicalID string) string {
	return anthropicPrefix + bareUUID(canonicalID)
}

// ToOpenAI converts a canonical ID to OpenAI's "call_<u>" form.
func ToOpenAI(canonicalID string) string {
	return openaiPrefix + bareUUID(canonicalID)
}

// bareUUID strips whichever canonical or wire-level prefix is present,
// returning the raw UUID portion.
func bareUUID(id string) string {
	switch {
	case strings.HasPrefix(id, CanonicalPrefix):
		return strings.TrimPrefix(id, CanonicalPrefix)
	case strings.HasPrefix(id, anthropicPrefix):
		return strings.TrimPrefix(id, anthropicPrefix)
	case strings.HasPrefix(id, openaiPrefix):
		return strings.TrimPrefix(id, openaiPrefix)
	default:
		return id
	}
}

// Format identifies a provider's native tool-declaration/tool-call-ID
// dialect.
type Format string

const (
	FormatAnthropic Format = "anthropic"
	FormatOpenAI    Format = "openai"
	FormatGemini    Format = "gemini"
	FormatQwen      Format = "qwen"
)

// qwenModelHints holds the substrings ("qwen", "glm") that trigger
// auto-detection of the "qwen" tool-call dialect from a model name,
// per §4.B "Tool-format detection".
var qwenModelHints = []string{"qwen", "glm"}

// DetectFormat implements §4.B's auto-detection rule: an explicit format
// setting always wins; otherwise the model name is pattern-matched for
// qwen/glm dialects, falling back to the provider's native format.
func DetectFormat(explicitFormat string, modelName string, native Format) Format {
	if explicitFormat != "" {
		return Format(explicitFormat)
	}
	lower := strings.ToLower(modelName)
	for _, hint := range qwenModelHints {
		if strings.Contains(lower, hint) {
			return FormatQwen
		}
	}
	return native
}
