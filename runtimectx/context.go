package runtimectx

import (
	"strings"
	"time"

	"github.com/llxprt/core/content"
)

// RuntimeContext is an immutable per-call bundle identifying which
// settings and config a call sees. It is constructed once at call entry
// by the provider manager's snapshotRuntimeContext and never shared
// between calls except by explicit copy — see §3 "Lifecycle".
type RuntimeContext struct {
	Settings  SettingsService
	Config    Config
	RuntimeID string
	Metadata  map[string]any
}

// ResolvedCallParams holds the per-call values the caller supplies to an
// adapter: model selection, base URL override, an explicit auth token
// (passed to the auth resolver as the highest-precedence key, never
// logged), and merged model parameters. The provider manager passes it
// through unchanged.
type ResolvedCallParams struct {
	Model       string
	BaseURL     string
	AuthToken   string
	ModelParams ModelParams
}

// ModelParams carries the provider-agnostic generation knobs merged from
// settings, ephemeral overrides, and request-time overrides (§4.F step 6).
type ModelParams struct {
	Temperature   *float64
	TopP          *float64
	TopK          *int
	StopSequences []string
	MaxTokens     *int
}

// ToolGroup is a declarative tool/function schema offered to the model,
// grouped the way a caller registers related tools together.
type ToolGroup struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema, always type=object at the root
}

// SettingsSnapshot is a read-only view of a SettingsService captured at
// call time, so a provider adapter never observes settings mutated by a
// concurrent call on a different RuntimeContext.
type SettingsSnapshot struct {
	ProviderName string
	Provider     ProviderSettings
	Ephemeral    map[string]any
}

// NormalizedGenerateChatOptions is the immutable value passed through the
// provider boundary (§3). No adapter may mutate any of its fields; all
// per-call state lives here and in local variables of the call.
type NormalizedGenerateChatOptions struct {
	Contents   []content.IContent
	Tools      []ToolGroup
	Settings   SettingsSnapshot
	Runtime    RuntimeContext
	Resolved   ResolvedCallParams
	UserMemory string
	Metadata   map[string]any
}

// ProviderCapabilities describes what a provider adapter supports, as
// returned by its Capabilities method. The manager reads it on demand; it
// is not captured at registration nor merged with any runtime detection.
type ProviderCapabilities struct {
	SupportsStreaming bool
	SupportsTools     bool
	SupportsVision    bool
	MaxTokens         int
	SupportedFormats  []string
	HasModelSelection bool
	HasAPIKeyConfig   bool
	HasBaseURLConfig  bool
	SupportsPaidMode  bool
}

// ModelInfo describes one model a provider exposes, returned by
// GetModels().
type ModelInfo struct {
	ID                  string
	Name                string
	Provider            string
	SupportedToolFormats []string
	ContextWindow       int
	MaxOutputTokens     int
}

// Snapshot builds a SettingsSnapshot for the named provider from a
// SettingsService and Config, the read-only view an adapter consumes
// instead of touching the live SettingsService directly.
func Snapshot(settings SettingsService, cfg Config, providerName string) SettingsSnapshot {
	return SettingsSnapshot{
		ProviderName: providerName,
		Provider:     settings.GetProviderSettings(providerName),
		Ephemeral:    cfg.GetEphemeralSettings(),
	}
}

// StreamingEnabled implements §4.F step 6's streaming-disable rule: stream
// defaults to true unless the ephemeral "streaming" setting is the literal
// string "disabled".
func (s SettingsSnapshot) StreamingEnabled() bool {
	if v, ok := s.Ephemeral["streaming"]; ok {
		if str, ok := v.(string); ok && str == "disabled" {
			return false
		}
	}
	return true
}

// SocketTimeout returns the ephemeral socket-timeout setting, or the
// provided default when absent or malformed.
func (s SettingsSnapshot) SocketTimeout(def time.Duration) time.Duration {
	v, ok := s.Ephemeral["socket-timeout-ms"]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return time.Duration(t) * time.Millisecond
	case float64:
		return time.Duration(t) * time.Millisecond
	default:
		return def
	}
}

// CustomHeaders implements §6's merge rule: baseDefaults ⊕
// config.customHeaders ⊕ ephemeral["custom-headers"], later writes win.
func CustomHeaders(baseDefaults map[string]string, configHeaders map[string]string, ephemeral map[string]any) map[string]string {
	out := make(map[string]string, len(baseDefaults)+len(configHeaders))
	for k, v := range baseDefaults {
		out[k] = v
	}
	for k, v := range configHeaders {
		out[k] = v
	}
	if raw, ok := ephemeral["custom-headers"]; ok {
		if m, ok := raw.(map[string]string); ok {
			for k, v := range m {
				out[k] = v
			}
		} else if m, ok := raw.(map[string]any); ok {
			for k, v := range m {
				if s, ok := v.(string); ok {
					out[k] = s
				}
			}
		}
	}
	return out
}

// MaxTokensForModel implements §4.F step 6's model-aware default: a table
// of regex-free substring matches against the model name, falling back to
// 4096.
func MaxTokensForModel(model string) int {
	for _, rule := range modelMaxTokenRules {
		if rule.match(model) {
			return rule.tokens
		}
	}
	return 4096
}

type maxTokenRule struct {
	substr string
	tokens int
}

func (r maxTokenRule) match(model string) bool {
	return strings.Contains(strings.ToLower(model), r.substr)
}

var modelMaxTokenRules = []maxTokenRule{
	{"claude-opus-4", 32000},
	{"claude-sonnet-4", 64000},
	{"claude-3-5", 8192},
	{"gpt-4.1", 32768},
	{"gpt-4o", 16384},
	{"o4-mini", 65536},
	{"gemini-2.0", 8192},
	{"gemini-1.5-pro", 8192},
}
