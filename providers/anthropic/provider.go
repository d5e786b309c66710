// Package anthropic implements the Anthropic Messages-API adapter (§4.F),
// grounded on the teacher's providers/anthropic package: same SDK
// (anthropic-sdk-go), same client-construction shape, generalized from a
// single OpenAI-shaped Request/Event pair to NormalizedGenerateChatOptions
// and a canonical IContent stream, and extended with the OAuth
// system-prompt quirk (§4.F step 4, §6) the teacher never needed because
// it only ever authenticated with a bare API key.
package anthropic

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/llxprt/core/auth"
	"github.com/llxprt/core/content"
	"github.com/llxprt/core/httpcache"
	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/prompt"
	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/retry"
	"github.com/llxprt/core/runtimectx"
	"github.com/llxprt/core/toolid"
)

// oauthBetaHeader is the header OAuth-authenticated calls carry alongside
// their "authorization: Bearer" header, in place of x-api-key (§4.F step 3).
const oauthBetaHeader = "anthropic-beta"
const oauthBetaValue = "oauth-2025-04-20"

// oauthFixedSystemPrompt is the fixed string OAuth mode requires in the
// `system` field; the caller's actual system prompt is instead wrapped as
// a `<system>...</system>` prefix on the first user turn (§4.F step 4,
// §6 "OAuth-mode fixed system string").
const oauthFixedSystemPrompt = "You are Claude Code, Anthropic's official CLI for Claude."

// defaultSystemTemplate is used when no template file exists at
// prompt.PromptsDir() — a caller with a real prompts directory overrides
// this by dropping a system.txt there.
const defaultSystemTemplate = "You are an assistant accessed through the {{PROVIDER}} provider using {{MODEL}}."

// DefaultModels is the list of Claude models offered when the caller
// registers this adapter without an explicit model list.
var DefaultModels = []runtimectx.ModelInfo{
	{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", Provider: "anthropic", ContextWindow: 200000, MaxOutputTokens: 32000},
	{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", Provider: "anthropic", ContextWindow: 200000, MaxOutputTokens: 64000},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Provider: "anthropic", ContextWindow: 200000, MaxOutputTokens: 8192},
}

// Config is the construction-time configuration for the Anthropic adapter.
type Config struct {
	AuthConfig   auth.Config
	DefaultModel string
	Models       []runtimectx.ModelInfo
	BaseURL      string
}

// Provider handles the Anthropic Messages API.
type Provider struct {
	cfg   Config
	state *provider.AdapterState
}

// New constructs an Anthropic provider adapter.
func New(cfg Config) *Provider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.AuthConfig.Name == "" {
		cfg.AuthConfig.Name = "anthropic"
	}
	if len(cfg.AuthConfig.APIKeyEnvs) == 0 {
		cfg.AuthConfig.APIKeyEnvs = []string{"ANTHROPIC_API_KEY"}
	}
	return &Provider{cfg: cfg, state: provider.NewAdapterState()}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Models() []runtimectx.ModelInfo { return p.cfg.Models }

func (p *Provider) Capabilities() runtimectx.ProviderCapabilities {
	return runtimectx.ProviderCapabilities{
		SupportsStreaming: true,
		SupportsTools:     true,
		SupportsVision:    true,
		MaxTokens:         64000,
		SupportedFormats:  []string{string(toolid.FormatAnthropic), string(toolid.FormatQwen)},
		HasModelSelection: true,
		HasAPIKeyConfig:   true,
		HasBaseURLConfig:  true,
		SupportsPaidMode:  true,
	}
}

func (p *Provider) ClearState() { p.state.Clear() }

func (p *Provider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	authCfg := p.cfg.AuthConfig
	authCfg.BaseURL = firstNonEmpty(opts.Resolved.BaseURL, p.cfg.BaseURL)
	authCfg.ExplicitKey = opts.Resolved.AuthToken

	isOAuth := authCfg.ExplicitKey == "" && !envSet(authCfg.APIKeyEnvs) && authCfg.OAuthManager != nil

	token, err := p.state.Resolver().Resolve(ctx, authCfg, opts.Runtime.RuntimeID)
	if err != nil {
		return nil, err
	}

	key := httpcache.BuildKey(opts.Runtime.RuntimeID, stringMeta(opts.Runtime.Metadata, "runtimeId"), "", authCfg.BaseURL, token)
	httpClient := p.state.HTTPCache().GetOrCreate(key, func() *http.Client {
		return &http.Client{Timeout: opts.Settings.SocketTimeout(60 * time.Second)}
	})

	model := opts.Resolved.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	sdkOpts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if authCfg.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(authCfg.BaseURL))
	}
	if isOAuth {
		sdkOpts = append(sdkOpts, option.WithHeader("authorization", "Bearer "+token))
		sdkOpts = append(sdkOpts, option.WithHeader(oauthBetaHeader, oauthBetaValue))
	} else {
		sdkOpts = append(sdkOpts, option.WithAPIKey(token))
	}
	for k, v := range runtimectx.CustomHeaders(nil, nil, opts.Settings.Ephemeral) {
		sdkOpts = append(sdkOpts, option.WithHeader(k, v))
	}

	client := anthropic.NewClient(sdkOpts...)

	tmpl, err := prompt.LoadTemplate("system.txt")
	if err != nil {
		tmpl = defaultSystemTemplate
	}
	systemPrompt := prompt.Compose(tmpl, prompt.BuildVars(model, p.Name(), len(opts.Tools) > 0), opts.UserMemory)

	prepared := content.PrepareForStrictPairing(content.MergeConsecutiveToolResponses(opts.Contents))

	if isOAuth {
		prepared = wrapSystemAsUserPrefix(prepared, systemPrompt)
		systemPrompt = oauthFixedSystemPrompt
	}

	messages := toWireMessages(prepared)

	maxTokens := int64(runtimectx.MaxTokensForModel(model))
	if opts.Resolved.ModelParams.MaxTokens != nil {
		maxTokens = int64(*opts.Resolved.ModelParams.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(maxTokens),
		Messages:  anthropic.F(messages),
	}
	if systemPrompt != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			{Type: anthropic.F(anthropic.TextBlockParamTypeText), Text: anthropic.F(systemPrompt)},
		})
	}
	if t := opts.Resolved.ModelParams.Temperature; t != nil {
		params.Temperature = anthropic.F(*t)
	}
	if t := opts.Resolved.ModelParams.TopP; t != nil {
		params.TopP = anthropic.F(*t)
	}
	if len(opts.Resolved.ModelParams.StopSequences) > 0 {
		params.StopSequences = anthropic.F(opts.Resolved.ModelParams.StopSequences)
	}
	if len(opts.Tools) > 0 {
		params.Tools = anthropic.F(toWireTools(opts.Tools))
	}

	out := make(chan provider.StreamItem)

	if !opts.Settings.StreamingEnabled() {
		go p.runNonStreaming(ctx, client, params, model, out)
		return out, nil
	}

	go p.runStreaming(ctx, client, params, model, out)
	return out, nil
}

func (p *Provider) runNonStreaming(ctx context.Context, client *anthropic.Client, params anthropic.MessageNewParams, model string, out chan<- provider.StreamItem) {
	defer close(out)

	msg, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (*anthropic.Message, error) {
		resp, err := client.Messages.New(ctx, params)
		if err != nil {
			return nil, wrapError(err, p.Name())
		}
		return resp, nil
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
		return
	}

	blocks := make([]content.Block, 0, len(msg.Content))
	for _, b := range msg.Content {
		switch v := b.AsUnion().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, content.TextBlock{Text: v.Text})
		case anthropic.ToolUseBlock:
			blocks = append(blocks, content.ToolCallBlock{
				ID:         toolid.ToCanonical(v.ID),
				Name:       v.Name,
				Parameters: inputAsMap(v.Input),
			})
		}
	}
	if len(blocks) > 0 {
		out <- provider.StreamItem{Content: &content.IContent{Speaker: content.SpeakerAI, Blocks: blocks}}
	}

	usage := content.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	out <- provider.StreamItem{Content: &content.IContent{
		Speaker:  content.SpeakerAI,
		Metadata: &content.Metadata{Usage: &usage, ProviderName: p.Name()},
	}}
}

// runStreaming drives the Anthropic streaming state machine of §4.F.1: a
// tool-use block is assembled across content_block_start/delta/stop and
// yielded whole; text deltas are yielded immediately. Token counts from
// message_start and message_delta are only recorded; one metadata-only
// usage item is yielded after the stream ends, not at the message_delta
// event. The whole attempt (not the individual HTTP
// read) is the retry unit, so a StreamInterruptionError mid-body restarts
// the entire call, per §4.F.3.
func (p *Provider) runStreaming(ctx context.Context, client *anthropic.Client, params anthropic.MessageNewParams, model string, out chan<- provider.StreamItem) {
	defer close(out)

	_, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, p.streamOnce(ctx, client, params, out)
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
	}
}

func (p *Provider) streamOnce(ctx context.Context, client *anthropic.Client, params anthropic.MessageNewParams, out chan<- provider.StreamItem) error {
	stream := client.Messages.NewStreaming(ctx, params)

	var currentToolID, currentToolName, toolArgs string
	var inputTokens, outputTokens int64
	var building bool

	for stream.Next() {
		event := stream.Current()

		switch e := event.AsUnion().(type) {
		case anthropic.MessageStartEvent:
			if e.Message.Usage.InputTokens > 0 {
				inputTokens = e.Message.Usage.InputTokens
			}

		case anthropic.ContentBlockStartEvent:
			if cb, ok := e.ContentBlock.AsUnion().(anthropic.ToolUseBlock); ok {
				currentToolID = cb.ID
				currentToolName = cb.Name
				toolArgs = ""
				building = true
			}

		case anthropic.ContentBlockDeltaEvent:
			switch d := e.Delta.AsUnion().(type) {
			case anthropic.TextDelta:
				select {
				case out <- provider.StreamItem{Content: &content.IContent{
					Speaker: content.SpeakerAI,
					Blocks:  []content.Block{content.TextBlock{Text: d.Text}},
				}}:
				case <-ctx.Done():
					return ctx.Err()
				}
			case anthropic.InputJSONDelta:
				toolArgs += d.PartialJSON
			}

		case anthropic.ContentBlockStopEvent:
			if building {
				select {
				case out <- provider.StreamItem{Content: &content.IContent{
					Speaker: content.SpeakerAI,
					Blocks: []content.Block{content.ToolCallBlock{
						ID:         toolid.ToCanonical(currentToolID),
						Name:       currentToolName,
						Parameters: parseToolArguments(toolArgs),
					}},
				}}:
				case <-ctx.Done():
					return ctx.Err()
				}
				currentToolID, currentToolName, toolArgs = "", "", ""
				building = false
			}

		case anthropic.MessageDeltaEvent:
			if e.Usage.OutputTokens > 0 {
				outputTokens = e.Usage.OutputTokens
			}
		}
	}

	if err := stream.Err(); err != nil {
		return &llmerr.StreamInterruptionError{Details: "anthropic message stream", Cause: wrapError(err, p.Name())}
	}

	usage := content.Usage{
		PromptTokens:     int(inputTokens),
		CompletionTokens: int(outputTokens),
		TotalTokens:      int(inputTokens + outputTokens),
	}
	select {
	case out <- provider.StreamItem{Content: &content.IContent{
		Speaker:  content.SpeakerAI,
		Metadata: &content.Metadata{Usage: &usage, ProviderName: p.Name()},
	}}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// wrapSystemAsUserPrefix implements the OAuth quirk (§4.F step 4): the
// core prompt cannot travel in the `system` field under OAuth, so it is
// prepended as a `<system>...</system>`-wrapped prefix on the first user
// turn instead.
func wrapSystemAsUserPrefix(history []content.IContent, systemPrompt string) []content.IContent {
	if systemPrompt == "" || len(history) == 0 {
		return history
	}
	out := make([]content.IContent, len(history))
	copy(out, history)

	wrapped := "<system>" + systemPrompt + "</system>"
	first := out[0]
	newBlocks := make([]content.Block, 0, len(first.Blocks)+1)
	newBlocks = append(newBlocks, content.TextBlock{Text: wrapped})
	newBlocks = append(newBlocks, first.Blocks...)
	out[0] = content.IContent{Speaker: first.Speaker, Blocks: newBlocks, Metadata: first.Metadata}
	return out
}

func inputAsMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringMeta(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if s, ok := meta[key].(string); ok {
		return s
	}
	return ""
}

func envSet(names []string) bool {
	for _, n := range names {
		if os.Getenv(n) != "" {
			return true
		}
	}
	return false
}
