// Package openai implements the OpenAI Chat Completions adapter (§4.F) and
// the OpenAI-compatible presets (deepseek, groq, together, ollama) that
// speak the same wire format against a different base URL, grounded on the
// teacher's providers/openai package: same SDK (openai-go), same preset
// table shape, generalized from a single Request/Event pair to
// NormalizedGenerateChatOptions and a canonical IContent stream.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

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

const defaultSystemTemplate = "You are an assistant accessed through the {{PROVIDER}} provider using {{MODEL}}."

// preset describes one OpenAI-compatible backend's defaults.
type preset struct {
	BaseURL      string
	DefaultModel string
	Models       []string
	APIKeyEnv    string
}

// Presets contains the default configuration for every OpenAI-compatible
// backend this adapter can speak to, grounded on the teacher's Presets
// table and extended with the env var each backend's key normally lives
// in, so auth.Config.APIKeyEnvs can be built without a caller repeating it.
var Presets = map[string]preset{
	"openai": {
		BaseURL:      "https://api.openai.com/v1/",
		DefaultModel: "gpt-4.1-mini",
		Models:       []string{"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano", "gpt-4o", "gpt-4o-mini", "o4-mini"},
		APIKeyEnv:    "OPENAI_API_KEY",
	},
	"deepseek": {
		BaseURL:      "https://api.deepseek.com/",
		DefaultModel: "deepseek-chat",
		Models:       []string{"deepseek-chat", "deepseek-coder"},
		APIKeyEnv:    "DEEPSEEK_API_KEY",
	},
	"groq": {
		BaseURL:      "https://api.groq.com/openai/v1/",
		DefaultModel: "llama-3.3-70b-versatile",
		Models:       []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant", "mixtral-8x7b-32768"},
		APIKeyEnv:    "GROQ_API_KEY",
	},
	"together": {
		BaseURL:      "https://api.together.xyz/v1/",
		DefaultModel: "meta-llama/Llama-3.3-70B-Instruct-Turbo",
		Models:       []string{"meta-llama/Llama-3.3-70B-Instruct-Turbo", "mistralai/Mixtral-8x7B-Instruct-v0.1"},
		APIKeyEnv:    "TOGETHER_API_KEY",
	},
	"ollama": {
		BaseURL:      "http://localhost:11434/v1/",
		DefaultModel: "llama3.2",
		Models:       []string{},
		APIKeyEnv:    "OLLAMA_API_KEY",
	},
}

// Config is the construction-time configuration for an OpenAI-family
// adapter instance. PresetName selects the wire endpoint defaults; explicit
// fields override the preset.
type Config struct {
	PresetName   string
	AuthConfig   auth.Config
	DefaultModel string
	Models       []runtimectx.ModelInfo
	BaseURL      string
}

// Provider handles the OpenAI Chat Completions API and any
// OpenAI-compatible backend reachable through the same wire format.
type Provider struct {
	cfg   Config
	state *provider.AdapterState
}

// New constructs an OpenAI-family provider adapter for the given preset
// name ("openai", "deepseek", "groq", "together", "ollama", or "" for a
// bespoke OpenAI-compatible endpoint supplied entirely through Config).
func New(cfg Config) *Provider {
	if cfg.PresetName == "" {
		cfg.PresetName = "openai"
	}
	pr := Presets[cfg.PresetName]

	if cfg.BaseURL == "" {
		cfg.BaseURL = pr.BaseURL
	}
	if cfg.BaseURL != "" && !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = pr.DefaultModel
	}
	if len(cfg.Models) == 0 {
		for _, id := range pr.Models {
			cfg.Models = append(cfg.Models, runtimectx.ModelInfo{ID: id, Name: id, Provider: cfg.PresetName})
		}
	}
	if cfg.AuthConfig.Name == "" {
		cfg.AuthConfig.Name = cfg.PresetName
	}
	if len(cfg.AuthConfig.APIKeyEnvs) == 0 && pr.APIKeyEnv != "" {
		cfg.AuthConfig.APIKeyEnvs = []string{pr.APIKeyEnv}
	}

	return &Provider{cfg: cfg, state: provider.NewAdapterState()}
}

func (p *Provider) Name() string { return p.cfg.PresetName }

func (p *Provider) Models() []runtimectx.ModelInfo { return p.cfg.Models }

func (p *Provider) Capabilities() runtimectx.ProviderCapabilities {
	return runtimectx.ProviderCapabilities{
		SupportsStreaming: true,
		SupportsTools:     true,
		SupportsVision:    p.cfg.PresetName == "openai",
		MaxTokens:         32000,
		SupportedFormats:  []string{string(toolid.FormatOpenAI), string(toolid.FormatQwen)},
		HasModelSelection: true,
		HasAPIKeyConfig:   true,
		HasBaseURLConfig:  true,
		SupportsPaidMode:  p.cfg.PresetName != "ollama",
	}
}

func (p *Provider) ClearState() { p.state.Clear() }

func (p *Provider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	authCfg := p.cfg.AuthConfig
	authCfg.BaseURL = firstNonEmpty(opts.Resolved.BaseURL, p.cfg.BaseURL)
	authCfg.ExplicitKey = opts.Resolved.AuthToken

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

	sdkOpts := []option.RequestOption{option.WithHTTPClient(httpClient), option.WithAPIKey(token)}
	if authCfg.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(authCfg.BaseURL))
	}
	for k, v := range runtimectx.CustomHeaders(nil, nil, opts.Settings.Ephemeral) {
		sdkOpts = append(sdkOpts, option.WithHeader(k, v))
	}

	client := openai.NewClient(sdkOpts...)

	tmpl, err := prompt.LoadTemplate("system.txt")
	if err != nil {
		tmpl = defaultSystemTemplate
	}
	systemPrompt := prompt.Compose(tmpl, prompt.BuildVars(model, p.Name(), len(opts.Tools) > 0), opts.UserMemory)

	prepared := content.PrepareForStrictPairing(opts.Contents)
	messages := toWireMessages(prepared, systemPrompt)

	params := openai.ChatCompletionNewParams{
		Model:    openai.F(model),
		Messages: openai.F(messages),
	}
	if t := opts.Resolved.ModelParams.Temperature; t != nil {
		params.Temperature = openai.F(*t)
	}
	if t := opts.Resolved.ModelParams.TopP; t != nil {
		params.TopP = openai.F(*t)
	}
	if t := opts.Resolved.ModelParams.MaxTokens; t != nil {
		params.MaxCompletionTokens = openai.F(int64(*t))
	}
	if len(opts.Resolved.ModelParams.StopSequences) > 0 {
		params.Stop = openai.F[openai.ChatCompletionNewParamsStopUnion](openai.ChatCompletionNewParamsStopArray(opts.Resolved.ModelParams.StopSequences))
	}
	if len(opts.Tools) > 0 {
		params.Tools = openai.F(toWireTools(opts.Tools))
	}

	out := make(chan provider.StreamItem)

	if !opts.Settings.StreamingEnabled() {
		go p.runNonStreaming(ctx, client, params, out)
		return out, nil
	}

	go p.runStreaming(ctx, client, params, out)
	return out, nil
}

func (p *Provider) runNonStreaming(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, out chan<- provider.StreamItem) {
	defer close(out)

	resp, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (*openai.ChatCompletion, error) {
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, wrapError(err, p.Name())
		}
		return resp, nil
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
		return
	}
	if len(resp.Choices) == 0 {
		out <- provider.StreamItem{Err: &llmerr.ApiError{Provider: p.Name(), Message: "no choices returned"}}
		return
	}

	msg := resp.Choices[0].Message
	blocks := make([]content.Block, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		blocks = append(blocks, content.TextBlock{Text: msg.Content})
	}
	for _, tc := range msg.ToolCalls {
		blocks = append(blocks, content.ToolCallBlock{
			ID:         toolid.ToCanonical(tc.ID),
			Name:       tc.Function.Name,
			Parameters: parseToolArguments(tc.Function.Arguments),
		})
	}
	if len(blocks) > 0 {
		out <- provider.StreamItem{Content: &content.IContent{Speaker: content.SpeakerAI, Blocks: blocks}}
	}

	usage := content.Usage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	out <- provider.StreamItem{Content: &content.IContent{
		Speaker:  content.SpeakerAI,
		Metadata: &content.Metadata{Usage: &usage, ProviderName: p.Name()},
	}}
}

// runStreaming drives the OpenAI streaming state machine (§4.F.2): text
// deltas are yielded immediately; tool-call argument fragments arrive
// indexed and are accumulated in order-of-first-appearance until the
// stream ends, then yielded whole, matching the wire family's lack of an
// explicit "tool call complete" event.
func (p *Provider) runStreaming(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, out chan<- provider.StreamItem) {
	defer close(out)

	_, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, p.streamOnce(ctx, client, params, out)
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
	}
}

func (p *Provider) streamOnce(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, out chan<- provider.StreamItem) error {
	stream := client.Chat.Completions.NewStreaming(ctx, params)

	pending := map[int64]*pendingToolCall{}
	var order []int64
	var promptTokens, completionTokens int64

	for stream.Next() {
		chunk := stream.Current()

		if chunk.Usage.TotalTokens > 0 {
			promptTokens = chunk.Usage.PromptTokens
			completionTokens = chunk.Usage.CompletionTokens
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			select {
			case out <- provider.StreamItem{Content: &content.IContent{
				Speaker: content.SpeakerAI,
				Blocks:  []content.Block{content.TextBlock{Text: delta.Content}},
			}}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, tc := range delta.ToolCalls {
			pc, ok := pending[tc.Index]
			if !ok {
				pc = &pendingToolCall{}
				pending[tc.Index] = pc
				order = append(order, tc.Index)
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args += tc.Function.Arguments
		}
	}

	if err := stream.Err(); err != nil {
		return &llmerr.StreamInterruptionError{Details: "openai chat completion stream", Cause: wrapError(err, p.Name())}
	}

	for _, idx := range order {
		pc := pending[idx]
		select {
		case out <- provider.StreamItem{Content: &content.IContent{
			Speaker: content.SpeakerAI,
			Blocks: []content.Block{content.ToolCallBlock{
				ID:         toolid.ToCanonical(pc.id),
				Name:       pc.name,
				Parameters: parseToolArguments(pc.args),
			}},
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	usage := content.Usage{
		PromptTokens:     int(promptTokens),
		CompletionTokens: int(completionTokens),
		TotalTokens:      int(promptTokens + completionTokens),
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
