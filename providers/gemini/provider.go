// Package gemini implements the Gemini-family generative API adapter
// (§4.F), grounded on the teacher's providers/gemini package: same SDK
// (generative-ai-go/genai), same chat/history shape, generalized from a
// single Request/Event pair to NormalizedGenerateChatOptions and a
// canonical IContent stream. Gemini is also the adapter §3's
// serverToolsProvider pinning is aimed at, so its ClearState is invoked far
// less often than the other wire families in practice.
package gemini

import (
	"context"
	"net/http"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

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

const defaultMaxOutputTokens = 16384

// DefaultModels is the list of Gemini models offered when the caller
// registers this adapter without an explicit model list.
var DefaultModels = []runtimectx.ModelInfo{
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: "gemini", ContextWindow: 2000000},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: "gemini", ContextWindow: 1000000},
	{ID: "gemini-2.0-flash-exp", Name: "Gemini 2.0 Flash", Provider: "gemini", ContextWindow: 1000000},
}

// Config is the construction-time configuration for the Gemini adapter.
type Config struct {
	AuthConfig   auth.Config
	DefaultModel string
	Models       []runtimectx.ModelInfo
}

// Provider handles the Gemini generative API.
type Provider struct {
	cfg   Config
	state *provider.AdapterState
}

// New constructs a Gemini provider adapter.
func New(cfg Config) *Provider {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-1.5-flash"
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.AuthConfig.Name == "" {
		cfg.AuthConfig.Name = "gemini"
	}
	if len(cfg.AuthConfig.APIKeyEnvs) == 0 {
		cfg.AuthConfig.APIKeyEnvs = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	return &Provider{cfg: cfg, state: provider.NewAdapterState()}
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Models() []runtimectx.ModelInfo { return p.cfg.Models }

func (p *Provider) Capabilities() runtimectx.ProviderCapabilities {
	return runtimectx.ProviderCapabilities{
		SupportsStreaming: true,
		SupportsTools:     true,
		SupportsVision:    true,
		MaxTokens:         defaultMaxOutputTokens,
		SupportedFormats:  []string{string(toolid.FormatGemini)},
		HasModelSelection: true,
		HasAPIKeyConfig:   true,
		HasBaseURLConfig:  false,
		SupportsPaidMode:  true,
	}
}

func (p *Provider) ClearState() { p.state.Clear() }

func (p *Provider) GenerateChatCompletion(ctx context.Context, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	authCfg := p.cfg.AuthConfig
	authCfg.ExplicitKey = opts.Resolved.AuthToken

	token, err := p.state.Resolver().Resolve(ctx, authCfg, opts.Runtime.RuntimeID)
	if err != nil {
		return nil, err
	}

	key := httpcache.BuildKey(opts.Runtime.RuntimeID, stringMeta(opts.Runtime.Metadata, "runtimeId"), "", "gemini", token)
	httpClient := p.state.HTTPCache().GetOrCreate(key, func() *http.Client {
		return &http.Client{Timeout: opts.Settings.SocketTimeout(60 * time.Second)}
	})

	client, err := genai.NewClient(ctx, option.WithAPIKey(token), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, wrapError(err, p.Name())
	}

	model := opts.Resolved.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	gm := client.GenerativeModel(model)
	configureModel(gm, opts)
	if len(opts.Tools) > 0 {
		gm.Tools = toWireTools(opts.Tools)
	}

	tmpl, err := prompt.LoadTemplate("system.txt")
	if err != nil {
		tmpl = defaultSystemTemplate
	}
	systemPrompt := prompt.Compose(tmpl, prompt.BuildVars(model, p.Name(), len(opts.Tools) > 0), opts.UserMemory)
	if systemPrompt != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	prepared := content.PrepareForStrictPairing(opts.Contents)
	history, lastMsg := toWireHistory(prepared)

	chat := gm.StartChat()
	chat.History = history

	out := make(chan provider.StreamItem)

	if !opts.Settings.StreamingEnabled() {
		go p.runNonStreaming(ctx, client, chat, lastMsg, out)
		return out, nil
	}

	go p.runStreaming(ctx, client, chat, lastMsg, out)
	return out, nil
}

func (p *Provider) runNonStreaming(ctx context.Context, client *genai.Client, chat *genai.ChatSession, lastMsg string, out chan<- provider.StreamItem) {
	defer close(out)
	defer client.Close()

	resp, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (*genai.GenerateContentResponse, error) {
		resp, err := chat.SendMessage(ctx, genai.Text(lastMsg))
		if err != nil {
			return nil, wrapError(err, p.Name())
		}
		return resp, nil
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
		return
	}

	var blocks []content.Block
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		blocks = blocksFromParts(resp.Candidates[0].Content.Parts)
	}
	if len(blocks) > 0 {
		out <- provider.StreamItem{Content: &content.IContent{Speaker: content.SpeakerAI, Blocks: blocks}}
	}

	var usage content.Usage
	if resp.UsageMetadata != nil {
		usage = content.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	out <- provider.StreamItem{Content: &content.IContent{
		Speaker:  content.SpeakerAI,
		Metadata: &content.Metadata{Usage: &usage, ProviderName: p.Name()},
	}}
}

func (p *Provider) runStreaming(ctx context.Context, client *genai.Client, chat *genai.ChatSession, lastMsg string, out chan<- provider.StreamItem) {
	defer close(out)
	defer client.Close()

	_, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, p.streamOnce(ctx, chat, lastMsg, out)
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
	}
}

func (p *Provider) streamOnce(ctx context.Context, chat *genai.ChatSession, lastMsg string, out chan<- provider.StreamItem) error {
	iter := chat.SendMessageStream(ctx, genai.Text(lastMsg))

	var promptTokens, completionTokens int32

	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return &llmerr.StreamInterruptionError{Details: "gemini generate content stream", Cause: wrapError(err, p.Name())}
		}

		if resp.UsageMetadata != nil {
			promptTokens = resp.UsageMetadata.PromptTokenCount
			completionTokens = resp.UsageMetadata.CandidatesTokenCount
		}

		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			blocks := blocksFromParts(candidate.Content.Parts)
			if len(blocks) == 0 {
				continue
			}
			select {
			case out <- provider.StreamItem{Content: &content.IContent{Speaker: content.SpeakerAI, Blocks: blocks}}:
			case <-ctx.Done():
				return ctx.Err()
			}
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

func configureModel(model *genai.GenerativeModel, opts runtimectx.NormalizedGenerateChatOptions) {
	if t := opts.Resolved.ModelParams.Temperature; t != nil {
		temp := float32(*t)
		model.Temperature = &temp
	}
	maxTokens := int32(defaultMaxOutputTokens)
	if t := opts.Resolved.ModelParams.MaxTokens; t != nil {
		maxTokens = int32(*t)
	}
	model.MaxOutputTokens = &maxTokens
	if t := opts.Resolved.ModelParams.TopP; t != nil {
		topP := float32(*t)
		model.TopP = &topP
	}
	if len(opts.Resolved.ModelParams.StopSequences) > 0 {
		model.StopSequences = opts.Resolved.ModelParams.StopSequences
	}
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
