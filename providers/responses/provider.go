package responses

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

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

const defaultBaseURL = "https://api.openai.com/v1"
const defaultSystemTemplate = "You are an assistant accessed through the {{PROVIDER}} provider using {{MODEL}}."

// previousResponseIDKey is the NormalizedGenerateChatOptions.Metadata key a
// caller sets to thread a prior response's ID into this call. The adapter
// never caches this itself — per §5, threading state is the caller's
// responsibility, read fresh from opts.Metadata on every call. It is not
// read from the settings snapshot.
const previousResponseIDKey = "previous_response_id"

// DefaultModels is the list of models offered when the caller registers
// this adapter without an explicit model list.
var DefaultModels = []runtimectx.ModelInfo{
	{ID: "gpt-4.1", Name: "GPT-4.1", Provider: "responses", ContextWindow: 1000000},
	{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini", Provider: "responses", ContextWindow: 1000000},
	{ID: "o4-mini", Name: "o4-mini", Provider: "responses", ContextWindow: 200000},
}

// Config is the construction-time configuration for the Responses adapter.
type Config struct {
	AuthConfig   auth.Config
	DefaultModel string
	Models       []runtimectx.ModelInfo
	BaseURL      string
}

// Provider handles the OpenAI-style Responses API directly over
// net/http, with no vendor SDK in between (see DESIGN.md for why).
type Provider struct {
	cfg   Config
	state *provider.AdapterState
}

// New constructs a Responses-API provider adapter.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4.1-mini"
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels
	}
	if cfg.AuthConfig.Name == "" {
		cfg.AuthConfig.Name = "responses"
	}
	if len(cfg.AuthConfig.APIKeyEnvs) == 0 {
		cfg.AuthConfig.APIKeyEnvs = []string{"OPENAI_API_KEY"}
	}
	return &Provider{cfg: cfg, state: provider.NewAdapterState()}
}

func (p *Provider) Name() string { return "responses" }

func (p *Provider) Models() []runtimectx.ModelInfo { return p.cfg.Models }

func (p *Provider) Capabilities() runtimectx.ProviderCapabilities {
	return runtimectx.ProviderCapabilities{
		SupportsStreaming: true,
		SupportsTools:     true,
		SupportsVision:    true,
		MaxTokens:         32000,
		SupportedFormats:  []string{string(toolid.FormatOpenAI)},
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

	tmpl, err := prompt.LoadTemplate("system.txt")
	if err != nil {
		tmpl = defaultSystemTemplate
	}
	systemPrompt := prompt.Compose(tmpl, prompt.BuildVars(model, p.Name(), len(opts.Tools) > 0), opts.UserMemory)

	prepared := content.PrepareForStrictPairing(opts.Contents)

	req := wireRequest{
		Model:        model,
		Input:        toWireInput(prepared),
		Instructions: systemPrompt,
	}
	if id, ok := opts.Metadata[previousResponseIDKey].(string); ok && id != "" {
		req.PreviousResponseID = id
	}
	if t := opts.Resolved.ModelParams.Temperature; t != nil {
		req.Temperature = t
	}
	if t := opts.Resolved.ModelParams.TopP; t != nil {
		req.TopP = t
	}
	if t := opts.Resolved.ModelParams.MaxTokens; t != nil {
		req.MaxOutputTokens = t
	}
	if len(opts.Tools) > 0 {
		req.Tools = toWireTools(opts.Tools)
	}

	headers := runtimectx.CustomHeaders(nil, nil, opts.Settings.Ephemeral)

	out := make(chan provider.StreamItem)

	if !opts.Settings.StreamingEnabled() {
		req.Stream = false
		go p.runNonStreaming(ctx, httpClient, authCfg.BaseURL, token, headers, req, out)
		return out, nil
	}

	req.Stream = true
	go p.runStreaming(ctx, httpClient, authCfg.BaseURL, token, headers, req, out)
	return out, nil
}

func (p *Provider) runNonStreaming(ctx context.Context, client *http.Client, baseURL, token string, headers map[string]string, wireReq wireRequest, out chan<- provider.StreamItem) {
	defer close(out)

	resp, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (*wireResponse, error) {
		return p.doRequest(ctx, client, baseURL, token, headers, wireReq)
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
		return
	}

	blocks := make([]content.Block, 0, len(resp.Output))
	for _, o := range resp.Output {
		if b := blockFromOutput(o); b != nil {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) > 0 {
		out <- provider.StreamItem{Content: &content.IContent{Speaker: content.SpeakerAI, Blocks: blocks}}
	}

	usage := content.Usage{}
	if resp.Usage != nil {
		usage = content.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	out <- provider.StreamItem{Content: &content.IContent{
		Speaker:  content.SpeakerAI,
		Metadata: &content.Metadata{Usage: &usage, ProviderName: p.Name()},
	}}
}

// doRequest performs one non-streaming HTTP round trip.
func (p *Provider) doRequest(ctx context.Context, client *http.Client, baseURL, token string, headers map[string]string, wireReq wireRequest) (*wireResponse, error) {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, wrapError(err, p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(err, p.Name())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, wrapError(err, p.Name())
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, wrapError(err, p.Name())
	}

	if httpResp.StatusCode != http.StatusOK {
		var wr wireResponse
		_ = json.Unmarshal(respBody, &wr)
		return nil, wrapWireError(p.Name(), httpResp.StatusCode, wr.Error, httpResp.Header.Get("Retry-After"))
	}

	var wr wireResponse
	if err := json.Unmarshal(respBody, &wr); err != nil {
		return nil, wrapError(err, p.Name())
	}
	return &wr, nil
}

// runStreaming drives the Responses-family state machine of §4.F.1:
// response.output_text.delta yields text immediately; response.output_item.done
// carrying a function_call yields the whole tool call; response.completed
// carries the final usage.
func (p *Provider) runStreaming(ctx context.Context, client *http.Client, baseURL, token string, headers map[string]string, wireReq wireRequest, out chan<- provider.StreamItem) {
	defer close(out)

	_, err := retry.Do(ctx, retry.DefaultOptions(), func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, p.streamOnce(ctx, client, baseURL, token, headers, wireReq, out)
	})
	if err != nil {
		out <- provider.StreamItem{Err: err}
	}
}

func (p *Provider) streamOnce(ctx context.Context, client *http.Client, baseURL, token string, headers map[string]string, wireReq wireRequest, out chan<- provider.StreamItem) error {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return wrapError(err, p.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return wrapError(err, p.Name())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return wrapError(err, p.Name())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		var wr wireResponse
		_ = json.Unmarshal(respBody, &wr)
		return wrapWireError(p.Name(), httpResp.StatusCode, wr.Error, httpResp.Header.Get("Retry-After"))
	}

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var usage content.Usage
	sawUsage := false

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		ev, err := parseWireEvent([]byte(payload))
		if err != nil {
			continue
		}

		switch ev.Type {
		case "response.output_text.delta":
			if ev.Delta == "" {
				continue
			}
			select {
			case out <- provider.StreamItem{Content: &content.IContent{
				Speaker: content.SpeakerAI,
				Blocks:  []content.Block{content.TextBlock{Text: ev.Delta}},
			}}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case "response.output_item.done":
			if ev.Item == nil {
				continue
			}
			b := blockFromOutput(*ev.Item)
			if b == nil {
				continue
			}
			select {
			case out <- provider.StreamItem{Content: &content.IContent{Speaker: content.SpeakerAI, Blocks: []content.Block{b}}}:
			case <-ctx.Done():
				return ctx.Err()
			}

		case "response.completed":
			if ev.Response != nil && ev.Response.Usage != nil {
				usage = content.Usage{
					PromptTokens:     ev.Response.Usage.InputTokens,
					CompletionTokens: ev.Response.Usage.OutputTokens,
					TotalTokens:      ev.Response.Usage.TotalTokens,
				}
				sawUsage = true
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return &llmerr.StreamInterruptionError{Details: "responses stream", Cause: wrapError(err, p.Name())}
	}

	if !sawUsage {
		usage = content.Usage{}
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
