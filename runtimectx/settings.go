// Package runtimectx defines the capabilities the provider-dispatch core
// consumes from its host application — SettingsService and Config — plus
// the immutable per-call bundles (RuntimeContext, NormalizedGenerateChatOptions)
// that flow through every provider adapter.
//
// Grounded on the teacher's ProviderConfig (options.go/types.go), generalized
// from "one struct per adapter construction" into the spec's split between
// durable settings (SettingsService) and ephemeral, session-scoped
// overrides (Config).
package runtimectx

import "sync"

// ProviderSettings is the durable, provider-scoped settings bundle read
// from a SettingsService.
type ProviderSettings struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	BaseURL     string
	APIKey      string
	ToolFormat  string
}

// SettingsService is the durable, scoped key-value capability the core
// consumes. Implementations must guarantee atomic reads/writes for a
// single key (the provider manager's active-provider scalar relies on
// this).
type SettingsService interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	GetProviderSettings(name string) ProviderSettings
	SetProviderSetting(name, key string, value any)
	ExportForProfile() map[string]any
	ImportFromProfile(snapshot map[string]any)
	SetCurrentProfileName(name string)
}

// Config is the ephemeral-settings + session-accessor capability the core
// consumes.
type Config interface {
	GetModel() string
	GetProvider() string
	GetEphemeralSettings() map[string]any
	GetEphemeralSetting(key string) (any, bool)
	SetEphemeralSetting(key string, value any)
	GetUserMemory() (string, bool)
	RefreshAuth(authType string) error
}

// MemorySettingsService is a concurrency-safe in-memory SettingsService,
// provided as the reference implementation used by tests and by the
// cmd/llxprt smoke-test CLI when no persistent settings file is wired up.
type MemorySettingsService struct {
	mu       sync.RWMutex
	scalars  map[string]any
	provider map[string]ProviderSettings
}

// NewMemorySettingsService constructs an empty MemorySettingsService.
func NewMemorySettingsService() *MemorySettingsService {
	return &MemorySettingsService{
		scalars:  map[string]any{},
		provider: map[string]ProviderSettings{},
	}
}

func (s *MemorySettingsService) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scalars[key]
	return v, ok
}

func (s *MemorySettingsService) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars[key] = value
}

func (s *MemorySettingsService) GetProviderSettings(name string) ProviderSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider[name]
}

func (s *MemorySettingsService) SetProviderSetting(name, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := s.provider[name]
	switch key {
	case "model":
		ps.Model, _ = value.(string)
	case "temperature":
		if f, ok := value.(float64); ok {
			ps.Temperature = &f
		}
	case "maxTokens":
		if i, ok := value.(int); ok {
			ps.MaxTokens = &i
		}
	case "baseUrl":
		ps.BaseURL, _ = value.(string)
	case "apiKey":
		ps.APIKey, _ = value.(string)
	case "toolFormat":
		ps.ToolFormat, _ = value.(string)
	}
	s.provider[name] = ps
}

func (s *MemorySettingsService) ExportForProfile() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.scalars))
	for k, v := range s.scalars {
		out[k] = v
	}
	return out
}

func (s *MemorySettingsService) ImportFromProfile(snapshot map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range snapshot {
		s.scalars[k] = v
	}
}

func (s *MemorySettingsService) SetCurrentProfileName(name string) {
	s.Set("currentProfileName", name)
}

// MemoryConfig is a concurrency-safe in-memory Config reference
// implementation.
type MemoryConfig struct {
	mu         sync.RWMutex
	model      string
	provider   string
	ephemeral  map[string]any
	userMemory string
	hasMemory  bool
}

// NewMemoryConfig constructs a MemoryConfig.
func NewMemoryConfig(model, provider string) *MemoryConfig {
	return &MemoryConfig{model: model, provider: provider, ephemeral: map[string]any{}}
}

func (c *MemoryConfig) GetModel() string    { c.mu.RLock(); defer c.mu.RUnlock(); return c.model }
func (c *MemoryConfig) GetProvider() string { c.mu.RLock(); defer c.mu.RUnlock(); return c.provider }

func (c *MemoryConfig) GetEphemeralSettings() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.ephemeral))
	for k, v := range c.ephemeral {
		out[k] = v
	}
	return out
}

func (c *MemoryConfig) GetEphemeralSetting(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.ephemeral[key]
	return v, ok
}

func (c *MemoryConfig) SetEphemeralSetting(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ephemeral[key] = value
}

func (c *MemoryConfig) GetUserMemory() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userMemory, c.hasMemory
}

// SetUserMemory is a test/CLI helper; the Config interface only exposes
// the getter because the core never writes user memory back.
func (c *MemoryConfig) SetUserMemory(memory string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userMemory = memory
	c.hasMemory = true
}

func (c *MemoryConfig) RefreshAuth(authType string) error { return nil }
