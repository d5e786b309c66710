// Package manager implements the Provider Manager (§4.E): the name →
// provider registry, the active-provider state machine backed by
// SettingsService, per-call RuntimeContext snapshotting, and session
// token accounting.
//
// Grounded on the teacher's router.go (Router: providers map, modelMap,
// middleware chain, RegisterProvider/SetFallbacks), generalized from
// model-name routing to the spec's named-provider selection plus fallback
// ladder.
package manager

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/llxprt/core/llmerr"
	"github.com/llxprt/core/middleware"
	"github.com/llxprt/core/provider"
	"github.com/llxprt/core/runtimectx"
)

// breakerFailureThreshold and breakerCooldown tune the circuit breaker every
// registered provider is wrapped with (§4.A: the breaker guards dispatch,
// short-circuiting before any retry attempt inside the adapter).
const (
	breakerFailureThreshold = 5
	breakerCooldown         = 30 * time.Second
)

// state is the active-provider state machine of §4.E: unset or active(name).
type state struct {
	isSet bool
	name  string
}

// ProviderManager owns the provider registry and the active-provider
// selection, and is the only component that mutates active-provider state.
type ProviderManager struct {
	mu sync.RWMutex

	providers map[string]provider.Provider
	decorated map[string]provider.Provider // logging/metrics-wrapped views

	active state

	serverToolsProvider string // pinned adapter name whose auth is never cleared on switch

	settings runtimectx.SettingsService
	config   runtimectx.Config
	logger   zerolog.Logger

	tokens *sessionTokens

	onProviderSwitch func(from, to string)
}

// New constructs a ProviderManager bound to the given SettingsService and
// Config capabilities.
func New(settings runtimectx.SettingsService, cfg runtimectx.Config, logger zerolog.Logger) *ProviderManager {
	return &ProviderManager{
		providers: map[string]provider.Provider{},
		decorated: map[string]provider.Provider{},
		settings:  settings,
		config:    cfg,
		logger:    logger,
		tokens:    newSessionTokens(),
	}
}

// OnProviderSwitch registers a callback invoked after setActiveProvider
// successfully changes the active provider (the "provider-switch event"
// of §4.E).
func (m *ProviderManager) OnProviderSwitch(fn func(from, to string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProviderSwitch = fn
}

// SetServerToolsProvider pins a provider name whose auth state is not
// cleared on switches away from it.
func (m *ProviderManager) SetServerToolsProvider(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverToolsProvider = name
}

func (m *ProviderManager) GetServerToolsProvider() (provider.Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[m.serverToolsProvider]
	return p, ok
}

// RegisterProvider adds a provider to the registry, wrapping it with the
// logging/metrics decorator. If isDefault is true and no provider is
// currently active, it becomes the active provider.
func (m *ProviderManager) RegisterProvider(p provider.Provider, isDefault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers[p.Name()] = p
	logged := newLoggingDecorator(p, m.logger, m.tokens)
	breaker := middleware.NewCircuitBreakerMiddleware(p.Name(), breakerFailureThreshold, breakerCooldown)
	m.decorated[p.Name()] = breaker.Wrap(logged)

	if isDefault && !m.active.isSet {
		m.active = state{isSet: true, name: p.Name()}
		m.settings.Set("activeProvider", p.Name())
	}
}

// ListProviders returns every registered provider name.
func (m *ProviderManager) ListProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}

// SetActiveProvider implements the §4.E transition: errors on an unknown
// name; otherwise clears the outgoing provider's state (unless it is the
// pinned server-tools provider), fires the switch event, and persists the
// new name to settings.
func (m *ProviderManager) SetActiveProvider(name string) error {
	m.mu.Lock()

	if _, ok := m.providers[name]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", llmerr.ErrUnknownProvider, name)
	}

	previous := ""
	if m.active.isSet {
		previous = m.active.name
	}

	if previous != "" && previous != m.serverToolsProvider {
		if p, ok := m.providers[previous]; ok {
			p.ClearState()
		}
	}

	m.active = state{isSet: true, name: name}
	m.settings.Set("activeProvider", name)
	cb := m.onProviderSwitch
	m.mu.Unlock()

	if cb != nil {
		cb(previous, name)
	}
	return nil
}

// ClearActiveProvider resets the state machine to unset.
func (m *ProviderManager) ClearActiveProvider() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = state{}
}

// GetActiveProvider implements the §4.E fallback ladder:
// settings.activeProvider → config.getProvider() → "openai" → first
// registered. A name resolved by the fallback ladder is written back to
// settings before return.
func (m *ProviderManager) GetActiveProvider() (provider.Provider, error) {
	m.mu.RLock()
	if m.active.isSet {
		p, ok := m.decorated[m.active.name]
		m.mu.RUnlock()
		if ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %s", llmerr.ErrUnknownProvider, m.active.name)
	}
	m.mu.RUnlock()

	candidates := m.fallbackCandidates()
	for _, name := range candidates {
		if name == "" {
			continue
		}
		m.mu.RLock()
		p, ok := m.decorated[name]
		m.mu.RUnlock()
		if ok {
			m.mu.Lock()
			m.active = state{isSet: true, name: name}
			m.mu.Unlock()
			m.settings.Set("activeProvider", name)
			return p, nil
		}
	}

	return nil, llmerr.ErrNoProviders
}

func (m *ProviderManager) fallbackCandidates() []string {
	var out []string
	if v, ok := m.settings.Get("activeProvider"); ok {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if m.config != nil {
		out = append(out, m.config.GetProvider())
	}
	out = append(out, "openai")

	m.mu.RLock()
	for name := range m.decorated {
		out = append(out, name)
	}
	m.mu.RUnlock()

	return out
}

// GetProvider returns a registered provider by name without affecting
// active-provider state.
func (m *ProviderManager) GetProvider(name string) (provider.Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.decorated[name]
	return p, ok
}

// GetAvailableModels returns the models offered by the named provider, or
// by the active provider when name is empty.
func (m *ProviderManager) GetAvailableModels(name string) ([]runtimectx.ModelInfo, error) {
	var p provider.Provider
	var err error
	if name == "" {
		p, err = m.GetActiveProvider()
	} else {
		var ok bool
		p, ok = m.GetProvider(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", llmerr.ErrUnknownProvider, name)
		}
	}
	if err != nil {
		return nil, err
	}
	return p.Models(), nil
}

// GetProviderCapabilities returns the capability descriptor for the named
// provider, or the active provider when name is empty.
func (m *ProviderManager) GetProviderCapabilities(name string) (runtimectx.ProviderCapabilities, error) {
	var p provider.Provider
	var err error
	if name == "" {
		p, err = m.GetActiveProvider()
	} else {
		var ok bool
		p, ok = m.GetProvider(name)
		if !ok {
			return runtimectx.ProviderCapabilities{}, fmt.Errorf("%w: %s", llmerr.ErrUnknownProvider, name)
		}
	}
	if err != nil {
		return runtimectx.ProviderCapabilities{}, err
	}
	return p.Capabilities(), nil
}

// CompareProviders reports whether two providers share identical
// capability descriptors, a convenience used by CLIs picking a fallback.
func (m *ProviderManager) CompareProviders(a, b string) (bool, error) {
	capA, err := m.GetProviderCapabilities(a)
	if err != nil {
		return false, err
	}
	capB, err := m.GetProviderCapabilities(b)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(capA, capB), nil
}

// SnapshotRuntimeContext constructs a fresh RuntimeContext per call: its
// RuntimeID is a derivative of a base identifier plus a short random
// suffix, carrying per-call metadata (source tag, timestamp). Missing
// settings or config at snapshot time is fatal.
func (m *ProviderManager) SnapshotRuntimeContext(source string, baseRuntimeID string, now int64) (runtimectx.RuntimeContext, error) {
	var missing []string
	if m.settings == nil {
		missing = append(missing, "settings")
	}
	if m.config == nil {
		missing = append(missing, "config")
	}
	if len(missing) > 0 {
		return runtimectx.RuntimeContext{}, &llmerr.MissingProviderRuntimeError{
			ProviderKey:   source,
			MissingFields: missing,
			Stage:         "snapshotRuntimeContext",
		}
	}

	suffix := uuid.New().String()[:8]
	runtimeID := baseRuntimeID
	if runtimeID == "" {
		runtimeID = "runtime"
	}
	runtimeID = runtimeID + "-" + suffix

	return runtimectx.RuntimeContext{
		Settings:  m.settings,
		Config:    m.config,
		RuntimeID: runtimeID,
		Metadata: map[string]any{
			"source":    source,
			"timestamp": now,
		},
	}, nil
}

// AccumulateSessionTokens adds usage to the session accumulator, clamping
// negative components to zero.
func (m *ProviderManager) AccumulateSessionTokens(providerName string, usage TokenUsage) {
	m.tokens.accumulate(providerName, usage)
}

// GetSessionTokenUsage returns the eventually-consistent session totals.
func (m *ProviderManager) GetSessionTokenUsage() TokenUsage {
	return m.tokens.totals()
}

// ResetSessionTokenUsage zeroes the session accumulator.
func (m *ProviderManager) ResetSessionTokenUsage() {
	m.tokens.reset()
}

// Dispatch resolves the active provider and runs a chat completion call
// against it. opts, including opts.Runtime, is passed through as given;
// source is not used.
func (m *ProviderManager) Dispatch(ctx context.Context, source string, opts runtimectx.NormalizedGenerateChatOptions) (<-chan provider.StreamItem, error) {
	p, err := m.GetActiveProvider()
	if err != nil {
		return nil, err
	}
	return p.GenerateChatCompletion(ctx, opts)
}
