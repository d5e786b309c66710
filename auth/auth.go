// Package auth implements the precedence-ordered credential resolver of
// §4.C: explicit key argument, then provider env vars, then an OAuth
// token, cached per call but never shared across runtime contexts with
// different RuntimeIDs.
//
// Grounded on the teacher's env-var-only resolution (providers/*/provider.go
// NewFromEnv constructors) generalized to the full precedence ladder, and
// on the OAuthTokenManager shape used in jholhewres-goclaw__llm.go.
package auth

import (
	"context"
	"os"
	"sync"

	"github.com/llxprt/core/llmerr"
)

// OAuthTokenManager is the interface for OAuth token management consulted
// by the resolver as the last-resort credential source. Grounded on the
// OAuthTokenManager shape used in jholhewres-goclaw__llm.go.
type OAuthTokenManager interface {
	GetValidToken(ctx context.Context, providerName string) (string, error)
}

// Config holds the construction-time configuration a provider adapter
// passes to the resolver, generalizing the teacher's ProviderConfig with
// the auth precedence and OAuth fields §4.C requires.
type Config struct {
	Name         string
	APIKeyEnvs   []string // env var names checked in precedence order
	ExplicitKey  string
	OAuthManager OAuthTokenManager
	BaseURL      string
	DefaultModel string
}

// Resolver resolves and caches credentials per (providerName, runtimeID).
type Resolver struct {
	mu    sync.RWMutex
	cache map[cacheKey]string
}

type cacheKey struct {
	provider  string
	runtimeID string
}

// NewResolver constructs an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{cache: map[cacheKey]string{}}
}

// Resolve returns the first non-empty credential in precedence order:
// explicit key, provider env vars, OAuth token. The result is cached for
// the given (providerName, runtimeID) pair.
func (r *Resolver) Resolve(ctx context.Context, cfg Config, runtimeID string) (string, error) {
	key := cacheKey{provider: cfg.Name, runtimeID: runtimeID}

	r.mu.RLock()
	if tok, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return tok, nil
	}
	r.mu.RUnlock()

	tok, err := resolveUncached(ctx, cfg)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[key] = tok
	r.mu.Unlock()

	return tok, nil
}

func resolveUncached(ctx context.Context, cfg Config) (string, error) {
	if cfg.ExplicitKey != "" {
		return cfg.ExplicitKey, nil
	}

	for _, envName := range cfg.APIKeyEnvs {
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
	}

	if cfg.OAuthManager != nil {
		tok, err := cfg.OAuthManager.GetValidToken(ctx, cfg.Name)
		if err == nil && tok != "" {
			return tok, nil
		}
	}

	return "", &llmerr.AuthError{
		ProviderName: cfg.Name,
		Hint:         "set an API key explicitly, via " + envHint(cfg.APIKeyEnvs) + ", or sign in with OAuth to re-authenticate",
	}
}

func envHint(envs []string) string {
	if len(envs) == 0 {
		return "a provider-specific environment variable"
	}
	out := envs[0]
	for _, e := range envs[1:] {
		out += " or " + e
	}
	return out
}

// ClearCache invalidates every cached credential tied to runtimeID, across
// all providers. It does not touch any HTTP client cache; that is the
// separate httpcache.Cache.Evict call.
func (r *Resolver) ClearCache(runtimeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cache {
		if k.runtimeID == runtimeID {
			delete(r.cache, k)
		}
	}
}
