package provider

import (
	"sync"

	"github.com/llxprt/core/auth"
	"github.com/llxprt/core/httpcache"
)

// AdapterState is the mutable state every concrete adapter owns: its own
// auth cache and HTTP client cache. Per §3 "Lifecycle", this is the only
// mutable state a provider adapter instance carries — no conversation
// state. ClearState wipes both caches wholesale, which is what the
// provider manager calls when switching away from a non-pinned provider.
type AdapterState struct {
	mu        sync.RWMutex
	resolver  *auth.Resolver
	httpCache *httpcache.Cache
}

// NewAdapterState constructs a fresh, empty AdapterState.
func NewAdapterState() *AdapterState {
	return &AdapterState{
		resolver:  auth.NewResolver(),
		httpCache: httpcache.New(),
	}
}

// Resolver returns the current auth resolver.
func (s *AdapterState) Resolver() *auth.Resolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}

// HTTPCache returns the current HTTP client cache.
func (s *AdapterState) HTTPCache() *httpcache.Cache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.httpCache
}

// Clear replaces both caches with fresh, empty ones.
func (s *AdapterState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver = auth.NewResolver()
	s.httpCache = httpcache.New()
}
