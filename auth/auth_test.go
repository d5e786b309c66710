package auth

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxprt/core/llmerr"
)

func TestResolve_ExplicitKeyWins(t *testing.T) {
	r := NewResolver()
	tok, err := r.Resolve(context.Background(), Config{
		Name:        "anthropic",
		ExplicitKey: "sk-explicit",
		APIKeyEnvs:  []string{"ANTHROPIC_API_KEY"},
	}, "runtime-a")

	require.NoError(t, err)
	assert.Equal(t, "sk-explicit", tok)
}

func TestResolve_FallsBackToEnv(t *testing.T) {
	os.Setenv("LLXPRT_TEST_KEY", "sk-env")
	defer os.Unsetenv("LLXPRT_TEST_KEY")

	r := NewResolver()
	tok, err := r.Resolve(context.Background(), Config{
		Name:       "openai",
		APIKeyEnvs: []string{"LLXPRT_TEST_KEY"},
	}, "runtime-a")

	require.NoError(t, err)
	assert.Equal(t, "sk-env", tok)
}

type fakeOAuth struct{ token string }

func (f *fakeOAuth) GetValidToken(ctx context.Context, providerName string) (string, error) {
	return f.token, nil
}

func TestResolve_FallsBackToOAuth(t *testing.T) {
	r := NewResolver()
	tok, err := r.Resolve(context.Background(), Config{
		Name:         "anthropic",
		OAuthManager: &fakeOAuth{token: "oauth-token"},
	}, "runtime-a")

	require.NoError(t, err)
	assert.Equal(t, "oauth-token", tok)
}

func TestResolve_NoCredentialReturnsAuthError(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), Config{Name: "openai"}, "runtime-a")

	var authErr *llmerr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "openai", authErr.ProviderName)
}

func TestResolve_CachedPerRuntimeNotShared(t *testing.T) {
	r := NewResolver()
	cfg := Config{Name: "openai", ExplicitKey: "sk-a"}
	tokA, err := r.Resolve(context.Background(), cfg, "runtime-a")
	require.NoError(t, err)
	assert.Equal(t, "sk-a", tokA)

	cfg.ExplicitKey = "sk-b"
	tokB, err := r.Resolve(context.Background(), cfg, "runtime-b")
	require.NoError(t, err)
	assert.Equal(t, "sk-b", tokB)

	r.ClearCache("runtime-a")
	// runtime-b's cached credential must survive clearing runtime-a.
	cfg.ExplicitKey = "sk-changed"
	tokBAfter, err := r.Resolve(context.Background(), cfg, "runtime-b")
	require.NoError(t, err)
	assert.Equal(t, "sk-b", tokBAfter)
}
