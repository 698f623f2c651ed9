package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingVault struct {
	*MemorySecretVault
	calls int
}

func (v *countingVault) GetOAuthToken(ctx context.Context, name, toolKey string) (OAuthToken, bool, error) {
	v.calls++
	return v.MemorySecretVault.GetOAuthToken(ctx, name, toolKey)
}

func TestCachingSecretVaultHidesRepeatLookups(t *testing.T) {
	backing := &countingVault{MemorySecretVault: NewMemorySecretVault()}
	backing.PutOAuthToken("github", "repo.read", OAuthToken{AccessToken: "tok"})

	cached := NewCachingSecretVault(backing, time.Minute)

	tok, ok, err := cached.GetOAuthToken(context.Background(), "github", "repo.read")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, 1, backing.calls)

	tok, ok, err = cached.GetOAuthToken(context.Background(), "github", "repo.read")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", tok.AccessToken)
	assert.Equal(t, 1, backing.calls, "second lookup should be served from cache")
}

func TestCachingSecretVaultDistinguishesKeys(t *testing.T) {
	backing := &countingVault{MemorySecretVault: NewMemorySecretVault()}
	backing.PutOAuthToken("github", "repo.read", OAuthToken{AccessToken: "a"})
	backing.PutOAuthToken("github", "repo.write", OAuthToken{AccessToken: "b"})

	cached := NewCachingSecretVault(backing, time.Minute)

	tok, _, err := cached.GetOAuthToken(context.Background(), "github", "repo.read")
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)

	tok, _, err = cached.GetOAuthToken(context.Background(), "github", "repo.write")
	require.NoError(t, err)
	assert.Equal(t, "b", tok.AccessToken)
	assert.Equal(t, 2, backing.calls)
}

func TestCachingSecretVaultGetSecretBypassesCache(t *testing.T) {
	backing := &countingVault{MemorySecretVault: NewMemorySecretVault()}
	backing.PutSecret("api-key", "shh")

	cached := NewCachingSecretVault(backing, time.Minute)
	val, ok, err := cached.GetSecret(context.Background(), "api-key")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "shh", val)
}
