package external

import (
	"context"
	"time"

	"github.com/hanzoai/node/infrastructure/cache"
)

// CachingSecretVault wraps a backing SecretVault with a short-TTL in-memory
// cache, so the OAuth handler's per-invocation token lookup (spec §4.9)
// does not round-trip to an external vault on every dispatch.
type CachingSecretVault struct {
	backing SecretVault
	cache   *cache.TTLCache
}

// NewCachingSecretVault wraps backing with a cache holding entries for ttl.
func NewCachingSecretVault(backing SecretVault, ttl time.Duration) *CachingSecretVault {
	return &CachingSecretVault{backing: backing, cache: cache.NewTTLCache(ttl)}
}

type cachedToken struct {
	token OAuthToken
	found bool
}

func (v *CachingSecretVault) GetOAuthToken(ctx context.Context, name, toolKey string) (OAuthToken, bool, error) {
	key := name + "\x00" + toolKey
	if cached, ok := v.cache.Get(ctx, key); ok {
		ct := cached.(cachedToken)
		return ct.token, ct.found, nil
	}

	tok, found, err := v.backing.GetOAuthToken(ctx, name, toolKey)
	if err != nil {
		return OAuthToken{}, false, err
	}
	v.cache.Set(ctx, key, cachedToken{token: tok, found: found})
	return tok, found, nil
}

func (v *CachingSecretVault) GetSecret(ctx context.Context, key string) (string, bool, error) {
	return v.backing.GetSecret(ctx, key)
}
