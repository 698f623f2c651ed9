package privacy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is the multi-process attestation cache backing store, for
// deployments that share one attestation result across node replicas.
// Capacity/LRU eviction is approximated by Redis TTL expiry rather than an
// explicit access-ordered list; access counts are kept in a companion
// counter key (INCR on each hit), and Stats does not report them.
type RedisStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewRedisStore constructs a RedisStore. ctx bounds every Redis call issued
// by the store (suspension-point discipline, spec §5).
func NewRedisStore(client *redis.Client, prefix string, ctx context.Context) *RedisStore {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RedisStore{client: client, prefix: prefix, ctx: ctx}
}

func (r *RedisStore) key(k CacheKey) string {
	return fmt.Sprintf("%sattestation:%d:%s", r.prefix, k.Tier, k.PlatformID)
}

func (r *RedisStore) accessKey(k CacheKey) string {
	return fmt.Sprintf("%saccess:%d:%s", r.prefix, k.Tier, k.PlatformID)
}

func (r *RedisStore) Get(key CacheKey) (*AttestationResult, bool) {
	raw, err := r.client.Get(r.ctx, r.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var result AttestationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false
	}
	if time.Now().Unix() >= result.ExpiresAtUnix {
		r.client.Del(r.ctx, r.key(key))
		return nil, false
	}
	r.client.Incr(r.ctx, r.accessKey(key))
	return &result, true
}

func (r *RedisStore) Set(key CacheKey, result *AttestationResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	ttl := time.Until(time.Unix(result.ExpiresAtUnix, 0))
	if ttl <= 0 {
		return
	}
	r.client.Set(r.ctx, r.key(key), raw, ttl)
}

func (r *RedisStore) Invalidate(key CacheKey) {
	r.client.Del(r.ctx, r.key(key), r.accessKey(key))
}

func (r *RedisStore) Clear() {
	iter := r.client.Scan(r.ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(r.ctx) {
		r.client.Del(r.ctx, iter.Val())
	}
}

// Cleanup is a no-op for RedisStore: entries expire via native Redis TTL.
func (r *RedisStore) Cleanup() int { return 0 }

func (r *RedisStore) Stats() CacheStats {
	stats := CacheStats{PerTier: make(map[Tier]int)}
	iter := r.client.Scan(r.ctx, 0, r.prefix+"attestation:*", 0).Iterator()
	now := time.Now().Unix()
	for iter.Next(r.ctx) {
		raw, err := r.client.Get(r.ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var result AttestationResult
		if err := json.Unmarshal(raw, &result); err != nil {
			continue
		}
		stats.Total++
		stats.PerTier[result.MaxTier]++
		if now >= result.ExpiresAtUnix {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	return stats
}

var _ Store = (*RedisStore)(nil)
