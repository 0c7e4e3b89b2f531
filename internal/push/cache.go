package push

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache keeps device token lookups off the hot path of every dispatch.
// All methods are best-effort; a broken cache only costs extra store reads.
type TokenCache interface {
	Get(ctx context.Context, uid string) ([]string, bool)
	Set(ctx context.Context, uid string, tokens []string)
	Invalidate(ctx context.Context, uid string)
}

// RedisTokenCache caches per-user token sets in Redis with a TTL.
type RedisTokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTokenCache(client *redis.Client, ttl time.Duration) *RedisTokenCache {
	return &RedisTokenCache{client: client, ttl: ttl}
}

func tokenKey(uid string) string {
	return "push:tokens:" + uid
}

func (c *RedisTokenCache) Get(ctx context.Context, uid string) ([]string, bool) {
	raw, err := c.client.Get(ctx, tokenKey(uid)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("token cache get uid=%s: %v", uid, err)
		return nil, false
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		log.Printf("token cache decode uid=%s: %v", uid, err)
		return nil, false
	}
	return tokens, true
}

func (c *RedisTokenCache) Set(ctx context.Context, uid string, tokens []string) {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tokenKey(uid), raw, c.ttl).Err(); err != nil {
		log.Printf("token cache set uid=%s: %v", uid, err)
	}
}

func (c *RedisTokenCache) Invalidate(ctx context.Context, uid string) {
	if err := c.client.Del(ctx, tokenKey(uid)).Err(); err != nil {
		log.Printf("token cache invalidate uid=%s: %v", uid, err)
	}
}

// NoopTokenCache misses on every read. Used when Redis is not configured.
type NoopTokenCache struct{}

func (NoopTokenCache) Get(ctx context.Context, uid string) ([]string, bool) { return nil, false }
func (NoopTokenCache) Set(ctx context.Context, uid string, tokens []string) {}
func (NoopTokenCache) Invalidate(ctx context.Context, uid string)           {}
