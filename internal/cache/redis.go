package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/YodHeVauHe/CallCenterX/internal/identity"
)

// RedisIdentityCache implements IdentityCache backed by Redis.
type RedisIdentityCache struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a redis-backed identity cache.
func NewRedis(client *redis.Client, prefix string) *RedisIdentityCache {
	if prefix == "" {
		prefix = "identity"
	}
	return &RedisIdentityCache{client: client, prefix: prefix}
}

func (c *RedisIdentityCache) Get(ctx context.Context, tokenSignature string) (*identity.UserIdentity, error) {
	data, err := c.client.Get(ctx, c.key(tokenSignature)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var id identity.UserIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *RedisIdentityCache) Set(ctx context.Context, tokenSignature string, id identity.UserIdentity, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(tokenSignature), payload, ttl).Err()
}

func (c *RedisIdentityCache) Delete(ctx context.Context, tokenSignature string) error {
	return c.client.Del(ctx, c.key(tokenSignature)).Err()
}

func (c *RedisIdentityCache) key(tokenSignature string) string {
	return fmt.Sprintf("%s:%s", c.prefix, tokenSignature)
}

// TokenSignature derives the cache key for an access token. The raw token
// never reaches Redis.
func TokenSignature(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return hex.EncodeToString(sum[:])
}
