package token

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRevoker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevoker creates a Revoker which stores revoked token ids in redis until the tokens expire.
func NewRedisRevoker(client redis.UniversalClient, keyPrefix string) Revoker {
	return redisRevoker{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r redisRevoker) key(jti string) string {
	return r.keyPrefix + jti
}

func (r redisRevoker) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

func (r redisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}

	return n > 0, nil
}
