package bannedtoken

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"
)

const (
	defaultBannedPrefix = "banned"

	// DefaultTTL matches the default session token lifetime. A banned entry
	// only needs to outlive the token it blocks.
	DefaultTTL = 10 * time.Minute
)

// RedisRepository stores banned tokens as <prefix>:<sha256(token)> keys that
// expire after ttl.
type RedisRepository struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRepository(client *red.Client, keyPrefix string, ttl time.Duration) *RedisRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultBannedPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisRepository) AddToken(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key(token), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set banned token: %w", err)
	}
	return nil
}

// BanToken uses SETNX, so the first writer wins across every node sharing
// the redis instance.
func (r *RedisRepository) BanToken(ctx context.Context, token string) (bool, error) {
	added, err := r.client.SetNX(ctx, r.key(token), "1", r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx banned token: %w", err)
	}
	return added, nil
}

func (r *RedisRepository) ContainsToken(ctx context.Context, token string) (bool, error) {
	err := r.client.Get(ctx, r.key(token)).Err()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get banned token: %w", err)
	}
	return true, nil
}

func (r *RedisRepository) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%s:%s", r.prefix, hex.EncodeToString(sum[:]))
}
