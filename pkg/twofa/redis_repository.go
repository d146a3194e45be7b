package twofa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/tendant/simple-auth/pkg/credential"
)

const (
	defaultChallengePrefix = "2fa"

	fieldAttemptID = "attempt_id"
	fieldCode      = "code"
	fieldCreatedAt = "created_at"
)

// RedisChallengeRepository stores each challenge as a hash under
// <prefix>:<email>. A positive ttl is applied to every key.
type RedisChallengeRepository struct {
	client *red.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisChallengeRepository(client *red.Client, keyPrefix string, ttl time.Duration) *RedisChallengeRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	return &RedisChallengeRepository{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the clock used for created_at.
func (r *RedisChallengeRepository) WithClock(now func() time.Time) *RedisChallengeRepository {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *RedisChallengeRepository) AddCode(ctx context.Context, email credential.Email, attemptID LoginAttemptID, code TwoFACode) error {
	key := r.key(email)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldAttemptID: attemptID.String(),
		fieldCode:      code.String(),
		fieldCreatedAt: r.now().UTC().Format(time.RFC3339),
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store 2fa challenge: %w", err)
	}
	return nil
}

func (r *RedisChallengeRepository) GetCode(ctx context.Context, email credential.Email) (LoginAttemptID, TwoFACode, error) {
	values, err := r.client.HGetAll(ctx, r.key(email)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return LoginAttemptID{}, TwoFACode{}, ErrLoginAttemptIDNotFound
		}
		return LoginAttemptID{}, TwoFACode{}, fmt.Errorf("redis get 2fa challenge: %w", err)
	}

	attemptID, ok := values[fieldAttemptID]
	if !ok {
		return LoginAttemptID{}, TwoFACode{}, ErrLoginAttemptIDNotFound
	}
	return LoginAttemptID{value: attemptID}, TwoFACode{value: values[fieldCode]}, nil
}

func (r *RedisChallengeRepository) RemoveCode(ctx context.Context, email credential.Email) error {
	if err := r.client.Del(ctx, r.key(email)).Err(); err != nil {
		return fmt.Errorf("redis delete 2fa challenge: %w", err)
	}
	return nil
}

func (r *RedisChallengeRepository) key(email credential.Email) string {
	return fmt.Sprintf("%s:%s", r.prefix, email.String())
}
