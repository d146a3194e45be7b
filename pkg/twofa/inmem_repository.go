package twofa

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-auth/pkg/credential"
)

// InMemoryChallengeRepository keeps challenges in a map. With a TTL set,
// challenges older than the TTL are treated as missing and dropped lazily.
type InMemoryChallengeRepository struct {
	mu         sync.RWMutex
	challenges map[credential.Email]Challenge
	ttl        time.Duration
	now        func() time.Time
}

type InMemoryOption func(*InMemoryChallengeRepository)

// WithChallengeTTL expires challenges after ttl. Zero disables expiry.
func WithChallengeTTL(ttl time.Duration) InMemoryOption {
	return func(r *InMemoryChallengeRepository) {
		r.ttl = ttl
	}
}

func WithClock(now func() time.Time) InMemoryOption {
	return func(r *InMemoryChallengeRepository) {
		if now != nil {
			r.now = now
		}
	}
}

func NewInMemoryChallengeRepository(opts ...InMemoryOption) *InMemoryChallengeRepository {
	r := &InMemoryChallengeRepository{
		challenges: make(map[credential.Email]Challenge),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryChallengeRepository) AddCode(ctx context.Context, email credential.Email, attemptID LoginAttemptID, code TwoFACode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.challenges[email] = Challenge{
		Email:          email.String(),
		LoginAttemptID: attemptID.String(),
		Code:           code.String(),
		CreatedAt:      r.now().UTC(),
	}
	return nil
}

func (r *InMemoryChallengeRepository) GetCode(ctx context.Context, email credential.Email) (LoginAttemptID, TwoFACode, error) {
	r.mu.RLock()
	c, ok := r.challenges[email]
	r.mu.RUnlock()

	if !ok {
		return LoginAttemptID{}, TwoFACode{}, ErrLoginAttemptIDNotFound
	}
	if r.expired(c) {
		r.mu.Lock()
		// re-check: a newer challenge may have replaced it meanwhile
		if cur, ok := r.challenges[email]; ok && r.expired(cur) {
			delete(r.challenges, email)
		}
		r.mu.Unlock()
		return LoginAttemptID{}, TwoFACode{}, ErrLoginAttemptIDNotFound
	}
	return LoginAttemptID{value: c.LoginAttemptID}, TwoFACode{value: c.Code}, nil
}

func (r *InMemoryChallengeRepository) RemoveCode(ctx context.Context, email credential.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.challenges, email)
	return nil
}

func (r *InMemoryChallengeRepository) expired(c Challenge) bool {
	return r.ttl > 0 && r.now().Sub(c.CreatedAt) >= r.ttl
}
