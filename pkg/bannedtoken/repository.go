// Package bannedtoken records session tokens that were revoked by logout.
//
// The store treats tokens as opaque strings. It never parses or verifies
// them; callers do that before banning.
package bannedtoken

import (
	"context"
	"sync"
)

// Repository is the banned token set.
type Repository interface {
	// AddToken bans token. Banning an already banned token is not an error.
	AddToken(ctx context.Context, token string) error
	// BanToken bans token and reports whether it was newly banned. Of
	// concurrent callers with the same token exactly one sees true.
	BanToken(ctx context.Context, token string) (bool, error)
	ContainsToken(ctx context.Context, token string) (bool, error)
}

// InMemoryRepository keeps banned tokens for the lifetime of the process.
type InMemoryRepository struct {
	mu     sync.RWMutex
	tokens map[string]struct{}
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tokens: make(map[string]struct{}),
	}
}

func (r *InMemoryRepository) AddToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = struct{}{}
	return nil
}

func (r *InMemoryRepository) BanToken(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; ok {
		return false, nil
	}
	r.tokens[token] = struct{}{}
	return true, nil
}

func (r *InMemoryRepository) ContainsToken(ctx context.Context, token string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tokens[token]
	return ok, nil
}

// Len reports how many tokens are banned.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
