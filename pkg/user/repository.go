package user

import (
	"context"
	"sync"
)

// Repository persists users keyed by email.
type Repository interface {
	// CreateUser returns ErrUserAlreadyExists if the email is taken.
	CreateUser(ctx context.Context, u User) error
	// FindUserByEmail returns ErrUserNotFound if there is no such user.
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

// InMemoryUserRepository implements Repository using in-memory storage
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{
		users: make(map[string]User),
	}
}

func (r *InMemoryUserRepository) CreateUser(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.Email]; exists {
		return ErrUserAlreadyExists
	}
	r.users[u.Email] = u
	return nil
}

func (r *InMemoryUserRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
