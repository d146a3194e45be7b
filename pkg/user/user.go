// Package user is the registry of accounts the auth flow can log in.
//
// UserService implements Store on top of a Repository backend and a
// PasswordHasher. Passwords are only ever persisted as salted slow hashes.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/simple-auth/pkg/credential"
)

var (
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrIncorrectCredentials = errors.New("incorrect credentials")
)

// User is a stored account. Users are never mutated after creation.
type User struct {
	Email             string    `json:"email"`
	PasswordHash      string    `json:"password_hash"`
	RequiresTwoFactor bool      `json:"requires_2fa"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewUser carries the validated signup input.
type NewUser struct {
	Email             credential.Email
	Password          credential.Password
	RequiresTwoFactor bool
}

// Store is what the login flow needs from the user registry.
type Store interface {
	// AddUser fails with ErrUserAlreadyExists if the email is taken.
	AddUser(ctx context.Context, params NewUser) error
	// GetUser fails with ErrUserNotFound.
	GetUser(ctx context.Context, email credential.Email) (User, error)
	// ValidateUser fails with ErrUserNotFound or ErrIncorrectCredentials.
	ValidateUser(ctx context.Context, email credential.Email, password credential.Password) (User, error)
}
