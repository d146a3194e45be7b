package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-auth/pkg/credential"
)

// UserService implements Store.
type UserService struct {
	repo   Repository
	hasher PasswordHasher
	now    func() time.Time

	// verified against when the email is unknown, so both rejections cost a hash
	dummyHash string
}

// Option configures a UserService
type Option func(*UserService)

func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(s *UserService) {
		s.hasher = hasher
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *UserService) {
		s.now = now
	}
}

// NewUserService creates a UserService backed by repo. Passwords are hashed
// with bcrypt unless WithPasswordHasher says otherwise.
func NewUserService(repo Repository, opts ...Option) *UserService {
	s := &UserService{
		repo:   repo,
		hasher: NewBcryptHasher(0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummyHash, err := s.hasher.Hash("dummy-password-for-unknown-users")
	if err != nil {
		slog.Warn("Failed to compute dummy password hash", "err", err)
	}
	s.dummyHash = dummyHash
	return s
}

func (s *UserService) AddUser(ctx context.Context, params NewUser) error {
	hash, err := s.hasher.Hash(params.Password.Reveal())
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.repo.CreateUser(ctx, User{
		Email:             params.Email.String(),
		PasswordHash:      hash,
		RequiresTwoFactor: params.RequiresTwoFactor,
		CreatedAt:         s.now().UTC(),
	})
	if err != nil {
		if !errors.Is(err, ErrUserAlreadyExists) {
			slog.Error("Failed to create user", "email", params.Email, "err", err)
		}
		return err
	}

	slog.Info("User created", "email", params.Email, "requires2fa", params.RequiresTwoFactor)
	return nil
}

func (s *UserService) GetUser(ctx context.Context, email credential.Email) (User, error) {
	return s.repo.FindUserByEmail(ctx, email.String())
}

func (s *UserService) ValidateUser(ctx context.Context, email credential.Email, password credential.Password) (User, error) {
	u, err := s.repo.FindUserByEmail(ctx, email.String())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = s.hasher.Verify(password.Reveal(), s.dummyHash)
		}
		return User{}, err
	}

	ok, err := s.hasher.Verify(password.Reveal(), u.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return User{}, ErrIncorrectCredentials
	}
	return u, nil
}
