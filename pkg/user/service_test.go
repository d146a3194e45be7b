package user

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-auth/pkg/credential"
)

func newTestService(repo Repository) *UserService {
	return NewUserService(repo, WithPasswordHasher(NewBcryptHasher(bcrypt.MinCost)))
}

func TestUserService(t *testing.T) {
	ctx := context.Background()
	email := credential.MustParseEmail("user@example.com")
	password := credential.MustParsePassword("password123")

	backends := map[string]func(t *testing.T) Repository{
		"memory": func(t *testing.T) Repository { return NewInMemoryUserRepository() },
		"file": func(t *testing.T) Repository {
			repo, err := NewFileUserRepository(t.TempDir())
			require.NoError(t, err)
			return repo
		},
	}

	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("add and get", func(t *testing.T) {
				svc := newTestService(newRepo(t))
				require.NoError(t, svc.AddUser(ctx, NewUser{Email: email, Password: password, RequiresTwoFactor: true}))

				u, err := svc.GetUser(ctx, email)
				require.NoError(t, err)
				assert.Equal(t, "user@example.com", u.Email)
				assert.True(t, u.RequiresTwoFactor)
				assert.NotEqual(t, password.Reveal(), u.PasswordHash)
				assert.False(t, u.CreatedAt.IsZero())
			})

			t.Run("duplicate email", func(t *testing.T) {
				svc := newTestService(newRepo(t))
				require.NoError(t, svc.AddUser(ctx, NewUser{Email: email, Password: password}))

				err := svc.AddUser(ctx, NewUser{Email: email, Password: credential.MustParsePassword("different-pass")})
				assert.ErrorIs(t, err, ErrUserAlreadyExists)

				// the first registration is kept
				_, err = svc.ValidateUser(ctx, email, password)
				assert.NoError(t, err)
			})

			t.Run("get unknown", func(t *testing.T) {
				svc := newTestService(newRepo(t))
				_, err := svc.GetUser(ctx, email)
				assert.ErrorIs(t, err, ErrUserNotFound)
			})

			t.Run("validate", func(t *testing.T) {
				svc := newTestService(newRepo(t))
				require.NoError(t, svc.AddUser(ctx, NewUser{Email: email, Password: password}))

				u, err := svc.ValidateUser(ctx, email, password)
				require.NoError(t, err)
				assert.Equal(t, email.String(), u.Email)

				_, err = svc.ValidateUser(ctx, email, credential.MustParsePassword("password124"))
				assert.ErrorIs(t, err, ErrIncorrectCredentials)

				_, err = svc.ValidateUser(ctx, credential.MustParseEmail("nobody@example.com"), password)
				assert.ErrorIs(t, err, ErrUserNotFound)
			})
		})
	}
}

func TestUserService_WithArgon2(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(NewInMemoryUserRepository(), WithPasswordHasher(NewArgon2Hasher()))
	email := credential.MustParseEmail("argon@example.com")

	require.NoError(t, svc.AddUser(ctx, NewUser{Email: email, Password: credential.MustParsePassword("password123")}))

	u, err := svc.GetUser(ctx, email)
	require.NoError(t, err)
	assert.Contains(t, u.PasswordHash, "$argon2id$")

	_, err = svc.ValidateUser(ctx, email, credential.MustParsePassword("password123"))
	assert.NoError(t, err)
}

type failingRepo struct{ err error }

func (f failingRepo) CreateUser(ctx context.Context, u User) error { return f.err }
func (f failingRepo) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return User{}, f.err
}

func TestUserService_RepositoryFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	svc := newTestService(failingRepo{err: boom})

	err := svc.AddUser(ctx, NewUser{
		Email:    credential.MustParseEmail("a@b.com"),
		Password: credential.MustParsePassword("password123"),
	})
	assert.ErrorIs(t, err, boom)

	_, err = svc.ValidateUser(ctx, credential.MustParseEmail("a@b.com"), credential.MustParsePassword("password123"))
	assert.ErrorIs(t, err, boom)
}

// countingHasher records which hashes Verify was asked to check.
type countingHasher struct {
	PasswordHasher
	mu       sync.Mutex
	verified []string
}

func (h *countingHasher) Verify(password, hashedPassword string) (bool, error) {
	h.mu.Lock()
	h.verified = append(h.verified, hashedPassword)
	h.mu.Unlock()
	return h.PasswordHasher.Verify(password, hashedPassword)
}

func TestUserService_ValidateUserHashesForUnknownEmail(t *testing.T) {
	ctx := context.Background()
	hasher := &countingHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost)}
	svc := NewUserService(NewInMemoryUserRepository(), WithPasswordHasher(hasher))
	require.NotEmpty(t, svc.dummyHash)

	_, err := svc.ValidateUser(ctx, credential.MustParseEmail("nobody@example.com"), credential.MustParsePassword("password123"))
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.Len(t, hasher.verified, 1)
	assert.Equal(t, svc.dummyHash, hasher.verified[0])

	require.NoError(t, svc.AddUser(ctx, NewUser{
		Email:    credential.MustParseEmail("user@example.com"),
		Password: credential.MustParsePassword("password123"),
	}))
	_, err = svc.ValidateUser(ctx, credential.MustParseEmail("user@example.com"), credential.MustParsePassword("password124"))
	assert.ErrorIs(t, err, ErrIncorrectCredentials)
	assert.Len(t, hasher.verified, 2)
}

func TestUserService_RepositoryFailureSkipsDummyHash(t *testing.T) {
	hasher := &countingHasher{PasswordHasher: NewBcryptHasher(bcrypt.MinCost)}
	svc := NewUserService(failingRepo{err: errors.New("connection reset")}, WithPasswordHasher(hasher))

	_, err := svc.ValidateUser(context.Background(), credential.MustParseEmail("a@b.com"), credential.MustParsePassword("password123"))
	assert.Error(t, err)
	assert.Empty(t, hasher.verified)
}

func TestFileUserRepository_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repo, err := NewFileUserRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.CreateUser(ctx, User{Email: "a@b.com", PasswordHash: "hash"}))

	reloaded, err := NewFileUserRepository(dir)
	require.NoError(t, err)
	u, err := reloaded.FindUserByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", u.PasswordHash)

	assert.ErrorIs(t, reloaded.CreateUser(ctx, User{Email: "a@b.com"}), ErrUserAlreadyExists)
}

func TestNewUserRepository(t *testing.T) {
	_, err := NewUserRepository("postgres", RepositoryConfig{})
	assert.Error(t, err)

	_, err = NewUserRepository("file", RepositoryConfig{})
	assert.Error(t, err)

	_, err = NewUserRepository("mysql", RepositoryConfig{})
	assert.Error(t, err)

	repo, err := NewUserRepository("file", RepositoryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileUserRepository{}, repo)
}
