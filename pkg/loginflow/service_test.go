package loginflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-auth/pkg/bannedtoken"
	"github.com/tendant/simple-auth/pkg/credential"
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/notification"
	tg "github.com/tendant/simple-auth/pkg/tokengenerator"
	"github.com/tendant/simple-auth/pkg/twofa"
	"github.com/tendant/simple-auth/pkg/user"
)

type testEnv struct {
	svc        *LoginFlowService
	notifier   *notification.MockNotifier
	challenges *twofa.InMemoryChallengeRepository
	banned     *bannedtoken.InMemoryRepository
	tokens     *tg.JwtTokenService
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	env := &testEnv{
		notifier:   &notification.MockNotifier{},
		challenges: twofa.NewInMemoryChallengeRepository(),
		banned:     bannedtoken.NewInMemoryRepository(),
		tokens:     tg.NewJwtTokenService(tg.StaticSecretProvider{Secret: "test-secret"}),
	}
	users := user.NewUserService(user.NewInMemoryUserRepository(), user.WithPasswordHasher(user.NewBcryptHasher(bcrypt.MinCost)))

	env.svc = NewLoginFlowService(ServiceDependencies{
		UserStore:    users,
		BannedTokens: env.banned,
		Challenges:   env.challenges,
		TokenService: env.tokens,
		Notifier:     env.notifier,
	}, opts...)
	return env
}

func (e *testEnv) signup(t *testing.T, email string, requires2FA bool) {
	t.Helper()
	require.NoError(t, e.svc.Signup(context.Background(), SignupRequest{
		Email:             email,
		Password:          "password123",
		RequiresTwoFactor: requires2FA,
	}))
}

func (e *testEnv) lastCode(t *testing.T) string {
	t.Helper()
	n, ok := e.notifier.Last()
	require.True(t, ok, "no notification sent")
	return n.Data[notification.TwofaPasscodeKey]
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, apperrors.GetCode(err), "error: %v", err)
}

func TestSignup(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		req      SignupRequest
		wantCode apperrors.ErrorCode
	}{
		{name: "valid", req: SignupRequest{Email: "a@b.com", Password: "password123"}},
		{name: "bad email", req: SignupRequest{Email: "abc", Password: "password123"}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "empty email", req: SignupRequest{Email: "  ", Password: "password123"}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "short password", req: SignupRequest{Email: "a@b.com", Password: "short"}, wantCode: apperrors.ErrCodeInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			err := env.svc.Signup(ctx, tt.req)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestSignup_DuplicateRejectedRegardlessOfPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", false)

	err := env.svc.Signup(ctx, SignupRequest{Email: "a@b.com", Password: "password123"})
	assertCode(t, err, apperrors.ErrCodeUserAlreadyExists)

	err = env.svc.Signup(ctx, SignupRequest{Email: " a@b.com ", Password: "another-password", RequiresTwoFactor: true})
	assertCode(t, err, apperrors.ErrCodeUserAlreadyExists)
}

func TestLogin_WithoutTwoFactor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", false)

	result, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, result.State)
	assert.False(t, result.RequiresTwoFA())
	assert.NotEmpty(t, result.Token.Token)
	assert.Equal(t, 0, env.notifier.Count())

	claims, err := env.svc.VerifyToken(ctx, result.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", claims.Subject)
}

func TestLogin_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", false)

	tests := []struct {
		name     string
		req      Request
		wantCode apperrors.ErrorCode
	}{
		{name: "malformed email", req: Request{Email: "ab.com", Password: "password123"}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "short password", req: Request{Email: "a@b.com", Password: "pass"}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "unknown user", req: Request{Email: "nobody@b.com", Password: "password123"}, wantCode: apperrors.ErrCodeIncorrectCredentials},
		{name: "wrong password", req: Request{Email: "a@b.com", Password: "password124"}, wantCode: apperrors.ErrCodeIncorrectCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Login(ctx, tt.req)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestLogin_UnknownUserAndWrongPasswordLookTheSame(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", false)

	_, errUnknown := env.svc.Login(ctx, Request{Email: "nobody@b.com", Password: "password123"})
	_, errWrong := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password124"})

	assert.Equal(t, apperrors.GetCode(errUnknown), apperrors.GetCode(errWrong))
	assert.Equal(t,
		apperrors.PublicMessage(apperrors.GetCode(errUnknown)),
		apperrors.PublicMessage(apperrors.GetCode(errWrong)))
}

func TestTwoFactorRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", true)
	email := credential.MustParseEmail("a@b.com")

	result, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, result.RequiresTwoFA())
	assert.Equal(t, StateChallengeIssued, result.State)
	assert.Empty(t, result.Token.Token)

	storedID, storedCode, err := env.challenges.GetCode(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, result.LoginAttemptID, storedID)

	sent, ok := env.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, "a@b.com", sent.To)
	assert.Equal(t, storedCode.String(), env.lastCode(t))

	req := TwoFAValidationRequest{
		Email:          "a@b.com",
		LoginAttemptID: result.LoginAttemptID.String(),
		TwoFACode:      env.lastCode(t),
	}
	verified, err := env.svc.VerifyTwoFactor(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, verified.State)
	assert.NotEmpty(t, verified.Token.Token)

	_, err = env.svc.VerifyToken(ctx, verified.Token.Token)
	require.NoError(t, err)

	// single use
	_, err = env.svc.VerifyTwoFactor(ctx, req)
	assertCode(t, err, apperrors.ErrCodeIncorrectCredentials)

	_, _, err = env.challenges.GetCode(ctx, email)
	assert.ErrorIs(t, err, twofa.ErrLoginAttemptIDNotFound)
}

func TestVerifyTwoFactor_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", true)

	result, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)
	attemptID := result.LoginAttemptID.String()
	code := env.lastCode(t)
	wrongCode := "000000"
	if code == wrongCode {
		wrongCode = "111111"
	}

	tests := []struct {
		name     string
		req      TwoFAValidationRequest
		wantCode apperrors.ErrorCode
	}{
		{name: "malformed email", req: TwoFAValidationRequest{Email: "ab.com", LoginAttemptID: attemptID, TwoFACode: code}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "malformed attempt id", req: TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: "nope", TwoFACode: code}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "malformed code", req: TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: attemptID, TwoFACode: "123"}, wantCode: apperrors.ErrCodeInvalidCredentials},
		{name: "no challenge for email", req: TwoFAValidationRequest{Email: "x@b.com", LoginAttemptID: attemptID, TwoFACode: code}, wantCode: apperrors.ErrCodeIncorrectCredentials},
		{name: "wrong attempt id", req: TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: twofa.NewLoginAttemptID().String(), TwoFACode: code}, wantCode: apperrors.ErrCodeIncorrectCredentials},
		{name: "wrong code", req: TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: attemptID, TwoFACode: wrongCode}, wantCode: apperrors.ErrCodeIncorrectCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.VerifyTwoFactor(ctx, tt.req)
			assertCode(t, err, tt.wantCode)
		})
	}

	// mismatches leave the challenge in place
	_, err = env.svc.VerifyTwoFactor(ctx, TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: attemptID, TwoFACode: code})
	assert.NoError(t, err)
}

func TestChallengeOverwrite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", true)

	first, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)
	firstCode := env.lastCode(t)

	second, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)
	secondCode := env.lastCode(t)
	assert.NotEqual(t, first.LoginAttemptID, second.LoginAttemptID)

	_, err = env.svc.VerifyTwoFactor(ctx, TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: first.LoginAttemptID.String(), TwoFACode: firstCode})
	assertCode(t, err, apperrors.ErrCodeIncorrectCredentials)

	_, err = env.svc.VerifyTwoFactor(ctx, TwoFAValidationRequest{Email: "a@b.com", LoginAttemptID: second.LoginAttemptID.String(), TwoFACode: secondCode})
	assert.NoError(t, err)
}

func TestLogin_NotificationFailureStoresNoChallenge(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", true)
	env.notifier.Err = errors.New("smtp unavailable")

	_, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	assertCode(t, err, apperrors.ErrCodeInternal)

	_, _, err = env.challenges.GetCode(ctx, credential.MustParseEmail("a@b.com"))
	assert.ErrorIs(t, err, twofa.ErrLoginAttemptIDNotFound)
}

func TestLogin_CodeGeneratorFailure(t *testing.T) {
	env := newTestEnv(t, WithCodeGenerator(func() (twofa.TwoFACode, error) {
		return twofa.TwoFACode{}, errors.New("entropy exhausted")
	}))
	env.signup(t, "a@b.com", true)

	_, err := env.svc.Login(context.Background(), Request{Email: "a@b.com", Password: "password123"})
	assertCode(t, err, apperrors.ErrCodeInternal)
	assert.Equal(t, 0, env.notifier.Count())
}

func TestLogin_DeterministicChallenge(t *testing.T) {
	fixedID := twofa.NewLoginAttemptID()
	fixedCode, err := twofa.ParseTwoFACode("abc123")
	require.NoError(t, err)

	env := newTestEnv(t,
		WithAttemptIDGenerator(func() twofa.LoginAttemptID { return fixedID }),
		WithCodeGenerator(func() (twofa.TwoFACode, error) { return fixedCode, nil }),
	)
	env.signup(t, "a@b.com", true)

	result, err := env.svc.Login(context.Background(), Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, fixedID, result.LoginAttemptID)
	assert.Equal(t, "abc123", env.lastCode(t))
}

func TestLogin_SigningFailure(t *testing.T) {
	env := newTestEnv(t)
	env.svc.services.TokenService = tg.NewJwtTokenService(tg.StaticSecretProvider{})
	env.signup(t, "a@b.com", false)

	_, err := env.svc.Login(context.Background(), Request{Email: "a@b.com", Password: "password123"})
	assertCode(t, err, apperrors.ErrCodeInternal)
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "a@b.com", false)

	result, err := env.svc.Login(ctx, Request{Email: "a@b.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, result.Token.Token))

	_, err = env.svc.VerifyToken(ctx, result.Token.Token)
	assertCode(t, err, apperrors.ErrCodeInvalidToken)

	// still cryptographically valid
	_, err = env.tokens.VerifyToken(ctx, result.Token.Token)
	assert.NoError(t, err)
}

func TestLogout_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	assertCode(t, env.svc.Logout(ctx, ""), apperrors.ErrCodeMissingToken)
	assertCode(t, env.svc.Logout(ctx, "not-a-token"), apperrors.ErrCodeInvalidToken)

	expired := tg.NewJwtTokenService(
		tg.StaticSecretProvider{Secret: "test-secret"},
		tg.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }),
	)
	tv, err := expired.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
	require.NoError(t, err)
	assertCode(t, env.svc.Logout(ctx, tv.Token), apperrors.ErrCodeInvalidToken)
}

func TestLogout_Twice(t *testing.T) {
	ctx := context.Background()

	t.Run("ban check enabled", func(t *testing.T) {
		env := newTestEnv(t)
		tv, err := env.tokens.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
		require.NoError(t, err)

		require.NoError(t, env.svc.Logout(ctx, tv.Token))
		assertCode(t, env.svc.Logout(ctx, tv.Token), apperrors.ErrCodeInvalidToken)
	})

	t.Run("ban check disabled", func(t *testing.T) {
		env := newTestEnv(t, WithLogoutBanCheck(false))
		tv, err := env.tokens.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
		require.NoError(t, err)

		require.NoError(t, env.svc.Logout(ctx, tv.Token))
		require.NoError(t, env.svc.Logout(ctx, tv.Token))
		assert.Equal(t, 1, env.banned.Len())

		_, err = env.svc.VerifyToken(ctx, tv.Token)
		assertCode(t, err, apperrors.ErrCodeInvalidToken)
	})
}

func TestLogout_ConcurrentSameToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tv, err := env.tokens.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.svc.Logout(ctx, tv.Token)
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertCode(t, err, apperrors.ErrCodeInvalidToken)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, env.banned.Len())
}

func outcomeCount(t *testing.T, operation, outcome string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, flowOutcomes.WithLabelValues(operation, outcome).Write(&m))
	return m.GetCounter().GetValue()
}

func TestEnsureNotRevoked(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	tv, err := env.tokens.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
	require.NoError(t, err)

	verifySuccess := outcomeCount(t, opVerifyToken, "success")
	verifyRejected := outcomeCount(t, opVerifyToken, "invalid_token")

	require.NoError(t, env.svc.EnsureNotRevoked(ctx, tv.Token))
	assertCode(t, env.svc.EnsureNotRevoked(ctx, ""), apperrors.ErrCodeInvalidToken)

	require.NoError(t, env.banned.AddToken(ctx, tv.Token))
	assertCode(t, env.svc.EnsureNotRevoked(ctx, tv.Token), apperrors.ErrCodeInvalidToken)

	assert.Equal(t, verifySuccess, outcomeCount(t, opVerifyToken, "success"))
	assert.Equal(t, verifyRejected, outcomeCount(t, opVerifyToken, "invalid_token"))

	env.svc.services.BannedTokens = failingBanned{}
	assertCode(t, env.svc.EnsureNotRevoked(ctx, tv.Token), apperrors.ErrCodeInternal)
}

func TestVerifyToken_Rejections(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.VerifyToken(ctx, "")
	assertCode(t, err, apperrors.ErrCodeInvalidToken)

	other := tg.NewJwtTokenService(tg.StaticSecretProvider{Secret: "other-secret"})
	tv, err := other.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
	require.NoError(t, err)
	_, err = env.svc.VerifyToken(ctx, tv.Token)
	assertCode(t, err, apperrors.ErrCodeInvalidToken)
}

type failingBanned struct{}

func (failingBanned) AddToken(ctx context.Context, token string) error { return errors.New("redis down") }
func (failingBanned) BanToken(ctx context.Context, token string) (bool, error) {
	return false, errors.New("redis down")
}
func (failingBanned) ContainsToken(ctx context.Context, token string) (bool, error) {
	return false, errors.New("redis down")
}

func TestBannedStoreFailureIsUnexpected(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.svc.services.BannedTokens = failingBanned{}

	tv, err := env.tokens.IssueToken(ctx, credential.MustParseEmail("a@b.com"))
	require.NoError(t, err)

	_, err = env.svc.VerifyToken(ctx, tv.Token)
	assertCode(t, err, apperrors.ErrCodeInternal)
	assertCode(t, env.svc.Logout(ctx, tv.Token), apperrors.ErrCodeInternal)
}

func TestConcurrentLogins(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.signup(t, fmt.Sprintf("user%d@b.com", i), i%2 == 0)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.Login(ctx, Request{Email: fmt.Sprintf("user%d@b.com", i%5), Password: "password123"})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 12, env.notifier.Count())
}
