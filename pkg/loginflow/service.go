package loginflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-auth/pkg/bannedtoken"
	"github.com/tendant/simple-auth/pkg/credential"
	apperrors "github.com/tendant/simple-auth/pkg/errors"
	"github.com/tendant/simple-auth/pkg/notification"
	tg "github.com/tendant/simple-auth/pkg/tokengenerator"
	"github.com/tendant/simple-auth/pkg/twofa"
	"github.com/tendant/simple-auth/pkg/user"
)

const (
	opSignup      = "signup"
	opLogin       = "login"
	opVerify2FA   = "verify_2fa"
	opLogout      = "logout"
	opVerifyToken = "verify_token"
)

// ServiceDependencies holds all the services required by the login flow
type ServiceDependencies struct {
	UserStore    user.Store
	BannedTokens bannedtoken.Repository
	Challenges   twofa.ChallengeRepository
	TokenService tg.TokenService
	Notifier     notification.Notifier
}

// LoginFlowService orchestrates the login flow business logic
type LoginFlowService struct {
	services ServiceDependencies

	logoutBanCheck bool
	generateCode   func() (twofa.TwoFACode, error)
	newAttemptID   func() twofa.LoginAttemptID
}

// Option configures a LoginFlowService
type Option func(*LoginFlowService)

// WithLogoutBanCheck makes Logout reject tokens that are already banned.
// Enabled by default. The check and the ban are one atomic store call, so
// of two concurrent logouts with the same token only one succeeds.
func WithLogoutBanCheck(enabled bool) Option {
	return func(s *LoginFlowService) {
		s.logoutBanCheck = enabled
	}
}

func WithCodeGenerator(gen func() (twofa.TwoFACode, error)) Option {
	return func(s *LoginFlowService) {
		s.generateCode = gen
	}
}

func WithAttemptIDGenerator(gen func() twofa.LoginAttemptID) Option {
	return func(s *LoginFlowService) {
		s.newAttemptID = gen
	}
}

// NewLoginFlowService creates a new login flow service. All dependencies are
// required.
func NewLoginFlowService(services ServiceDependencies, opts ...Option) *LoginFlowService {
	s := &LoginFlowService{
		services:       services,
		logoutBanCheck: true,
		generateCode:   twofa.GenerateTwoFACode,
		newAttemptID:   twofa.NewLoginAttemptID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupRequest is the raw signup input.
type SignupRequest struct {
	Email             string
	Password          string
	RequiresTwoFactor bool
}

// Request is the raw login input.
type Request struct {
	Email    string
	Password string
}

// TwoFAValidationRequest is the raw input for completing a challenge.
type TwoFAValidationRequest struct {
	Email          string
	LoginAttemptID string
	TwoFACode      string
}

// Result is the outcome of a successful Login or VerifyTwoFactor call.
// State is Authenticated (Token set) or ChallengeIssued (LoginAttemptID set).
type Result struct {
	State          State
	Token          tg.TokenValue
	LoginAttemptID twofa.LoginAttemptID
}

// RequiresTwoFA reports whether the caller still has to complete a challenge.
func (r Result) RequiresTwoFA() bool {
	return r.State == StateChallengeIssued
}

func (s *LoginFlowService) Signup(ctx context.Context, req SignupRequest) (err error) {
	defer func() { recordOutcome(opSignup, err, "success") }()

	email, err := credential.ParseEmail(req.Email)
	if err != nil {
		return apperrors.InvalidCredentials(err)
	}
	password, err := credential.ParsePassword(req.Password)
	if err != nil {
		return apperrors.InvalidCredentials(err)
	}

	err = s.services.UserStore.AddUser(ctx, user.NewUser{
		Email:             email,
		Password:          password,
		RequiresTwoFactor: req.RequiresTwoFactor,
	})
	if err != nil {
		if errors.Is(err, user.ErrUserAlreadyExists) {
			return apperrors.Wrap(err, apperrors.ErrCodeUserAlreadyExists, "user already exists")
		}
		return s.unexpected(opSignup, err, "failed to add user")
	}
	return nil
}

func (s *LoginFlowService) Login(ctx context.Context, req Request) (result Result, err error) {
	f := newFlow(opLogin, StateStart)
	defer func() {
		if err != nil {
			f.reject()
		}
		recordOutcome(opLogin, err, f.state.String())
	}()

	email, err := credential.ParseEmail(req.Email)
	if err != nil {
		return Result{}, apperrors.InvalidCredentials(err)
	}
	password, err := credential.ParsePassword(req.Password)
	if err != nil {
		return Result{}, apperrors.InvalidCredentials(err)
	}

	u, err := s.services.UserStore.ValidateUser(ctx, email, password)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) || errors.Is(err, user.ErrIncorrectCredentials) {
			slog.Warn("Login rejected", "email", email)
			return Result{}, apperrors.IncorrectCredentials(err)
		}
		return Result{}, s.unexpected(opLogin, err, "failed to validate user")
	}
	if err := f.advance(StateCredentialsChecked); err != nil {
		return Result{}, s.unexpected(opLogin, err, "login flow")
	}

	if !u.RequiresTwoFactor {
		if err := f.advance(StateNoChallengeRequired); err != nil {
			return Result{}, s.unexpected(opLogin, err, "login flow")
		}
		return s.authenticate(ctx, f, email)
	}

	return s.issueChallenge(ctx, f, email)
}

// issueChallenge notifies the user before storing the challenge, so a failed
// delivery leaves no challenge behind.
func (s *LoginFlowService) issueChallenge(ctx context.Context, f *flow, email credential.Email) (Result, error) {
	attemptID := s.newAttemptID()
	code, err := s.generateCode()
	if err != nil {
		return Result{}, s.unexpected(f.operation, err, "failed to generate 2fa code")
	}

	notice, err := notification.NewTwoFactorCodeNotification(email.String(), code.String())
	if err != nil {
		return Result{}, s.unexpected(f.operation, err, "failed to render 2fa notification")
	}
	if err := s.services.Notifier.Send(ctx, notice); err != nil {
		return Result{}, s.unexpected(f.operation, err, "failed to send 2fa code")
	}

	if err := s.services.Challenges.AddCode(ctx, email, attemptID, code); err != nil {
		return Result{}, s.unexpected(f.operation, err, "failed to store 2fa challenge")
	}
	if err := f.advance(StateChallengeIssued); err != nil {
		return Result{}, s.unexpected(f.operation, err, "login flow")
	}

	slog.Info("2FA challenge issued", "email", email, "loginAttemptId", attemptID)
	return Result{State: f.state, LoginAttemptID: attemptID}, nil
}

func (s *LoginFlowService) authenticate(ctx context.Context, f *flow, email credential.Email) (Result, error) {
	token, err := s.services.TokenService.IssueToken(ctx, email)
	if err != nil {
		return Result{}, s.unexpected(f.operation, err, "failed to issue token")
	}
	if err := f.advance(StateAuthenticated); err != nil {
		return Result{}, s.unexpected(f.operation, err, "login flow")
	}
	return Result{State: f.state, Token: token}, nil
}

func (s *LoginFlowService) VerifyTwoFactor(ctx context.Context, req TwoFAValidationRequest) (result Result, err error) {
	f := newFlow(opVerify2FA, StateChallengeIssued)
	defer func() {
		if err != nil {
			f.reject()
		}
		recordOutcome(opVerify2FA, err, f.state.String())
	}()

	email, err := credential.ParseEmail(req.Email)
	if err != nil {
		return Result{}, apperrors.InvalidCredentials(err)
	}
	attemptID, err := twofa.ParseLoginAttemptID(req.LoginAttemptID)
	if err != nil {
		return Result{}, apperrors.InvalidCredentials(err)
	}
	code, err := twofa.ParseTwoFACode(req.TwoFACode)
	if err != nil {
		return Result{}, apperrors.InvalidCredentials(err)
	}

	storedID, storedCode, err := s.services.Challenges.GetCode(ctx, email)
	if err != nil {
		if errors.Is(err, twofa.ErrLoginAttemptIDNotFound) {
			return Result{}, apperrors.IncorrectCredentials(err)
		}
		return Result{}, s.unexpected(opVerify2FA, err, "failed to load 2fa challenge")
	}
	if storedID != attemptID || storedCode != code {
		slog.Warn("2FA verification rejected", "email", email)
		return Result{}, apperrors.IncorrectCredentials(nil)
	}
	if err := f.advance(StateChallengeVerified); err != nil {
		return Result{}, s.unexpected(opVerify2FA, err, "login flow")
	}

	result, err = s.authenticate(ctx, f, email)
	if err != nil {
		return Result{}, err
	}
	if err := s.services.Challenges.RemoveCode(ctx, email); err != nil {
		return Result{}, s.unexpected(opVerify2FA, err, "failed to remove 2fa challenge")
	}
	return result, nil
}

func (s *LoginFlowService) Logout(ctx context.Context, token string) (err error) {
	defer func() { recordOutcome(opLogout, err, "success") }()

	if token == "" {
		return apperrors.New(apperrors.ErrCodeMissingToken, "missing token")
	}
	if _, err := s.services.TokenService.VerifyToken(ctx, token); err != nil {
		return apperrors.InvalidToken(err)
	}

	if !s.logoutBanCheck {
		if err := s.services.BannedTokens.AddToken(ctx, token); err != nil {
			return s.unexpected(opLogout, err, "failed to ban token")
		}
		return nil
	}

	added, err := s.services.BannedTokens.BanToken(ctx, token)
	if err != nil {
		return s.unexpected(opLogout, err, "failed to ban token")
	}
	if !added {
		return apperrors.InvalidToken(errors.New("token already revoked"))
	}
	return nil
}

func (s *LoginFlowService) VerifyToken(ctx context.Context, token string) (claims *tg.Claims, err error) {
	defer func() { recordOutcome(opVerifyToken, err, "success") }()

	claims, err = s.services.TokenService.VerifyToken(ctx, token)
	if err != nil {
		return nil, apperrors.InvalidToken(err)
	}

	banned, err := s.services.BannedTokens.ContainsToken(ctx, token)
	if err != nil {
		return nil, s.unexpected(opVerifyToken, err, "failed to check banned tokens")
	}
	if banned {
		return nil, apperrors.InvalidToken(errors.New("token revoked"))
	}
	return claims, nil
}

// EnsureNotRevoked rejects tokens banned by logout. It is meant for
// middleware that has already checked the signature, and records no outcome
// metric.
func (s *LoginFlowService) EnsureNotRevoked(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.InvalidToken(errors.New("missing token"))
	}
	banned, err := s.services.BannedTokens.ContainsToken(ctx, token)
	if err != nil {
		return s.unexpected("revocation_check", err, "failed to check banned tokens")
	}
	if banned {
		return apperrors.InvalidToken(errors.New("token revoked"))
	}
	return nil
}

func (s *LoginFlowService) unexpected(operation string, err error, message string) error {
	slog.Error("Unexpected auth flow error", "operation", operation, "detail", message, "err", err)
	return apperrors.InternalWrap(err, fmt.Sprintf("%s: %s", operation, message))
}
