// Package tokengenerator issues and verifies the HS256 session tokens handed
// out after a successful login, and sets them as cookies.
//
// Verification here only covers signature, algorithm, structure and expiry.
// Whether a token was revoked is the caller's concern (see bannedtoken).
package tokengenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-auth/pkg/credential"
)

const DefaultTokenExpiry = 10 * time.Minute

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrSigning      = errors.New("failed to sign token")
)

// Claims struct for JWT claims. Subject holds the user's email.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenValue is a signed token and the instant it stops being valid.
type TokenValue struct {
	Token  string
	Expiry time.Time
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	IssueToken(ctx context.Context, email credential.Email) (TokenValue, error)
	// VerifyToken wraps every failure in ErrInvalidToken.
	VerifyToken(ctx context.Context, token string) (*Claims, error)
}

// SecretProvider supplies the HMAC signing key.
type SecretProvider interface {
	SigningKey(ctx context.Context) ([]byte, error)
}

// StaticSecretProvider serves a fixed key, usually read from configuration.
type StaticSecretProvider struct {
	Secret string
}

func (p StaticSecretProvider) SigningKey(ctx context.Context) ([]byte, error) {
	if p.Secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	return []byte(p.Secret), nil
}

// JwtTokenService implements TokenService with HS256 JWTs.
type JwtTokenService struct {
	secrets  SecretProvider
	expiry   time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// JwtTokenServiceOption is a function that configures a JwtTokenService
type JwtTokenServiceOption func(*JwtTokenService)

func WithTokenExpiry(expiry time.Duration) JwtTokenServiceOption {
	return func(s *JwtTokenService) {
		if expiry > 0 {
			s.expiry = expiry
		}
	}
}

// WithIssuer sets iss on issued tokens and requires it on verification.
func WithIssuer(issuer string) JwtTokenServiceOption {
	return func(s *JwtTokenService) {
		s.issuer = issuer
	}
}

// WithAudience sets aud on issued tokens and requires it on verification.
func WithAudience(audience string) JwtTokenServiceOption {
	return func(s *JwtTokenService) {
		s.audience = audience
	}
}

func WithClock(now func() time.Time) JwtTokenServiceOption {
	return func(s *JwtTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewJwtTokenService(secrets SecretProvider, opts ...JwtTokenServiceOption) *JwtTokenService {
	s := &JwtTokenService{
		secrets: secrets,
		expiry:  DefaultTokenExpiry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Expiry is the lifetime given to every issued token.
func (s *JwtTokenService) Expiry() time.Duration {
	return s.expiry
}

func (s *JwtTokenService) IssueToken(ctx context.Context, email credential.Email) (TokenValue, error) {
	key, err := s.secrets.SigningKey(ctx)
	if err != nil {
		return TokenValue{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	now := s.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return TokenValue{}, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return TokenValue{Token: ss, Expiry: claims.ExpiresAt.Time}, nil
}

func (s *JwtTokenService) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	key, err := s.secrets.SigningKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
