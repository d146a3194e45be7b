package twofa

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/simple-auth/pkg/credential"
)

// ErrLoginAttemptIDNotFound is returned when no challenge exists for an email.
var ErrLoginAttemptIDNotFound = errors.New("login attempt id not found")

// ChallengeRepository stores at most one pending challenge per email.
type ChallengeRepository interface {
	// AddCode stores or overwrites the challenge for email.
	AddCode(ctx context.Context, email credential.Email, attemptID LoginAttemptID, code TwoFACode) error
	// GetCode returns ErrLoginAttemptIDNotFound if no challenge exists.
	GetCode(ctx context.Context, email credential.Email) (LoginAttemptID, TwoFACode, error)
	// RemoveCode deletes the challenge. Removing a missing challenge is not an error.
	RemoveCode(ctx context.Context, email credential.Email) error
}

// Challenge is the persisted form of a pending challenge.
type Challenge struct {
	Email          string    `json:"email"`
	LoginAttemptID string    `json:"login_attempt_id"`
	Code           string    `json:"code"`
	CreatedAt      time.Time `json:"created_at"`
}
