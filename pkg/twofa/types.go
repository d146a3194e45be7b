package twofa

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	TwoFACodeLength = 6

	// issuer for the throwaway TOTP secrets behind each code
	TOTP_ISSUER = "simple-auth"
	PERIOD      = 300
)

var (
	ErrInvalidLoginAttemptID = errors.New("invalid login attempt id")
	ErrInvalidTwoFACode      = errors.New("invalid 2fa code")
)

// LoginAttemptID identifies one pending challenge. It is always a UUID; the
// string is kept as supplied.
type LoginAttemptID struct {
	value string
}

func ParseLoginAttemptID(raw string) (LoginAttemptID, error) {
	if _, err := uuid.Parse(raw); err != nil {
		return LoginAttemptID{}, fmt.Errorf("%w: %v", ErrInvalidLoginAttemptID, err)
	}
	return LoginAttemptID{value: raw}, nil
}

// NewLoginAttemptID returns a random v4 UUID.
func NewLoginAttemptID() LoginAttemptID {
	return LoginAttemptID{value: uuid.New().String()}
}

func (id LoginAttemptID) String() string {
	return id.value
}

// TwoFACode is the one-time code sent to the user. Exactly six characters
// after trimming surrounding whitespace.
type TwoFACode struct {
	value string
}

func ParseTwoFACode(raw string) (TwoFACode, error) {
	if utf8.RuneCountInString(strings.TrimSpace(raw)) != TwoFACodeLength {
		return TwoFACode{}, ErrInvalidTwoFACode
	}
	return TwoFACode{value: raw}, nil
}

// GenerateTwoFACode derives a six digit code from a fresh random TOTP secret,
// so consecutive codes are unrelated.
func GenerateTwoFACode() (TwoFACode, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      TOTP_ISSUER,
		AccountName: uuid.NewString(),
	})
	if err != nil {
		return TwoFACode{}, fmt.Errorf("generate totp secret: %w", err)
	}
	code, err := totp.GenerateCodeCustom(key.Secret(), time.Now().UTC(), totp.ValidateOpts{
		Period:    PERIOD,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return TwoFACode{}, fmt.Errorf("generate 2fa passcode: %w", err)
	}
	return TwoFACode{value: code}, nil
}

func (c TwoFACode) String() string {
	return c.value
}
