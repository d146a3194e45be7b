// Package credential holds the validated value types for the login credentials
// a caller supplies: an email address and a password.
//
// Values can only be obtained through ParseEmail and ParsePassword, so holding
// an Email or a Password means the input already passed validation.
package credential

import (
	"errors"
	"log/slog"
	"strings"
)

// MinPasswordLength is the minimum number of characters (after trimming
// surrounding whitespace) a password must have.
const MinPasswordLength = 8

var (
	ErrInvalidEmail     = errors.New("invalid email")
	ErrPasswordTooShort = errors.New("password too short")
)

// Email is a syntactically accepted email address. Two emails are equal
// when their trimmed strings are equal.
type Email struct {
	value string
}

// ParseEmail trims raw and accepts it if it is non-empty and contains "@".
func ParseEmail(raw string) (Email, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return Email{}, ErrInvalidEmail
	}
	return Email{value: trimmed}, nil
}

// MustParseEmail is ParseEmail for fixtures and tests.
func MustParseEmail(raw string) Email {
	e, err := ParseEmail(raw)
	if err != nil {
		panic(err)
	}
	return e
}

func (e Email) String() string {
	return e.value
}

func (e Email) IsZero() bool {
	return e.value == ""
}

// Password is a password of acceptable length. The value is kept exactly as
// supplied; only the length check ignores surrounding whitespace.
type Password struct {
	value string
}

func ParsePassword(raw string) (Password, error) {
	if len(strings.TrimSpace(raw)) < MinPasswordLength {
		return Password{}, ErrPasswordTooShort
	}
	return Password{value: raw}, nil
}

// MustParsePassword is ParsePassword for fixtures and tests.
func MustParsePassword(raw string) Password {
	p, err := ParsePassword(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Reveal returns the raw password. Only hashing code should call it.
func (p Password) Reveal() string {
	return p.value
}

// Equal compares two passwords by value.
func (p Password) Equal(other Password) bool {
	return p.value == other.value
}

func (p Password) String() string {
	return "[REDACTED]"
}

// LogValue keeps passwords out of structured logs.
func (p Password) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}
