package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Input failed credential validation (malformed email, short password,
	// undecodable request, bad attempt id or code format).
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	// Well-formed input that does not authenticate.
	ErrCodeIncorrectCredentials ErrorCode = "INCORRECT_CREDENTIALS"
	ErrCodeUserAlreadyExists    ErrorCode = "USER_ALREADY_EXISTS"
	ErrCodeMissingToken         ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidToken         ErrorCode = "INVALID_TOKEN"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and optional details
type Error struct {
	Code    ErrorCode              // Unique error code
	Message string                 // Human-readable error message
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	return MapErrorCodeToHTTPStatus(e.Code)
}

// New creates a new Error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with code and message
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
// Returns ErrCodeInternal if the error is not a structured Error.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// MapErrorCodeToHTTPStatus maps error codes to HTTP status codes
func MapErrorCodeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidCredentials, ErrCodeMissingToken:
		return http.StatusBadRequest
	case ErrCodeIncorrectCredentials, ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeUserAlreadyExists:
		return http.StatusConflict
	case ErrCodeInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text sent to clients for a code. Internal causes are
// never exposed.
func PublicMessage(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidCredentials:
		return "Invalid credentials"
	case ErrCodeIncorrectCredentials:
		return "Incorrect credentials"
	case ErrCodeUserAlreadyExists:
		return "User already exists"
	case ErrCodeMissingToken:
		return "Missing token"
	case ErrCodeInvalidToken:
		return "Invalid token"
	default:
		return "Unexpected error"
	}
}

// InvalidCredentials wraps a validation failure.
func InvalidCredentials(err error) *Error {
	return &Error{Code: ErrCodeInvalidCredentials, Message: "invalid credentials", Err: err}
}

// IncorrectCredentials wraps an authentication failure.
func IncorrectCredentials(err error) *Error {
	return &Error{Code: ErrCodeIncorrectCredentials, Message: "incorrect credentials", Err: err}
}

// InvalidToken wraps a token verification failure.
func InvalidToken(err error) *Error {
	return &Error{Code: ErrCodeInvalidToken, Message: "invalid token", Err: err}
}

// InternalWrap wraps an internal error
func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}
