// Package errors provides the coded error type shared by the auth flow and its
// HTTP adapter.
//
// Every failure the login flow reports to a caller carries one of a small set
// of codes. The HTTP layer turns a code into a status with
// MapErrorCodeToHTTPStatus and into a response body with PublicMessage, so the
// two never drift apart.
//
//	err := errors.Wrap(storeErr, errors.ErrCodeInternal, "failed to add user")
//	if errors.IsCode(err, errors.ErrCodeUserAlreadyExists) {
//		// ...
//	}
//
// Only ErrCodeInternal hides its cause from callers; its details belong in
// server logs.
package errors
