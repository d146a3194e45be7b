// Package loginflow orchestrates signup, login, two-factor verification,
// logout and token verification on top of the user, challenge, banned token
// and token services.
//
// Every login walks an explicit state machine:
//
//	Start -> CredentialsChecked -> NoChallengeRequired -> Authenticated
//	Start -> CredentialsChecked -> ChallengeIssued
//	ChallengeIssued -> ChallengeVerified -> Authenticated   (VerifyTwoFactor)
//
// Any non-terminal state may move to Rejected. Errors returned by the service
// are *errors.Error values from pkg/errors; their code decides the HTTP status.
package loginflow
