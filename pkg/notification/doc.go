// Package notification delivers out-of-band messages, such as two-factor
// login codes, to users.
//
// Implementations:
//   - EmailNotifier sends mail over SMTP with go-mail
//   - LogNotifier writes the message to the structured log, for development
//   - MockNotifier records messages for tests
package notification
