// Package twofa stores pending two-factor login challenges.
//
// A challenge is created when a user who requires a second factor passes the
// password check. It binds the user's email to a LoginAttemptID (returned to
// the client) and a TwoFACode (sent out of band). At most one challenge
// exists per email; adding a new one replaces the previous one.
//
// Repositories:
//   - InMemoryChallengeRepository: map guarded by a RWMutex, optional TTL
//   - FileChallengeRepository: JSON file, for single-node development setups
//   - RedisChallengeRepository: one hash per email with a key TTL
package twofa
