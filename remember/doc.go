// Package remember issues and verifies remember tokens for silent re-login.
//
// # Token format
//
// Tokens are HS256-signed JWTs carrying the bound username, a unique JTI,
// and an expiry derived from the configured TTL. They contain no password
// material.
//
// # Architecture boundaries
//
// This package owns token issuance and verification only. Whether a
// verified username may actually open a session is decided by the session
// registry.
//
// # What this package must NOT do
//
//   - Persist tokens; callers hold them.
//   - Import the root authcore package.
//   - Log token contents or signing keys at runtime.
package remember
