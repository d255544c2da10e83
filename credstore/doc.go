// Package credstore ships two reference implementations of the
// authcore.CredentialStore contract: an in-memory store for tests and
// embedders without persistence, and a Redis-backed store for processes
// that share accounts.
//
// # Contract
//
// Both stores key usernames case-insensitively, return
// authcore.ErrUnknownAccount for missing rows, authcore.ErrAccountExists on
// duplicate creation, and surface an uninstalled namespace from Ready as
// authcore.ErrStoreTableMissing.
//
// # Architecture boundaries
//
// This package owns persistence only. Hashing, policy checks, and session
// state never live here; rows carry opaque salt and digest bytes.
//
// # What this package must NOT do
//
//   - Validate passwords or interpret digests.
//   - Cache rows; the directory re-reads on every call.
//   - Import any authcore package other than the root types.
package credstore
