// Package password implements the credential hashing contract with Argon2id.
//
// # Digest format
//
// Digests are raw argon2id key bytes. Salt and digest are stored as separate
// columns by the credential store, so no PHC string encoding is applied.
// Hashing is deterministic for a fixed (password, salt) pair, which is what
// lets verification re-derive and compare.
//
// # Architecture boundaries
//
// This package owns hashing, verification, and salt generation only.
// Password policy and account state are enforced by the account directory.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials; callers supply bytes and receive bytes.
//   - Import any other authcore package.
//   - Log plaintext passwords or derived digests at runtime.
package password
