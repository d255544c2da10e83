// Package authcore provides an embeddable identity, session, and
// authorization core: account lifecycle over a pluggable credential store,
// role and permission modeling with colon-prefix hierarchy, and session
// admission under two mutually exclusive concurrency contexts
// (single-active-session and many-concurrent-sessions).
//
// The package is designed for concurrent embedders: Facade, registry, and
// directory methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Failure model
//
// Session admission deliberately uses two failure channels. A false return
// without error means the operation was not applicable (unknown account,
// already logged in, capacity exhausted) and the caller may try again
// differently. A typed error means the attempt was admissible but blocked by
// policy (locked account, expired credentials, disabled role) and the caller
// should branch its presentation on the error kind. The two channels are
// never collapsed.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Facade], [Builder], [Config],
// the registries, and value types (Account, Session, MetricsSnapshot).
// Reference implementations of the external contracts live in sub-packages:
// credstore (CredentialStore), password (PasswordHasher), remember (silent
// re-login tokens). Event dispatch lives under internal/ and is never
// exported directly.
//
// # What this package must NOT do
//
//   - Expose store clients or hashing internals in its public API.
//   - Hold the session-context lock across store or hasher calls.
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
