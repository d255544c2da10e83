package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/eastwyck/authcore/internal/audit"
)

// Account is the persisted identity record loaded from a [CredentialStore].
// It is an immutable snapshot; field changes are made by re-issuing
// [AccountDirectory] calls that overwrite the stored row.
type Account struct {
	Username          string
	CreatedAt         time.Time
	Locked            bool
	PasswordExpires   bool
	PasswordExpiresAt time.Time
	Role              string
}

// PasswordExpired reports whether the account's password is expired at the
// given instant. Accounts created by [AccountDirectory.Create] carry the
// far-future sentinel timestamp and never report expired until one is set.
func (a Account) PasswordExpired(now time.Time) bool {
	return a.PasswordExpires && now.After(a.PasswordExpiresAt)
}

// AccountRecord is the full stored row: the account snapshot plus the
// credential material the directory needs for password verification.
type AccountRecord struct {
	Account
	Salt []byte
	Hash []byte
}

// AccountUpdate is a single-field update applied through
// [CredentialStore.UpdateAccount]. Nil pointer fields are left untouched.
type AccountUpdate struct {
	Role              *string
	Locked            *bool
	PasswordExpires   *bool
	PasswordExpiresAt *time.Time
	Salt              []byte
	Hash              []byte
}

// CredentialStore is the persistence boundary that callers must implement to
// integrate authcore with their account database. Implementations must return
// [ErrUnknownAccount] from FindAccount, UpdateAccount, and DeleteAccount when
// the username does not exist, [ErrAccountExists] from CreateAccount on a
// duplicate, and [ErrStoreTableMissing] from Ready when the backing table or
// namespace has not been installed. Username matching is case-insensitive.
type CredentialStore interface {
	Ready(ctx context.Context) error
	CreateAccount(ctx context.Context, rec AccountRecord) error
	FindAccount(ctx context.Context, username string) (AccountRecord, error)
	UpdateAccount(ctx context.Context, username string, update AccountUpdate) error
	DeleteAccount(ctx context.Context, username string) error
	ListUsernames(ctx context.Context) ([]string, error)
}

// PasswordHasher is the hashing boundary. Hash must be deterministic for a
// given (password, salt) pair so that stored digests can be re-computed for
// verification.
type PasswordHasher interface {
	Hash(password, salt []byte) ([]byte, error)
	Verify(password, salt, digest []byte) (bool, error)
	NewSalt(size int) ([]byte, error)
}

// AuthorityRegistry is the source of truth for which permission names exist.
// A permission can only be granted to a [Role] if the registry confirms it.
type AuthorityRegistry interface {
	Exists(name string) bool
	AllNames() []string
}

// Credentials is a collected credential token: username, raw password bytes,
// and the remember flag. The password bytes must be wiped after every use,
// regardless of outcome.
type Credentials struct {
	Username string
	Password []byte
	Remember bool
}

// Wipe zeroes the password bytes in place. Safe on a nil receiver.
func (c *Credentials) Wipe() {
	if c == nil {
		return
	}
	for i := range c.Password {
		c.Password[i] = 0
	}
}

// Event is a structured lifecycle event emitted by the engine.
type Event = internalaudit.Event

// EventSink receives [Event] values from the engine's event dispatcher.
type EventSink = internalaudit.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [EventSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [EventSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
