package authcore

import (
	"context"
	"fmt"
	"sync"
)

// ActiveIdentity is a per-caller convenience wrapper bound to at most one
// username in one session context. It starts anonymous, binds on a
// successful Login, and unbinds on Logout. When the facade was built with
// remember tokens enabled and the credentials carry the remember flag, the
// identity retains a signed token so LoginRemembered can silently
// re-authenticate without the password.
//
// Credential password bytes are wiped after every Login attempt, success or
// failure.
type ActiveIdentity struct {
	facade *Facade
	multi  bool

	mu       sync.Mutex
	username string
	token    string
}

// NewActiveIdentity returns an anonymous identity bound to the selected
// session context.
func (f *Facade) NewActiveIdentity(multi bool) (*ActiveIdentity, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return &ActiveIdentity{facade: f, multi: multi}, nil
}

// Login authenticates the credentials and binds the identity to the
// username. It fails with [ErrConcurrentAccess] when the chosen context
// already holds a live session rather than silently re-authenticating, with
// [ErrIncorrectCredentials] on a bad password, and with the registry's
// typed policy errors when the account is administratively blocked.
func (id *ActiveIdentity) Login(ctx context.Context, creds *Credentials) error {
	defer creds.Wipe()

	if creds == nil {
		return ErrIncorrectCredentials
	}
	username := normalizeUsername(creds.Username)
	if username == "" {
		return ErrUsernameEmpty
	}
	if len(creds.Password) == 0 {
		return ErrPasswordEmpty
	}

	id.mu.Lock()
	defer id.mu.Unlock()

	if err := id.checkSlotFree(username); err != nil {
		return err
	}

	match, err := id.facade.directory.CheckPassword(ctx, username, creds.Password)
	if err != nil {
		return err
	}
	if !match {
		return fmt.Errorf("%w: %s", ErrIncorrectCredentials, username)
	}

	if err := id.admit(ctx, username); err != nil {
		return err
	}

	if creds.Remember && id.facade.remember != nil {
		token, err := id.facade.remember.Issue(username)
		if err == nil {
			id.token = token
		}
	}
	return nil
}

// LoginRemembered silently re-authenticates using the retained remember
// token. It fails with [ErrIncorrectCredentials] when no valid token is
// held, and otherwise behaves like Login without a password check.
func (id *ActiveIdentity) LoginRemembered(ctx context.Context) error {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.token == "" || id.facade.remember == nil {
		return ErrIncorrectCredentials
	}
	username, err := id.facade.remember.Verify(id.token)
	if err != nil {
		id.token = ""
		return fmt.Errorf("%w: %v", ErrIncorrectCredentials, err)
	}

	if err := id.checkSlotFree(username); err != nil {
		return err
	}
	return id.admit(ctx, username)
}

// checkSlotFree enforces the no-silent-reauthentication rule. Caller holds
// id.mu.
func (id *ActiveIdentity) checkSlotFree(username string) error {
	if id.multi {
		if id.facade.registry.IsLoggedIn(username, true) {
			return fmt.Errorf("%w: %s", ErrConcurrentAccess, username)
		}
		return nil
	}
	if _, ok := id.facade.registry.CurrentSession(); ok {
		return ErrConcurrentAccess
	}
	return nil
}

// admit opens the session and binds the username. Caller holds id.mu.
func (id *ActiveIdentity) admit(ctx context.Context, username string) error {
	admitted, err := id.facade.registry.Login(ctx, username, id.multi)
	if err != nil {
		return err
	}
	if !admitted {
		// Lost an admission race after the slot check.
		return fmt.Errorf("%w: %s", ErrConcurrentAccess, username)
	}
	id.username = username
	return nil
}

// Logout closes the bound session and returns the identity to anonymous.
// The remember token, if any, is kept so LoginRemembered still works. It
// reports false when the identity was anonymous or its session was already
// gone.
func (id *ActiveIdentity) Logout(ctx context.Context) bool {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.username == "" {
		return false
	}
	closed := id.facade.registry.Logout(ctx, id.username, id.multi)
	id.username = ""
	return closed
}

// Forget discards the retained remember token.
func (id *ActiveIdentity) Forget() {
	id.mu.Lock()
	id.token = ""
	id.mu.Unlock()
}

// IsAnonymous reports whether no username is bound.
func (id *ActiveIdentity) IsAnonymous() bool {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.username == ""
}

// IsAuthenticated reports whether the bound username currently holds a live
// session in the identity's context. A bound identity whose session was
// closed elsewhere is no longer authenticated.
func (id *ActiveIdentity) IsAuthenticated() bool {
	id.mu.Lock()
	username := id.username
	id.mu.Unlock()
	if username == "" {
		return false
	}
	return id.facade.registry.IsLoggedIn(username, id.multi)
}

// Username returns the bound username, if any.
func (id *ActiveIdentity) Username() (string, bool) {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.username, id.username != ""
}

// Session returns the bound username's live session, if any.
func (id *ActiveIdentity) Session() (*Session, bool) {
	id.mu.Lock()
	username := id.username
	id.mu.Unlock()
	if username == "" {
		return nil, false
	}
	return id.facade.registry.Session(username, id.multi)
}

// HasPermission reports whether the identity's live session holds the named
// permission. Anonymous identities hold nothing.
func (id *ActiveIdentity) HasPermission(name string) bool {
	s, ok := id.Session()
	if !ok {
		return false
	}
	return s.HasPermission(name)
}
