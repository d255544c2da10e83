package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalaudit "github.com/eastwyck/authcore/internal/audit"
)

// passwordExpiryHorizonYears is the sentinel offset stamped on accounts whose
// password never expires.
const passwordExpiryHorizonYears = 1000

// AccountDirectory manages persisted accounts on top of a caller-supplied
// [CredentialStore] and [PasswordHasher]. Usernames are matched
// case-insensitively; the directory lowercases them before every store call.
//
// The directory holds no locks of its own. Atomicity of individual account
// operations is the store's contract.
type AccountDirectory struct {
	store      CredentialStore
	hasher     PasswordHasher
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	saltLength int
	now        func() time.Time
}

func newAccountDirectory(
	store CredentialStore,
	hasher PasswordHasher,
	audit *internalaudit.Dispatcher,
	metrics *Metrics,
	cfg DirectoryConfig,
) *AccountDirectory {
	return &AccountDirectory{
		store:      store,
		hasher:     hasher,
		audit:      audit,
		metrics:    metrics,
		saltLength: cfg.SaltLength,
		now:        time.Now,
	}
}

// wrapStoreErr keeps the contract sentinels intact and folds everything else
// into ErrStoreUnavailable with the cause preserved.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrAccountExists) ||
		errors.Is(err, ErrStoreTableMissing) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Ready verifies the backing store is reachable and installed. A missing
// table or namespace surfaces as [ErrStoreTableMissing].
func (d *AccountDirectory) Ready(ctx context.Context) error {
	return wrapStoreErr(d.store.Ready(ctx))
}

// Create registers a new account with the given role and an initial password
// that never expires. It reports false without error when the username is
// already taken. Validation failures and store or hashing breakdowns are
// returned as typed errors. The password bytes are not wiped; ownership
// stays with the caller.
func (d *AccountDirectory) Create(ctx context.Context, username string, password []byte, role string) (bool, error) {
	username = normalizeUsername(username)
	if username == "" {
		return false, ErrUsernameEmpty
	}
	if len(password) == 0 {
		return false, ErrPasswordEmpty
	}
	if role == "" {
		return false, ErrRoleEmpty
	}

	salt, err := d.hasher.NewSalt(d.saltLength)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	digest, err := d.hasher.Hash(password, salt)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	now := d.now().UTC()
	rec := AccountRecord{
		Account: Account{
			Username:          username,
			CreatedAt:         now,
			Locked:            false,
			PasswordExpires:   false,
			PasswordExpiresAt: now.AddDate(passwordExpiryHorizonYears, 0, 0),
			Role:              role,
		},
		Salt: salt,
		Hash: digest,
	}

	if err := d.store.CreateAccount(ctx, rec); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return false, nil
		}
		return false, wrapStoreErr(err)
	}

	d.metrics.Inc(MetricAccountCreated)
	emitEvent(d.audit, ctx, eventAccountCreated, true, username, "", "", nil, func() map[string]string {
		return map[string]string{"role": role}
	})
	return true, nil
}

// Exists reports whether an account of the given username is registered.
func (d *AccountDirectory) Exists(ctx context.Context, username string) (bool, error) {
	_, err := d.store.FindAccount(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return false, nil
		}
		return false, wrapStoreErr(err)
	}
	return true, nil
}

// Get loads the account snapshot for the username. A missing account is
// always reported as [ErrUnknownAccount], never as an absent value.
func (d *AccountDirectory) Get(ctx context.Context, username string) (Account, error) {
	username = normalizeUsername(username)
	rec, err := d.store.FindAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, username)
		}
		return Account{}, wrapStoreErr(err)
	}
	return rec.Account, nil
}

// SetRole assigns a new role name to the account.
func (d *AccountDirectory) SetRole(ctx context.Context, username, role string) error {
	if role == "" {
		return ErrRoleEmpty
	}
	return wrapStoreErr(d.store.UpdateAccount(ctx, normalizeUsername(username), AccountUpdate{
		Role: &role,
	}))
}

// SetPassword replaces the account's credential material with a fresh salt
// and digest. The password bytes are not wiped; ownership stays with the
// caller.
func (d *AccountDirectory) SetPassword(ctx context.Context, username string, password []byte) error {
	if len(password) == 0 {
		return ErrPasswordEmpty
	}

	salt, err := d.hasher.NewSalt(d.saltLength)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	digest, err := d.hasher.Hash(password, salt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}

	return wrapStoreErr(d.store.UpdateAccount(ctx, normalizeUsername(username), AccountUpdate{
		Salt: salt,
		Hash: digest,
	}))
}

// SetLockStatus locks or unlocks the account.
func (d *AccountDirectory) SetLockStatus(ctx context.Context, username string, locked bool) error {
	return wrapStoreErr(d.store.UpdateAccount(ctx, normalizeUsername(username), AccountUpdate{
		Locked: &locked,
	}))
}

// SetPasswordExpiration marks the account's password as expiring at the
// given instant.
func (d *AccountDirectory) SetPasswordExpiration(ctx context.Context, username string, at time.Time) error {
	expires := true
	at = at.UTC()
	return wrapStoreErr(d.store.UpdateAccount(ctx, normalizeUsername(username), AccountUpdate{
		PasswordExpires:   &expires,
		PasswordExpiresAt: &at,
	}))
}

// DisablePasswordExpiration clears expiry and re-stamps the far-future
// sentinel timestamp.
func (d *AccountDirectory) DisablePasswordExpiration(ctx context.Context, username string) error {
	expires := false
	horizon := d.now().UTC().AddDate(passwordExpiryHorizonYears, 0, 0)
	return wrapStoreErr(d.store.UpdateAccount(ctx, normalizeUsername(username), AccountUpdate{
		PasswordExpires:   &expires,
		PasswordExpiresAt: &horizon,
	}))
}

// CheckPassword verifies a candidate password against the stored digest.
// A wrong password is reported as false without error; a missing account,
// store breakdown, or hashing breakdown is a typed error. The password
// bytes are not wiped; ownership stays with the caller.
func (d *AccountDirectory) CheckPassword(ctx context.Context, username string, password []byte) (bool, error) {
	username = normalizeUsername(username)
	rec, err := d.store.FindAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return false, fmt.Errorf("%w: %s", ErrUnknownAccount, username)
		}
		return false, wrapStoreErr(err)
	}

	ok, err := d.hasher.Verify(password, rec.Salt, rec.Hash)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrHashingFailure, err)
	}
	return ok, nil
}

// Delete removes the account and reports whether one was removed. A missing
// account is false without error.
func (d *AccountDirectory) Delete(ctx context.Context, username string) (bool, error) {
	username = normalizeUsername(username)
	if err := d.store.DeleteAccount(ctx, username); err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return false, nil
		}
		return false, wrapStoreErr(err)
	}

	d.metrics.Inc(MetricAccountDeleted)
	emitEvent(d.audit, ctx, eventAccountDeleted, true, username, "", "", nil, nil)
	return true, nil
}

// ListUsernames returns every registered username, sorted by the store.
func (d *AccountDirectory) ListUsernames(ctx context.Context) ([]string, error) {
	names, err := d.store.ListUsernames(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return names, nil
}
