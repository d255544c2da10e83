package authcore

import "errors"

var (
	// ErrUsernameEmpty is an exported constant or variable used by the identity engine.
	ErrUsernameEmpty = errors.New("username cannot be empty")
	// ErrPasswordEmpty is an exported constant or variable used by the identity engine.
	ErrPasswordEmpty = errors.New("password cannot be empty")
	// ErrRoleEmpty is an exported constant or variable used by the identity engine.
	ErrRoleEmpty = errors.New("role name cannot be empty")
	// ErrPermissionEmpty is an exported constant or variable used by the identity engine.
	ErrPermissionEmpty = errors.New("permission name cannot be empty")

	// ErrUnknownAccount is an exported constant or variable used by the identity engine.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrAccountExists is an exported constant or variable used by the identity engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountLocked is an exported constant or variable used by the identity engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is an exported constant or variable used by the identity engine.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrExcessiveAttempts is an exported constant or variable used by the identity engine.
	ErrExcessiveAttempts = errors.New("excessive login attempts")
	// ErrConcurrentAccess is an exported constant or variable used by the identity engine.
	ErrConcurrentAccess = errors.New("concurrent session access")

	// ErrIncorrectCredentials is an exported constant or variable used by the identity engine.
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	// ErrCredentialsExpired is an exported constant or variable used by the identity engine.
	ErrCredentialsExpired = errors.New("credentials expired")

	// ErrUnauthenticated is an exported constant or variable used by the identity engine.
	ErrUnauthenticated = errors.New("no authenticated identity")

	// ErrRoleDisabled is an exported constant or variable used by the identity engine.
	ErrRoleDisabled = errors.New("role disabled")
	// ErrRoleProtected is an exported constant or variable used by the identity engine.
	ErrRoleProtected = errors.New("role is protected and cannot be disabled")
	// ErrRoleImmutable is an exported constant or variable used by the identity engine.
	ErrRoleImmutable = errors.New("role does not accept permissions")
	// ErrRoleUpdateRejected is an exported constant or variable used by the identity engine.
	ErrRoleUpdateRejected = errors.New("role update rejected")

	// ErrStoreUnavailable is an exported constant or variable used by the identity engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrStoreTableMissing is an exported constant or variable used by the identity engine.
	ErrStoreTableMissing = errors.New("credential store table missing")
	// ErrHashingFailure is an exported constant or variable used by the identity engine.
	ErrHashingFailure = errors.New("password hashing failed")

	// ErrPromptCancelled is an exported constant or variable used by the identity engine.
	ErrPromptCancelled = errors.New("credential prompt cancelled")
	// ErrNotInitialized is an exported constant or variable used by the identity engine.
	ErrNotInitialized = errors.New("identity facade not initialized")
)

// IsAccountError describes the isaccounterror operation and its observable behavior.
//
// IsAccountError may return an error when input validation, dependency calls, or security checks fail.
// IsAccountError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func IsAccountError(err error) bool {
	return errors.Is(err, ErrUnknownAccount) ||
		errors.Is(err, ErrAccountLocked) ||
		errors.Is(err, ErrAccountDisabled) ||
		errors.Is(err, ErrExcessiveAttempts) ||
		errors.Is(err, ErrConcurrentAccess)
}

// IsCredentialsError describes the iscredentialserror operation and its observable behavior.
//
// IsCredentialsError may return an error when input validation, dependency calls, or security checks fail.
// IsCredentialsError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func IsCredentialsError(err error) bool {
	return errors.Is(err, ErrIncorrectCredentials) ||
		errors.Is(err, ErrCredentialsExpired)
}

// IsAuthenticationError reports whether err belongs to the authentication
// taxonomy (account errors and credentials errors).
func IsAuthenticationError(err error) bool {
	return IsAccountError(err) || IsCredentialsError(err)
}

// IsStoreError describes the isstoreerror operation and its observable behavior.
//
// IsStoreError may return an error when input validation, dependency calls, or security checks fail.
// IsStoreError does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreTableMissing)
}
