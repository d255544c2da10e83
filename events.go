package authcore

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/eastwyck/authcore/internal/audit"
)

const (
	eventLoginSuccess         = "login_success"
	eventLoginFailure         = "login_failure"
	eventSessionOpenedSingle  = "session_opened_single"
	eventSessionOpenedMulti   = "session_opened_multi"
	eventSessionClosedSingle  = "session_closed_single"
	eventSessionClosedMulti   = "session_closed_multi"
	eventAdminOverrideStarted = "admin_override_started"
	eventAdminOverrideSuccess = "admin_override_success"
	eventAdminOverrideFailure = "admin_override_failure"
	eventUserVerifyStarted    = "user_verify_started"
	eventUserVerifySuccess    = "user_verify_success"
	eventUserVerifyFailure    = "user_verify_failure"
	eventAccountCreated       = "account_created"
	eventAccountDeleted       = "account_deleted"
)

const (
	contextSingle = "single"
	contextMulti  = "multi"
)

// EventErrorCode defines a public type used by authcore APIs.
//
// EventErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventErrorCode string

const (
	eventErrUnknownAccount       EventErrorCode = "unknown_account"
	eventErrAccountLocked        EventErrorCode = "account_locked"
	eventErrAccountDisabled      EventErrorCode = "account_disabled"
	eventErrCredentialsExpired   EventErrorCode = "credentials_expired"
	eventErrIncorrectCredentials EventErrorCode = "incorrect_credentials"
	eventErrRoleDisabled         EventErrorCode = "role_disabled"
	eventErrConcurrentAccess     EventErrorCode = "concurrent_access"
	eventErrExcessiveAttempts    EventErrorCode = "excessive_attempts"
	eventErrPromptCancelled      EventErrorCode = "prompt_cancelled"
	eventErrUnauthenticated      EventErrorCode = "unauthenticated"
	eventErrStoreUnavailable     EventErrorCode = "store_unavailable"
	eventErrInternal             EventErrorCode = "internal_error"
)

func sessionContextName(multi bool) string {
	if multi {
		return contextMulti
	}
	return contextSingle
}

func emitEvent(
	d *internalaudit.Dispatcher,
	ctx context.Context,
	eventType string,
	success bool,
	username string,
	sessionID string,
	sessionContext string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if d == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := Event{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		Username:       username,
		SessionID:      sessionID,
		SessionContext: sessionContext,
		Success:        success,
		Metadata:       metadata,
	}
	if code := eventErrorCode(err); code != "" {
		event.Error = string(code)
	}

	d.Emit(ctx, event)
}

func eventErrorCode(err error) EventErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnknownAccount):
		return eventErrUnknownAccount
	case errors.Is(err, ErrAccountLocked):
		return eventErrAccountLocked
	case errors.Is(err, ErrAccountDisabled):
		return eventErrAccountDisabled
	case errors.Is(err, ErrCredentialsExpired):
		return eventErrCredentialsExpired
	case errors.Is(err, ErrIncorrectCredentials):
		return eventErrIncorrectCredentials
	case errors.Is(err, ErrRoleDisabled):
		return eventErrRoleDisabled
	case errors.Is(err, ErrConcurrentAccess):
		return eventErrConcurrentAccess
	case errors.Is(err, ErrExcessiveAttempts):
		return eventErrExcessiveAttempts
	case errors.Is(err, ErrPromptCancelled):
		return eventErrPromptCancelled
	case errors.Is(err, ErrUnauthenticated):
		return eventErrUnauthenticated
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrStoreTableMissing):
		return eventErrStoreUnavailable
	default:
		return eventErrInternal
	}
}
