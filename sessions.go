package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eastwyck/authcore/authz"
	internalaudit "github.com/eastwyck/authcore/internal/audit"
)

// Session is an in-memory record that a username is currently authenticated.
// It holds a snapshot of the role taken at login time; later catalog or
// account mutations do not affect a live session, and a session stays valid
// even if the underlying account is deleted.
type Session struct {
	ID       string
	Username string
	Role     RoleSnapshot
	OpenedAt time.Time

	authz *authz.Context
}

// HasPermission reports whether the session's role snapshot effectively
// holds the named permission. Decisions are memoized in the session's
// authorization context.
func (s *Session) HasPermission(name string) bool {
	if s == nil {
		return false
	}
	if allowed, ok := s.authz.Lookup(name); ok {
		return allowed
	}
	allowed := s.Role.HasPermission(name)
	s.authz.Record(name, allowed)
	return allowed
}

// Authz returns the session's authorization context.
func (s *Session) Authz() *authz.Context {
	if s == nil {
		return nil
	}
	return s.authz
}

type sessionState struct {
	single *Session
	multi  map[string]*Session
}

// SessionRegistry owns session admission, creation, and teardown under two
// independent contexts selected per call by the multi flag: a single-session
// scalar slot and a capacity-bounded multi-session map keyed by username.
//
// One RWMutex guards both contexts. The lock is never held across
// CredentialStore or PasswordHasher calls: Login prechecks admission under a
// read lock, performs store I/O unlocked, then re-checks and installs as one
// atomic region under the write lock.
type SessionRegistry struct {
	directory *AccountDirectory
	catalog   *RoleCatalog
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	cfg       SessionConfig
	now       func() time.Time

	mu    sync.RWMutex
	state sessionState
}

func newSessionRegistry(
	directory *AccountDirectory,
	catalog *RoleCatalog,
	audit *internalaudit.Dispatcher,
	metrics *Metrics,
	cfg SessionConfig,
) *SessionRegistry {
	return &SessionRegistry{
		directory: directory,
		catalog:   catalog,
		audit:     audit,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
		state:     sessionState{multi: make(map[string]*Session)},
	}
}

// admissible reports whether a login for the username could currently be
// installed under the selected context. Caller must hold at least the read
// lock.
func (r *SessionRegistry) admissible(username string, multi bool) bool {
	if multi {
		if _, ok := r.state.multi[username]; ok {
			return false
		}
		return r.cfg.MaxSessions < 0 || len(r.state.multi) < r.cfg.MaxSessions
	}
	return r.state.single == nil || r.state.single.Username != username
}

// Login admits the username into the selected context.
//
// The failure model is two-channel and deliberate. A false return without
// error means the login was not applicable: empty username, unknown account,
// unknown or unregistered role, already logged in under this context, or
// multi-session capacity exhausted. A typed error means the attempt was
// admissible but blocked by account policy, checked in this order:
// [ErrAccountLocked], then [ErrCredentialsExpired], then [ErrRoleDisabled].
// Store failures propagate as [ErrStoreUnavailable] wraps.
//
// A single-context login by a different username supersedes the current
// holder: the replaced session is closed and its closed event emitted.
func (r *SessionRegistry) Login(ctx context.Context, username string, multi bool) (bool, error) {
	username = normalizeUsername(username)
	if username == "" {
		return false, nil
	}
	scope := sessionContextName(multi)

	r.mu.RLock()
	ok := r.admissible(username, multi)
	r.mu.RUnlock()
	if !ok {
		r.metrics.Inc(MetricLoginNotAdmitted)
		return false, nil
	}

	// Store I/O happens with no lock held.
	account, err := r.directory.Get(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			r.metrics.Inc(MetricLoginFailure)
			r.emitLoginFailure(ctx, username, scope, err)
			return false, nil
		}
		return false, err
	}

	if account.Locked {
		err := fmt.Errorf("%w: %s", ErrAccountLocked, username)
		r.metrics.Inc(MetricLoginBlocked)
		r.emitLoginFailure(ctx, username, scope, err)
		return false, err
	}
	if account.PasswordExpired(r.now()) {
		err := fmt.Errorf("%w: %s", ErrCredentialsExpired, username)
		r.metrics.Inc(MetricLoginBlocked)
		r.emitLoginFailure(ctx, username, scope, err)
		return false, err
	}

	role, found := r.catalog.Lookup(account.Role)
	if !found {
		r.metrics.Inc(MetricLoginFailure)
		emitEvent(r.audit, ctx, eventLoginFailure, false, username, "", scope, nil, func() map[string]string {
			return map[string]string{"reason": "unknown_role", "role": account.Role}
		})
		return false, nil
	}
	if !role.Enabled() {
		err := fmt.Errorf("%w: %s", ErrRoleDisabled, role.Name())
		r.metrics.Inc(MetricLoginBlocked)
		r.emitLoginFailure(ctx, username, scope, err)
		return false, err
	}

	session := &Session{
		ID:       uuid.NewString(),
		Username: username,
		Role:     role.snapshot(),
		OpenedAt: r.now().UTC(),
		authz:    authz.New(r.cfg.AuthzCacheSize),
	}

	var superseded *Session

	r.mu.Lock()
	if !r.admissible(username, multi) {
		r.mu.Unlock()
		r.metrics.Inc(MetricLoginNotAdmitted)
		return false, nil
	}
	if multi {
		r.state.multi[username] = session
	} else {
		superseded = r.state.single
		r.state.single = session
	}
	r.mu.Unlock()

	if superseded != nil {
		superseded.authz.Purge()
		r.metrics.Inc(MetricSessionSuperseded)
		r.emitSessionClosed(ctx, superseded, scope)
	}

	r.metrics.Inc(MetricLoginSuccess)
	r.metrics.Inc(MetricSessionOpened)
	r.emitSessionOpened(ctx, session, scope)
	return true, nil
}

// Logout closes the session for the username in the selected context. An
// empty username under the single context targets the current holder. It
// reports false when no session matched; that is never an error. Closing a
// single-context session purges its authorization context.
func (r *SessionRegistry) Logout(ctx context.Context, username string, multi bool) bool {
	username = normalizeUsername(username)
	scope := sessionContextName(multi)

	var closed *Session

	r.mu.Lock()
	if multi {
		if s, ok := r.state.multi[username]; ok {
			closed = s
			delete(r.state.multi, username)
		}
	} else {
		s := r.state.single
		if s != nil && (username == "" || s.Username == username) {
			closed = s
			r.state.single = nil
		}
	}
	r.mu.Unlock()

	if closed == nil {
		r.metrics.Inc(MetricLogoutMissed)
		return false
	}

	if !multi {
		closed.authz.Purge()
	}
	r.metrics.Inc(MetricSessionClosed)
	r.emitSessionClosed(ctx, closed, scope)
	return true
}

// IsLoggedIn reports whether the username holds a live session in the
// selected context.
func (r *SessionRegistry) IsLoggedIn(username string, multi bool) bool {
	username = normalizeUsername(username)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if multi {
		_, ok := r.state.multi[username]
		return ok
	}
	return r.state.single != nil && r.state.single.Username == username
}

// Session returns the live session for the username in the selected context.
func (r *SessionRegistry) Session(username string, multi bool) (*Session, bool) {
	username = normalizeUsername(username)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if multi {
		s, ok := r.state.multi[username]
		return s, ok
	}
	if r.state.single != nil && r.state.single.Username == username {
		return r.state.single, true
	}
	return nil, false
}

// CurrentSession returns the single-context session, if any.
func (r *SessionRegistry) CurrentSession() (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.single, r.state.single != nil
}

// SessionCount reports the number of live sessions in the selected context.
func (r *SessionRegistry) SessionCount(multi bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if multi {
		return len(r.state.multi)
	}
	if r.state.single != nil {
		return 1
	}
	return 0
}

// IsNewSessionAllowed reports whether the selected context could admit any
// new session right now. The single context always can; the multi context
// is bounded by capacity, with -1 unbounded and 0 closed to all logins.
func (r *SessionRegistry) IsNewSessionAllowed(multi bool) bool {
	if !multi {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg.MaxSessions < 0 || len(r.state.multi) < r.cfg.MaxSessions
}

// RequireAdmin ensures the single-context session belongs to an ADMIN. When
// it already does, the call is a no-op. Otherwise the given flow is driven
// with a role predicate until an ADMIN identity logs in, the attempt cap is
// hit, or the prompt cancels.
func (r *SessionRegistry) RequireAdmin(ctx context.Context, flow *LoginFlow) (*Session, error) {
	if current, ok := r.CurrentSession(); ok && current.Role.Name == RoleAdmin {
		return current, nil
	}

	emitEvent(r.audit, ctx, eventAdminOverrideStarted, true, "", "", contextSingle, nil, nil)

	session, err := flow.Run(ctx,
		WithPredicate(func(s *Session) bool { return s.Role.Name == RoleAdmin }),
	)
	if err != nil {
		emitEvent(r.audit, ctx, eventAdminOverrideFailure, false, "", "", contextSingle, err, nil)
		return nil, err
	}

	emitEvent(r.audit, ctx, eventAdminOverrideSuccess, true, session.Username, session.ID, contextSingle, nil, nil)
	return session, nil
}

// RequireAndVerifyAdmin is [SessionRegistry.RequireAdmin] with forced
// re-authentication: an already-admin holder of the single context is logged
// out and must log back in as the same username.
func (r *SessionRegistry) RequireAndVerifyAdmin(ctx context.Context, flow *LoginFlow) (*Session, error) {
	current, ok := r.CurrentSession()
	if !ok || current.Role.Name != RoleAdmin {
		return r.RequireAdmin(ctx, flow)
	}

	username := current.Username
	emitEvent(r.audit, ctx, eventUserVerifyStarted, true, username, current.ID, contextSingle, nil, nil)

	r.Logout(ctx, username, false)

	session, err := flow.Run(ctx,
		WithUsername(username),
		WithPredicate(func(s *Session) bool {
			return s.Username == username && s.Role.Name == RoleAdmin
		}),
	)
	if err != nil {
		emitEvent(r.audit, ctx, eventUserVerifyFailure, false, username, "", contextSingle, err, nil)
		return nil, err
	}

	emitEvent(r.audit, ctx, eventUserVerifySuccess, true, username, session.ID, contextSingle, nil, nil)
	return session, nil
}

func (r *SessionRegistry) emitSessionOpened(ctx context.Context, s *Session, scope string) {
	event := eventSessionOpenedSingle
	if scope == contextMulti {
		event = eventSessionOpenedMulti
	}
	emitEvent(r.audit, ctx, eventLoginSuccess, true, s.Username, s.ID, scope, nil, nil)
	emitEvent(r.audit, ctx, event, true, s.Username, s.ID, scope, nil, func() map[string]string {
		return map[string]string{"role": s.Role.Name}
	})
}

func (r *SessionRegistry) emitSessionClosed(ctx context.Context, s *Session, scope string) {
	event := eventSessionClosedSingle
	if scope == contextMulti {
		event = eventSessionClosedMulti
	}
	emitEvent(r.audit, ctx, event, true, s.Username, s.ID, scope, nil, nil)
}

func (r *SessionRegistry) emitLoginFailure(ctx context.Context, username, scope string, err error) {
	emitEvent(r.audit, ctx, eventLoginFailure, false, username, "", scope, err, nil)
}
