package authcore

import (
	"context"
	"errors"

	internalaudit "github.com/eastwyck/authcore/internal/audit"
	"github.com/eastwyck/authcore/password"
	"github.com/eastwyck/authcore/remember"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	store       CredentialStore
	hasher      PasswordHasher
	authorities AuthorityRegistry
	sink        EventSink

	built *Facade
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithHasher describes the withhasher operation and its observable behavior.
//
// WithHasher may return an error when input validation, dependency calls, or security checks fail.
// WithHasher does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuthorities describes the withauthorities operation and its observable behavior.
//
// WithAuthorities may return an error when input validation, dependency calls, or security checks fail.
// WithAuthorities does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuthorities(reg AuthorityRegistry) *Builder {
	b.authorities = reg
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink may return an error when input validation, dependency calls, or security checks fail.
// WithEventSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build wires the facade: one AccountDirectory, one SessionRegistry derived
// from it, and the shared RoleCatalog. Build is idempotent; a second call
// returns the already-built facade unchanged and never replaces the wiring.
func (b *Builder) Build() (*Facade, error) {
	if b.built != nil {
		return b.built, nil
	}

	cfg := cloneConfig(b.config)

	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2id(password.Config{})
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	authorities := b.authorities
	if authorities == nil {
		authorities = NewStaticAuthorities(PermissionRead, PermissionCreate, PermissionEdit)
	}

	sink := b.sink
	if sink == nil {
		sink = internalaudit.NoOpSink{}
	}

	audit := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)
	metrics := NewMetrics(cfg.Metrics)

	catalog := NewRoleCatalog(authorities)
	directory := newAccountDirectory(b.store, hasher, audit, metrics, cfg.Directory)
	registry := newSessionRegistry(directory, catalog, audit, metrics, cfg.Sessions)

	facade := &Facade{
		config:    cfg,
		catalog:   catalog,
		directory: directory,
		registry:  registry,
		audit:     audit,
		metrics:   metrics,
	}

	if cfg.Remember.Enabled {
		rm, err := remember.NewManager(remember.Config{
			SigningKey: cloneBytes(cfg.Remember.SigningKey),
			TTL:        cfg.Remember.TTL,
		})
		if err != nil {
			return nil, err
		}
		facade.remember = rm
	}

	facade.initialized = true
	b.built = facade

	return facade, nil
}

// Facade composes the role catalog, account directory, and session registry
// behind one initialization point. A zero Facade is unusable: every
// operation fails fast with [ErrNotInitialized] until the value comes from
// [Builder.Build].
type Facade struct {
	config    Config
	catalog   *RoleCatalog
	directory *AccountDirectory
	registry  *SessionRegistry
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	remember  *remember.Manager

	initialized bool
}

func (f *Facade) ready() error {
	if f == nil || !f.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Roles returns the shared role catalog.
func (f *Facade) Roles() (*RoleCatalog, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return f.catalog, nil
}

// Directory returns the account directory.
func (f *Facade) Directory() (*AccountDirectory, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return f.directory, nil
}

// Sessions returns the session registry.
func (f *Facade) Sessions() (*SessionRegistry, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return f.registry, nil
}

// Metrics returns the counter set, nil when metrics are disabled by config.
func (f *Facade) Metrics() (*Metrics, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return f.metrics, nil
}

// NewLoginFlow builds a login flow around the given prompt, wired to this
// facade's directory and registry.
func (f *Facade) NewLoginFlow(prompt CredentialPrompt) (*LoginFlow, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	return newLoginFlow(prompt, f.directory, f.registry, f.metrics, f.config.LoginFlow), nil
}

// CreateAccount delegates to [AccountDirectory.Create].
func (f *Facade) CreateAccount(ctx context.Context, username string, password []byte, role string) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	return f.directory.Create(ctx, username, password, role)
}

// DeleteAccount delegates to [AccountDirectory.Delete].
func (f *Facade) DeleteAccount(ctx context.Context, username string) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	return f.directory.Delete(ctx, username)
}

// Account delegates to [AccountDirectory.Get].
func (f *Facade) Account(ctx context.Context, username string) (Account, error) {
	if err := f.ready(); err != nil {
		return Account{}, err
	}
	return f.directory.Get(ctx, username)
}

// Login delegates to [SessionRegistry.Login].
func (f *Facade) Login(ctx context.Context, username string, multi bool) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	return f.registry.Login(ctx, username, multi)
}

// Logout delegates to [SessionRegistry.Logout].
func (f *Facade) Logout(ctx context.Context, username string, multi bool) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	return f.registry.Logout(ctx, username, multi), nil
}

// IsLoggedIn delegates to [SessionRegistry.IsLoggedIn].
func (f *Facade) IsLoggedIn(username string, multi bool) (bool, error) {
	if err := f.ready(); err != nil {
		return false, err
	}
	return f.registry.IsLoggedIn(username, multi), nil
}

// MetricsSnapshot reads the current counter values. An uninitialized facade
// reports an empty snapshot rather than failing, so exporters can always
// scrape.
func (f *Facade) MetricsSnapshot() MetricsSnapshot {
	if f.ready() != nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return f.metrics.Snapshot()
}

// AuditDropped reports how many events the dispatcher has dropped under
// backpressure.
func (f *Facade) AuditDropped() uint64 {
	if f.ready() != nil {
		return 0
	}
	return f.audit.Dropped()
}

// Close drains and stops the event dispatcher. The facade stays usable for
// state queries but emits no further events.
func (f *Facade) Close() error {
	if err := f.ready(); err != nil {
		return err
	}
	f.audit.Close()
	return nil
}
