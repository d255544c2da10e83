package authcore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	// RoleAdmin is an exported constant or variable used by the identity engine.
	RoleAdmin = "ADMIN"
	// RoleEditor is an exported constant or variable used by the identity engine.
	RoleEditor = "EDITOR"
	// RoleAuthor is an exported constant or variable used by the identity engine.
	RoleAuthor = "AUTHOR"
	// RoleBasic is an exported constant or variable used by the identity engine.
	RoleBasic = "BASIC"
	// RoleNone is an exported constant or variable used by the identity engine.
	RoleNone = "NONE"
)

const (
	// PermissionRead is an exported constant or variable used by the identity engine.
	PermissionRead = "read"
	// PermissionCreate is an exported constant or variable used by the identity engine.
	PermissionCreate = "create"
	// PermissionEdit is an exported constant or variable used by the identity engine.
	PermissionEdit = "edit"
)

// Role is a named, enable-able permission set. Permission names may be
// hierarchical with a single-level colon separator: holding "file" implies
// every "file:*" permission. The five built-in roles seeded by
// [NewRoleCatalog] are protected and can never be disabled; the NONE role
// additionally never accepts permissions.
//
// All methods are safe for concurrent use.
type Role struct {
	name        string
	protected   bool
	authorities AuthorityRegistry

	mu      sync.RWMutex
	perms   map[string]struct{}
	enabled bool
}

// NewRole builds a standalone unprotected role validating grants against the
// given authority registry. Attach it to a catalog with
// [RoleCatalog.Register].
func NewRole(name string, authorities AuthorityRegistry) (*Role, error) {
	if name == "" {
		return nil, ErrRoleEmpty
	}
	return newRole(name, false, authorities), nil
}

func newRole(name string, protected bool, authorities AuthorityRegistry) *Role {
	return &Role{
		name:        name,
		protected:   protected,
		authorities: authorities,
		perms:       make(map[string]struct{}),
		enabled:     true,
	}
}

// Name returns the role name, unique within its catalog.
func (r *Role) Name() string {
	return r.name
}

// Protected reports whether the role is one of the five built-ins.
func (r *Role) Protected() bool {
	return r.protected
}

// Enabled describes the enabled operation and its observable behavior.
//
// Enabled may return an error when input validation, dependency calls, or security checks fail.
// Enabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Role) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Enable describes the enable operation and its observable behavior.
//
// Enable may return an error when input validation, dependency calls, or security checks fail.
// Enable does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Role) Enable() {
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
}

// Disable marks the role disabled so that logins resolving it are rejected.
// It fails with [ErrRoleProtected] for the five built-in roles.
func (r *Role) Disable() error {
	if r.protected {
		return fmt.Errorf("%w: %s", ErrRoleProtected, r.name)
	}
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
	return nil
}

// HasPermission reports whether the role effectively holds the named
// permission: an exact match, or a held prefix before the first colon.
func (r *Role) HasPermission(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return holds(r.perms, name)
}

func holds(perms map[string]struct{}, name string) bool {
	if _, ok := perms[name]; ok {
		return true
	}
	if i := strings.IndexByte(name, ':'); i >= 0 {
		_, ok := perms[name[:i]]
		return ok
	}
	return false
}

// AddPermission grants the named permission. It fails with [ErrRoleImmutable]
// on the NONE role and [ErrPermissionEmpty] on an empty name. It returns
// false without error when the permission is already effectively held or
// when the authority registry does not recognize the name.
func (r *Role) AddPermission(name string) (bool, error) {
	return r.add(name, false)
}

// AddImplicitPermission is [Role.AddPermission] without the already-implied
// short-circuit, so a permission can be explicitly recorded even when a
// parent prefix already grants it.
func (r *Role) AddImplicitPermission(name string) (bool, error) {
	return r.add(name, true)
}

func (r *Role) add(name string, implicit bool) (bool, error) {
	if r.name == RoleNone {
		return false, fmt.Errorf("%w: %s", ErrRoleImmutable, r.name)
	}
	if name == "" {
		return false, ErrPermissionEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !implicit && holds(r.perms, name) {
		return false, nil
	}
	if r.authorities == nil || !r.authorities.Exists(name) {
		return false, nil
	}

	r.perms[name] = struct{}{}
	return true, nil
}

// RemovePermission removes an explicitly-held entry and reports whether one
// was removed. It does not undo hierarchical implication from a held parent.
func (r *Role) RemovePermission(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.perms[name]; !ok {
		return false
	}
	delete(r.perms, name)
	return true
}

// Permissions returns a sorted copy of the explicitly-held permission names.
func (r *Role) Permissions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.perms))
	for p := range r.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// grant installs a permission without authority validation. Catalog seeding only.
func (r *Role) grant(name string) {
	r.mu.Lock()
	r.perms[name] = struct{}{}
	r.mu.Unlock()
}

// snapshot copies the role state for attachment to a Session at login time.
func (r *Role) snapshot() RoleSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perms := make(map[string]struct{}, len(r.perms))
	for p := range r.perms {
		perms[p] = struct{}{}
	}
	return RoleSnapshot{Name: r.name, perms: perms}
}

// RoleSnapshot is the immutable copy of a [Role] held by a [Session].
// Later catalog mutations do not affect it.
type RoleSnapshot struct {
	Name  string
	perms map[string]struct{}
}

// HasPermission describes the haspermission operation and its observable behavior.
//
// HasPermission may return an error when input validation, dependency calls, or security checks fail.
// HasPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s RoleSnapshot) HasPermission(name string) bool {
	return holds(s.perms, name)
}

// Permissions describes the permissions operation and its observable behavior.
//
// Permissions may return an error when input validation, dependency calls, or security checks fail.
// Permissions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s RoleSnapshot) Permissions() []string {
	out := make([]string, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

type roleOpKind uint8

const (
	roleOpAdd roleOpKind = iota
	roleOpAddImplicit
	roleOpRemove
)

type roleOp struct {
	kind roleOpKind
	name string
}

// RoleUpdate is a fluent modification builder. Operations are accumulated by
// Add, AddImplicit, and Remove and executed in order by Apply, which fails
// hard, naming the role and permission, on the first operation that would
// otherwise be a silent no-op.
type RoleUpdate struct {
	role *Role
	ops  []roleOp
}

// Update returns a fresh [RoleUpdate] for the role.
func (r *Role) Update() *RoleUpdate {
	return &RoleUpdate{role: r}
}

// Add describes the add operation and its observable behavior.
//
// Add may return an error when input validation, dependency calls, or security checks fail.
// Add does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (u *RoleUpdate) Add(name string) *RoleUpdate {
	u.ops = append(u.ops, roleOp{kind: roleOpAdd, name: name})
	return u
}

// AddImplicit describes the addimplicit operation and its observable behavior.
//
// AddImplicit may return an error when input validation, dependency calls, or security checks fail.
// AddImplicit does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (u *RoleUpdate) AddImplicit(name string) *RoleUpdate {
	u.ops = append(u.ops, roleOp{kind: roleOpAddImplicit, name: name})
	return u
}

// Remove describes the remove operation and its observable behavior.
//
// Remove may return an error when input validation, dependency calls, or security checks fail.
// Remove does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (u *RoleUpdate) Remove(name string) *RoleUpdate {
	u.ops = append(u.ops, roleOp{kind: roleOpRemove, name: name})
	return u
}

// Apply executes the accumulated operations in order. It stops at the first
// failure: validation errors propagate as-is, and an operation that reports
// false fails with [ErrRoleUpdateRejected] naming the role and permission.
func (u *RoleUpdate) Apply() error {
	for _, op := range u.ops {
		var (
			ok  bool
			err error
		)
		switch op.kind {
		case roleOpAdd:
			ok, err = u.role.AddPermission(op.name)
		case roleOpAddImplicit:
			ok, err = u.role.AddImplicitPermission(op.name)
		case roleOpRemove:
			ok = u.role.RemovePermission(op.name)
		}
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: role %q permission %q", ErrRoleUpdateRejected, u.role.Name(), op.name)
		}
	}
	return nil
}
