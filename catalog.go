package authcore

import (
	"fmt"
	"sort"
	"sync"
)

// RoleCatalog holds every role known to the identity engine, keyed by name.
// A catalog is seeded with the five protected roles and accepts additional
// caller-defined roles through Define.
//
// All methods are safe for concurrent use.
type RoleCatalog struct {
	authorities AuthorityRegistry

	mu    sync.RWMutex
	roles map[string]*Role
}

// NewRoleCatalog builds a catalog seeded with ADMIN, EDITOR, AUTHOR, BASIC
// and NONE. ADMIN receives every permission the authority registry names,
// EDITOR receives edit, create and read, AUTHOR create and read, BASIC read,
// and NONE nothing. Seeding bypasses authority validation so the built-in
// grants survive a registry that does not list the canonical names.
func NewRoleCatalog(authorities AuthorityRegistry) *RoleCatalog {
	c := &RoleCatalog{
		authorities: authorities,
		roles:       make(map[string]*Role),
	}

	seed := func(name string, perms ...string) *Role {
		r := newRole(name, true, authorities)
		for _, p := range perms {
			r.grant(p)
		}
		c.roles[name] = r
		return r
	}

	admin := seed(RoleAdmin)
	if authorities != nil {
		for _, p := range authorities.AllNames() {
			admin.grant(p)
		}
	}
	seed(RoleEditor, PermissionEdit, PermissionCreate, PermissionRead)
	seed(RoleAuthor, PermissionCreate, PermissionRead)
	seed(RoleBasic, PermissionRead)
	seed(RoleNone)

	return c
}

// Create returns the role of the given name, defining a new unprotected role
// when none exists yet. Calling it again with the same name returns the same
// role. It fails with [ErrRoleEmpty] on an empty name.
func (c *RoleCatalog) Create(name string) (*Role, error) {
	if name == "" {
		return nil, ErrRoleEmpty
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.roles[name]; ok {
		return r, nil
	}
	r := newRole(name, false, c.authorities)
	c.roles[name] = r
	return r, nil
}

// Register installs an externally-built role and reports whether it was
// added. An existing role of the same name is never overwritten.
func (c *RoleCatalog) Register(r *Role) bool {
	if r == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.roles[r.name]; ok {
		return false
	}
	c.roles[r.name] = r
	return true
}

// Lookup finds a role by name.
func (c *RoleCatalog) Lookup(name string) (*Role, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.roles[name]
	return r, ok
}

// Remove deletes an unprotected role and reports whether one was removed.
// It fails with [ErrRoleProtected] for the five built-ins.
func (c *RoleCatalog) Remove(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.roles[name]
	if !ok {
		return false, nil
	}
	if r.protected {
		return false, fmt.Errorf("%w: %s", ErrRoleProtected, name)
	}
	delete(c.roles, name)
	return true, nil
}

// Names returns the sorted names of every role in the catalog.
func (c *RoleCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.roles))
	for name := range c.roles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StaticAuthorities is a fixed [AuthorityRegistry] backed by a name set.
type StaticAuthorities struct {
	names map[string]struct{}
}

// NewStaticAuthorities builds a registry recognizing exactly the given names.
func NewStaticAuthorities(names ...string) *StaticAuthorities {
	s := &StaticAuthorities{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

// Exists describes the exists operation and its observable behavior.
//
// Exists may return an error when input validation, dependency calls, or security checks fail.
// Exists does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *StaticAuthorities) Exists(name string) bool {
	_, ok := s.names[name]
	return ok
}

// AllNames describes the allnames operation and its observable behavior.
//
// AllNames may return an error when input validation, dependency calls, or security checks fail.
// AllNames does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *StaticAuthorities) AllNames() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
