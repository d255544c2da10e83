// Package authz provides the per-session authorization context: a bounded
// cache of permission decisions attached to exactly one session and discarded
// with it. Decisions never outlive the session they were made for.
package authz

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultSize bounds the decision cache when the caller passes a
// non-positive size.
const defaultSize = 128

// Context caches permission decisions for a single session. It is safe for
// concurrent use.
type Context struct {
	cache *lru.Cache[string, bool]
}

// New builds a decision cache holding at most size entries.
func New(size int) *Context {
	if size <= 0 {
		size = defaultSize
	}
	// lru.New only fails on size <= 0, which is ruled out above.
	cache, _ := lru.New[string, bool](size)
	return &Context{cache: cache}
}

// Lookup returns a previously recorded decision for the permission name.
func (c *Context) Lookup(permission string) (allowed, ok bool) {
	if c == nil {
		return false, false
	}
	return c.cache.Get(permission)
}

// Record stores a decision for the permission name, evicting the least
// recently used entry when full.
func (c *Context) Record(permission string, allowed bool) {
	if c == nil {
		return
	}
	c.cache.Add(permission, allowed)
}

// Purge drops every recorded decision.
func (c *Context) Purge() {
	if c == nil {
		return
	}
	c.cache.Purge()
}

// Len reports the number of recorded decisions.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
