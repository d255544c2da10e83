package authcore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is a minimal in-process CredentialStore for engine tests. The
// reference stores under credstore/ have their own tests; root tests use
// this fake to stay cycle-free.
type memStore struct {
	mu      sync.RWMutex
	rows    map[string]AccountRecord
	failAll error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]AccountRecord)}
}

func (m *memStore) Ready(ctx context.Context) error {
	return m.failAll
}

func (m *memStore) CreateAccount(ctx context.Context, rec AccountRecord) error {
	if m.failAll != nil {
		return m.failAll
	}
	k := strings.ToLower(rec.Username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[k]; ok {
		return fmt.Errorf("%w: %s", ErrAccountExists, rec.Username)
	}
	m.rows[k] = rec
	return nil
}

func (m *memStore) FindAccount(ctx context.Context, username string) (AccountRecord, error) {
	if m.failAll != nil {
		return AccountRecord{}, m.failAll
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.rows[strings.ToLower(username)]
	if !ok {
		return AccountRecord{}, fmt.Errorf("%w: %s", ErrUnknownAccount, username)
	}
	return rec, nil
}

func (m *memStore) UpdateAccount(ctx context.Context, username string, update AccountUpdate) error {
	if m.failAll != nil {
		return m.failAll
	}
	k := strings.ToLower(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, username)
	}
	if update.Role != nil {
		rec.Role = *update.Role
	}
	if update.Locked != nil {
		rec.Locked = *update.Locked
	}
	if update.PasswordExpires != nil {
		rec.PasswordExpires = *update.PasswordExpires
	}
	if update.PasswordExpiresAt != nil {
		rec.PasswordExpiresAt = *update.PasswordExpiresAt
	}
	if update.Salt != nil {
		rec.Salt = update.Salt
	}
	if update.Hash != nil {
		rec.Hash = update.Hash
	}
	m.rows[k] = rec
	return nil
}

func (m *memStore) DeleteAccount(ctx context.Context, username string) error {
	if m.failAll != nil {
		return m.failAll
	}
	k := strings.ToLower(username)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[k]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, username)
	}
	delete(m.rows, k)
	return nil
}

func (m *memStore) ListUsernames(ctx context.Context) ([]string, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rows))
	for k := range m.rows {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// fakeHasher is a deterministic PasswordHasher: the digest is salt plus
// password. Fast and stable enough for contract tests.
type fakeHasher struct {
	failHash bool
}

func (h *fakeHasher) Hash(password, salt []byte) ([]byte, error) {
	if h.failHash {
		return nil, fmt.Errorf("hasher exploded")
	}
	out := append([]byte(nil), salt...)
	return append(out, password...), nil
}

func (h *fakeHasher) Verify(password, salt, digest []byte) (bool, error) {
	if h.failHash {
		return false, fmt.Errorf("hasher exploded")
	}
	want, _ := h.Hash(password, salt)
	return bytes.Equal(want, digest), nil
}

func (h *fakeHasher) NewSalt(size int) ([]byte, error) {
	return bytes.Repeat([]byte{0x5a}, size), nil
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Audit.Enabled = false
	return cfg
}

func newTestFacade(t *testing.T, cfg Config) (*Facade, *memStore) {
	t.Helper()

	store := newMemStore()
	facade, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithHasher(&fakeHasher{}).
		WithAuthorities(NewStaticAuthorities(
			PermissionRead, PermissionCreate, PermissionEdit,
			"file", "file:write", "network:read",
		)).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return facade, store
}

func mustCreateAccount(t *testing.T, f *Facade, username, password, role string) {
	t.Helper()

	ok, err := f.CreateAccount(context.Background(), username, []byte(password), role)
	if err != nil {
		t.Fatalf("CreateAccount(%s) failed: %v", username, err)
	}
	if !ok {
		t.Fatalf("CreateAccount(%s) reported duplicate", username)
	}
}

// scriptedPrompt replays a fixed sequence of credential answers and records
// every PromptContext it was shown.
type scriptedPrompt struct {
	answers []*Credentials
	errs    []error
	calls   []PromptContext
}

func (p *scriptedPrompt) Request(ctx context.Context, pc PromptContext) (*Credentials, error) {
	p.calls = append(p.calls, pc)
	i := len(p.calls) - 1
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i >= len(p.answers) {
		return nil, ErrPromptCancelled
	}
	return p.answers[i], nil
}

func creds(username, password string) *Credentials {
	return &Credentials{Username: username, Password: []byte(password)}
}

func pastTime() time.Time {
	return time.Now().Add(-time.Hour)
}
