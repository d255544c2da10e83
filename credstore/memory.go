package credstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eastwyck/authcore"
)

// Memory is an in-process CredentialStore. All rows live in one map guarded
// by an RWMutex; every read hands out deep copies so callers can never
// mutate stored state in place.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]authcore.AccountRecord
}

// NewMemory describes the newmemory operation and its observable behavior.
//
// NewMemory may return an error when input validation, dependency calls, or security checks fail.
// NewMemory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemory() *Memory {
	return &Memory{rows: make(map[string]authcore.AccountRecord)}
}

func key(username string) string {
	return strings.ToLower(username)
}

func copyRecord(rec authcore.AccountRecord) authcore.AccountRecord {
	out := rec
	out.Salt = append([]byte(nil), rec.Salt...)
	out.Hash = append([]byte(nil), rec.Hash...)
	return out
}

// Ready describes the ready operation and its observable behavior.
//
// Ready may return an error when input validation, dependency calls, or security checks fail.
// Ready does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) Ready(ctx context.Context) error {
	return ctx.Err()
}

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) CreateAccount(ctx context.Context, rec authcore.AccountRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := key(rec.Username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[k]; ok {
		return fmt.Errorf("%w: %s", authcore.ErrAccountExists, rec.Username)
	}
	m.rows[k] = copyRecord(rec)
	return nil
}

// FindAccount describes the findaccount operation and its observable behavior.
//
// FindAccount may return an error when input validation, dependency calls, or security checks fail.
// FindAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) FindAccount(ctx context.Context, username string) (authcore.AccountRecord, error) {
	if err := ctx.Err(); err != nil {
		return authcore.AccountRecord{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.rows[key(username)]
	if !ok {
		return authcore.AccountRecord{}, fmt.Errorf("%w: %s", authcore.ErrUnknownAccount, username)
	}
	return copyRecord(rec), nil
}

// UpdateAccount describes the updateaccount operation and its observable behavior.
//
// UpdateAccount may return an error when input validation, dependency calls, or security checks fail.
// UpdateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) UpdateAccount(ctx context.Context, username string, update authcore.AccountUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := key(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.rows[k]
	if !ok {
		return fmt.Errorf("%w: %s", authcore.ErrUnknownAccount, username)
	}

	applyUpdate(&rec, update)
	m.rows[k] = copyRecord(rec)
	return nil
}

func applyUpdate(rec *authcore.AccountRecord, update authcore.AccountUpdate) {
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
		rec.Salt = append([]byte(nil), update.Salt...)
	}
	if update.Hash != nil {
		rec.Hash = append([]byte(nil), update.Hash...)
	}
}

// DeleteAccount describes the deleteaccount operation and its observable behavior.
//
// DeleteAccount may return an error when input validation, dependency calls, or security checks fail.
// DeleteAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) DeleteAccount(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k := key(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[k]; !ok {
		return fmt.Errorf("%w: %s", authcore.ErrUnknownAccount, username)
	}
	delete(m.rows, k)
	return nil
}

// ListUsernames describes the listusernames operation and its observable behavior.
//
// ListUsernames may return an error when input validation, dependency calls, or security checks fail.
// ListUsernames does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Memory) ListUsernames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
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
