package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/eastwyck/authcore"
)

const (
	defaultPrefix = "authcore"
	schemaVersion = "1"
)

// Redis is a CredentialStore backed by a Redis instance. Each account is one
// JSON blob under <prefix>:account:<username>, with a set of usernames under
// <prefix>:names and a schema marker under <prefix>:schema that Ready checks
// before the store is first used.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis describes the newredis operation and its observable behavior.
//
// NewRedis may return an error when input validation, dependency calls, or security checks fail.
// NewRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) accountKey(username string) string {
	return r.prefix + ":account:" + key(username)
}

func (r *Redis) namesKey() string {
	return r.prefix + ":names"
}

func (r *Redis) schemaKey() string {
	return r.prefix + ":schema"
}

// Install writes the schema marker so that Ready passes. It is idempotent
// and safe to run on every process start.
func (r *Redis) Install(ctx context.Context) error {
	if err := r.client.Set(ctx, r.schemaKey(), schemaVersion, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

// Ready verifies connectivity and that Install has run. A reachable instance
// without the schema marker reports [authcore.ErrStoreTableMissing].
func (r *Redis) Ready(ctx context.Context) error {
	val, err := r.client.Get(ctx, r.schemaKey()).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: schema marker %q absent", authcore.ErrStoreTableMissing, r.schemaKey())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if val != schemaVersion {
		return fmt.Errorf("%w: unsupported schema version %q", authcore.ErrStoreTableMissing, val)
	}
	return nil
}

// CreateAccount describes the createaccount operation and its observable behavior.
//
// CreateAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) CreateAccount(ctx context.Context, rec authcore.AccountRecord) error {
	rec.Username = key(rec.Username)

	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	created, err := r.client.SetNX(ctx, r.accountKey(rec.Username), blob, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if !created {
		return fmt.Errorf("%w: %s", authcore.ErrAccountExists, rec.Username)
	}

	if err := r.client.SAdd(ctx, r.namesKey(), rec.Username).Err(); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

// FindAccount describes the findaccount operation and its observable behavior.
//
// FindAccount may return an error when input validation, dependency calls, or security checks fail.
// FindAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) FindAccount(ctx context.Context, username string) (authcore.AccountRecord, error) {
	blob, err := r.client.Get(ctx, r.accountKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return authcore.AccountRecord{}, fmt.Errorf("%w: %s", authcore.ErrUnknownAccount, username)
	}
	if err != nil {
		return authcore.AccountRecord{}, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}

	var rec authcore.AccountRecord
	if err := json.Unmarshal(blob, &rec); err != nil {
		return authcore.AccountRecord{}, fmt.Errorf("%w: corrupt account blob: %v", authcore.ErrStoreUnavailable, err)
	}
	return rec, nil
}

// UpdateAccount applies the field update as one optimistic transaction. The
// account key is watched so a concurrent writer forces a retry instead of a
// lost update.
func (r *Redis) UpdateAccount(ctx context.Context, username string, update authcore.AccountUpdate) error {
	acctKey := r.accountKey(username)

	txn := func(tx *redis.Tx) error {
		blob, err := tx.Get(ctx, acctKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", authcore.ErrUnknownAccount, username)
		}
		if err != nil {
			return err
		}

		var rec authcore.AccountRecord
		if err := json.Unmarshal(blob, &rec); err != nil {
			return fmt.Errorf("corrupt account blob: %v", err)
		}

		applyUpdate(&rec, update)

		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, acctKey, out, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txn, acctKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, authcore.ErrUnknownAccount) {
			return err
		}
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: update contention on %s", authcore.ErrStoreUnavailable, username)
}

// DeleteAccount describes the deleteaccount operation and its observable behavior.
//
// DeleteAccount may return an error when input validation, dependency calls, or security checks fail.
// DeleteAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) DeleteAccount(ctx context.Context, username string) error {
	deleted, err := r.client.Del(ctx, r.accountKey(username)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", authcore.ErrUnknownAccount, username)
	}

	if err := r.client.SRem(ctx, r.namesKey(), key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

// ListUsernames describes the listusernames operation and its observable behavior.
//
// ListUsernames may return an error when input validation, dependency calls, or security checks fail.
// ListUsernames does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Redis) ListUsernames(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	sort.Strings(names)
	return names, nil
}
