package credstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/eastwyck/authcore"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, "authcore-test")
}

func TestRedisReadyRequiresInstall(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	if err := store.Ready(ctx); !errors.Is(err, authcore.ErrStoreTableMissing) {
		t.Fatalf("Ready before Install = %v, want ErrStoreTableMissing", err)
	}

	if err := store.Install(ctx); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := store.Ready(ctx); err != nil {
		t.Fatalf("Ready after Install: %v", err)
	}

	// Install is idempotent.
	if err := store.Install(ctx); err != nil {
		t.Fatalf("second Install: %v", err)
	}
}

func TestRedisCreateAndFind(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, testRecord("Alice")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	rec, err := store.FindAccount(ctx, "ALICE")
	if err != nil {
		t.Fatalf("FindAccount: %v", err)
	}
	if rec.Username != "alice" || rec.Role != authcore.RoleBasic {
		t.Fatalf("stored record mismatch: %+v", rec)
	}
	if !rec.PasswordExpiresAt.Equal(testRecord("alice").PasswordExpiresAt) {
		t.Fatalf("expiry did not survive the round trip: %v", rec.PasswordExpiresAt)
	}

	if err := store.CreateAccount(ctx, testRecord("alice")); !errors.Is(err, authcore.ErrAccountExists) {
		t.Fatalf("duplicate create = %v, want ErrAccountExists", err)
	}
	if _, err := store.FindAccount(ctx, "ghost"); !errors.Is(err, authcore.ErrUnknownAccount) {
		t.Fatalf("FindAccount(ghost) = %v, want ErrUnknownAccount", err)
	}
}

func TestRedisUpdate(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, testRecord("alice")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	role := authcore.RoleAdmin
	locked := true
	newHash := []byte{0xaa, 0xbb}
	if err := store.UpdateAccount(ctx, "Alice", authcore.AccountUpdate{Role: &role, Locked: &locked, Hash: newHash}); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}

	rec, err := store.FindAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("FindAccount: %v", err)
	}
	if rec.Role != authcore.RoleAdmin || !rec.Locked {
		t.Fatalf("update not applied: role=%q locked=%v", rec.Role, rec.Locked)
	}
	if len(rec.Hash) != 2 || rec.Hash[0] != 0xaa {
		t.Fatalf("hash update not applied: %v", rec.Hash)
	}
	// Fields outside the update survive.
	if len(rec.Salt) == 0 {
		t.Fatal("salt was clobbered by an unrelated update")
	}

	if err := store.UpdateAccount(ctx, "ghost", authcore.AccountUpdate{Role: &role}); !errors.Is(err, authcore.ErrUnknownAccount) {
		t.Fatalf("UpdateAccount(ghost) = %v, want ErrUnknownAccount", err)
	}
}

func TestRedisDelete(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	if err := store.CreateAccount(ctx, testRecord("alice")); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if err := store.DeleteAccount(ctx, "ALICE"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := store.FindAccount(ctx, "alice"); !errors.Is(err, authcore.ErrUnknownAccount) {
		t.Fatal("deleted account must be gone")
	}
	if err := store.DeleteAccount(ctx, "alice"); !errors.Is(err, authcore.ErrUnknownAccount) {
		t.Fatalf("second delete = %v, want ErrUnknownAccount", err)
	}
}

func TestRedisListUsernames(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	for _, name := range []string{"Charlie", "alice", "Bob"} {
		if err := store.CreateAccount(ctx, testRecord(name)); err != nil {
			t.Fatalf("CreateAccount(%s): %v", name, err)
		}
	}
	if err := store.DeleteAccount(ctx, "bob"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	names, err := store.ListUsernames(ctx)
	if err != nil {
		t.Fatalf("ListUsernames: %v", err)
	}
	want := []string{"alice", "charlie"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("ListUsernames = %v, want %v", names, want)
	}
}

func TestRedisReportsUnreachableServer(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedis(client, "")

	ctx := context.Background()
	if err := store.Install(ctx); err != nil {
		t.Fatalf("Install: %v", err)
	}
	srv.Close()

	if err := store.Ready(ctx); !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("Ready against a dead server = %v, want ErrStoreUnavailable", err)
	}
	if _, err := store.FindAccount(ctx, "alice"); !errors.Is(err, authcore.ErrStoreUnavailable) {
		t.Fatalf("FindAccount against a dead server = %v, want ErrStoreUnavailable", err)
	}
}
