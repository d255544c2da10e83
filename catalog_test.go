package authcore

import (
	"errors"
	"testing"
)

func TestCatalogCreateIdempotent(t *testing.T) {
	catalog := NewRoleCatalog(testAuthorities())

	first, err := catalog.Create("ops")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	first.AddPermission("file")

	second, err := catalog.Create("ops")
	if err != nil {
		t.Fatalf("second Create failed: %v", err)
	}
	if second != first {
		t.Fatal("Create must return the existing role unchanged")
	}
	if !second.HasPermission("file") {
		t.Fatal("existing role state must survive a repeated Create")
	}

	if _, err := catalog.Create(""); !errors.Is(err, ErrRoleEmpty) {
		t.Fatalf("got %v, want ErrRoleEmpty", err)
	}
}

func TestCatalogRegisterNoOverwrite(t *testing.T) {
	catalog := NewRoleCatalog(testAuthorities())

	external, err := NewRole("ops", testAuthorities())
	if err != nil {
		t.Fatalf("NewRole failed: %v", err)
	}
	if !catalog.Register(external) {
		t.Fatal("expected registration of a new name")
	}

	clash, _ := NewRole("ops", testAuthorities())
	if catalog.Register(clash) {
		t.Fatal("expected registration to refuse an existing name")
	}
	got, _ := catalog.Lookup("ops")
	if got != external {
		t.Fatal("existing role must not be replaced")
	}

	if catalog.Register(nil) {
		t.Fatal("nil role must not register")
	}
}

func TestCatalogSeedsProtectedRoles(t *testing.T) {
	catalog := NewRoleCatalog(testAuthorities())

	want := []string{RoleAdmin, RoleAuthor, RoleBasic, RoleEditor, RoleNone}
	got := catalog.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}

	for _, name := range want {
		role, ok := catalog.Lookup(name)
		if !ok {
			t.Fatalf("built-in role %s missing", name)
		}
		if !role.Protected() {
			t.Errorf("role %s must be protected", name)
		}
	}
}

func TestCatalogRemove(t *testing.T) {
	catalog := NewRoleCatalog(testAuthorities())
	catalog.Create("ops")

	if ok, err := catalog.Remove("ops"); err != nil || !ok {
		t.Fatalf("Remove(ops) = %v, %v", ok, err)
	}
	if ok, err := catalog.Remove("ops"); err != nil || ok {
		t.Fatalf("second Remove(ops) = %v, %v, want false", ok, err)
	}
	if _, err := catalog.Remove(RoleAdmin); !errors.Is(err, ErrRoleProtected) {
		t.Fatalf("got %v, want ErrRoleProtected", err)
	}
}
