package auth

import "testing"

func TestCredentialStoreAuthenticateSuccess(t *testing.T) {
	hasher := NewPasswordHasher()
	hash, err := hasher.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	store := NewCredentialStore([]Credential{
		{Username: "alice", PasswordHash: hash, Role: "operator"},
	})

	role, err := store.Authenticate("alice", "s3cret")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if role != "operator" {
		t.Errorf("Authenticate() role = %q, want %q", role, "operator")
	}
}

func TestCredentialStoreAuthenticateUnknownUser(t *testing.T) {
	store := NewCredentialStore(nil)
	if _, err := store.Authenticate("ghost", "whatever"); err == nil {
		t.Error("Authenticate() succeeded for a username never configured")
	}
}

func TestCredentialStoreAuthenticateWrongPassword(t *testing.T) {
	hasher := NewPasswordHasher()
	hash, _ := hasher.HashPassword("s3cret")
	store := NewCredentialStore([]Credential{{Username: "alice", PasswordHash: hash, Role: "admin"}})

	if _, err := store.Authenticate("alice", "wrong"); err == nil {
		t.Error("Authenticate() succeeded with the wrong password")
	}
}

func TestPermissionsForRole(t *testing.T) {
	cases := map[string]int{"viewer": 1, "operator": 2, "admin": 3, "nonexistent": 0}
	for role, wantLen := range cases {
		if got := PermissionsForRole(role); len(got) != wantLen {
			t.Errorf("PermissionsForRole(%q) has %d entries, want %d", role, len(got), wantLen)
		}
	}

	admin := PermissionsForRole("admin")
	found := map[Permission]bool{}
	for _, p := range admin {
		found[p] = true
	}
	for _, want := range []Permission{PermissionView, PermissionOperate, PermissionAdmin} {
		if !found[want] {
			t.Errorf("admin permissions missing %q", want)
		}
	}
}
