package auth

import "testing"

func TestHashPasswordVerifyRoundTrip(t *testing.T) {
	ph := NewPasswordHasher()

	encoded, err := ph.HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	ok, err := ph.VerifyPassword("correct-horse-battery-staple", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if !ok {
		t.Error("VerifyPassword() = false for the password that was hashed")
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	ph := NewPasswordHasher()

	encoded, err := ph.HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	ok, err := ph.VerifyPassword("wrong-password", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword() error = %v", err)
	}
	if ok {
		t.Error("VerifyPassword() = true for a mismatched password")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	ph := NewPasswordHasher()
	if _, err := ph.VerifyPassword("anything", "not-an-argon2-hash"); err == nil {
		t.Error("VerifyPassword() accepted a malformed encoded hash")
	}
}

func TestHashPasswordProducesDistinctSaltsForSameInput(t *testing.T) {
	ph := NewPasswordHasher()

	a, err := ph.HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	b, err := ph.HashPassword("same-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if a == b {
		t.Error("HashPassword() produced identical output for two calls with the same password (salt not random)")
	}
}
