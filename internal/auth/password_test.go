// ABOUTME: Unit tests for password hashing and verification
// ABOUTME: Tests round trips, mismatches, and minimum length enforcement

package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatal("HashPassword() returned the plaintext")
	}

	if err := CheckPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("CheckPassword() error = %v", err)
	}
}

func TestCheckPassword_Mismatch(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	err = CheckPassword(hash, "incorrect horse")
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("CheckPassword() error = %v, want ErrWrongPassword", err)
	}
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	if err == nil {
		t.Fatal("HashPassword() expected error for short password")
	}
	if !strings.Contains(err.Error(), "at least") {
		t.Errorf("HashPassword() error = %v, want length message", err)
	}
}

func TestHashPassword_DistinctSalts(t *testing.T) {
	first, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	second, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if first == second {
		t.Error("HashPassword() produced identical hashes for the same input")
	}
}
