package auth

import (
	"errors"
	"testing"
	"time"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	m, err := NewManager(Config{
		Secret:        "test-secret",
		TokenDuration: time.Hour,
		Operator:      "admin",
		PasswordHash:  hash,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

// ============================================================================
// TEST: Login and token validation round trip
// ============================================================================

func TestLoginAndValidate(t *testing.T) {
	m := testManager(t)

	token, err := m.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Operator != "admin" {
		t.Errorf("operator = %q, want admin", claims.Operator)
	}
}

// ============================================================================
// TEST: Credential rejection
// ============================================================================

func TestLoginRejections(t *testing.T) {
	m := testManager(t)

	if _, err := m.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password should fail with ErrInvalidCredentials, got %v", err)
	}
	if _, err := m.Login("root", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong operator should fail with ErrInvalidCredentials, got %v", err)
	}
}

// ============================================================================
// TEST: Token tampering and cross-secret tokens are rejected
// ============================================================================

func TestValidateRejections(t *testing.T) {
	m := testManager(t)

	if _, err := m.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token should fail with ErrInvalidToken, got %v", err)
	}

	other, err := NewManager(Config{Secret: "other-secret", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	foreign, err := other.generateToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if _, err := m.Validate(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret should be rejected, got %v", err)
	}
}

// ============================================================================
// TEST: Configuration validation
// ============================================================================

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{PasswordHash: "x"}); err == nil {
		t.Error("missing secret should be rejected")
	}
	if _, err := NewManager(Config{Secret: "s"}); err == nil {
		t.Error("missing password hash should be rejected")
	}
}
