package session

import (
	"context"
	"testing"
	"time"

	"huddle/api/internal/auth"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return New("test-secret", time.Hour, time.Hour, NewMemoryStore())
}

func TestIssueValidateRevoke(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	token, err := m.IssueToken(3, "averyjones")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	userID, err := m.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if userID != 3 {
		t.Fatalf("ValidateToken user = %d, want 3", userID)
	}

	if err := m.RevokeToken(ctx, token); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}

	// A blacklisted token is permanently unusable even though it is
	// structurally valid and unexpired.
	if _, err := m.ValidateToken(ctx, token); err != auth.ErrInvalidToken {
		t.Fatalf("ValidateToken after revoke error = %v, want ErrInvalidToken", err)
	}

	// Revoking again is a no-op.
	if err := m.RevokeToken(ctx, token); err != nil {
		t.Fatalf("second RevokeToken failed: %v", err)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.ValidateToken(context.Background(), "garbage"); err != auth.ErrInvalidToken {
		t.Fatalf("ValidateToken error = %v, want ErrInvalidToken", err)
	}
}

func TestRevokeMalformedTokenIsNoop(t *testing.T) {
	m := newTestManager(t)
	if err := m.RevokeToken(context.Background(), "garbage"); err != nil {
		t.Fatalf("RevokeToken on garbage failed: %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	m := newTestManager(t)
	hash, err := m.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("password stored in the clear")
	}
	if !m.CheckPassword(hash, "hunter22") {
		t.Fatal("CheckPassword rejected correct password")
	}
	if m.CheckPassword(hash, "hunter23") {
		t.Fatal("CheckPassword accepted wrong password")
	}
}

func TestResetCodeSupersedesPrevious(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateResetCode(ctx, 5)
	if err != nil {
		t.Fatalf("CreateResetCode failed: %v", err)
	}
	second, err := m.CreateResetCode(ctx, 5)
	if err != nil {
		t.Fatalf("CreateResetCode failed: %v", err)
	}

	if _, err := m.ConsumeResetCode(ctx, first); err != ErrCodeNotFound {
		t.Fatalf("consume superseded code error = %v, want ErrCodeNotFound", err)
	}

	userID, err := m.ConsumeResetCode(ctx, second)
	if err != nil {
		t.Fatalf("ConsumeResetCode failed: %v", err)
	}
	if userID != 5 {
		t.Fatalf("ConsumeResetCode user = %d, want 5", userID)
	}
}
