// Package session issues, validates, and revokes session credentials,
// and manages password digests and password-reset codes. Revoked-token
// and reset-code state lives behind CredentialStore, with Redis and
// in-memory backends.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"huddle/api/internal/auth"
	"huddle/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// ErrCodeNotFound is returned when no matching unexpired reset code exists.
var ErrCodeNotFound = errors.New("reset code not found or expired")

// CredentialStore persists the token blacklist and outstanding reset
// codes. Entries expire on their own; Reset clears everything at once.
type CredentialStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	SaveResetCode(ctx context.Context, code string, userID int, expiresAt time.Time) error
	ConsumeResetCode(ctx context.Context, code string) (int, error)
	InvalidateResetCodes(ctx context.Context, userID int) error
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type Manager struct {
	secret  []byte
	ttl     time.Duration
	codeTTL time.Duration
	creds   CredentialStore
}

func New(secret string, tokenTTL, codeTTL time.Duration, creds CredentialStore) *Manager {
	return &Manager{
		secret:  []byte(secret),
		ttl:     tokenTTL,
		codeTTL: codeTTL,
		creds:   creds,
	}
}

// IssueToken mints a fresh signed token bound to the user.
func (m *Manager) IssueToken(userID int, handle string) (string, error) {
	return auth.IssueToken(m.secret, auth.Claims{
		Sub:    userID,
		Handle: handle,
		JTI:    util.NewID("jti"),
		Exp:    time.Now().Add(m.ttl).Unix(),
	})
}

// ValidateToken returns the bound user id. It fails with
// auth.ErrInvalidToken for malformed or blacklisted tokens and
// auth.ErrExpiredToken past the TTL. Whether the user still exists is
// the caller's check.
func (m *Manager) ValidateToken(ctx context.Context, token string) (int, error) {
	claims, err := auth.ParseToken(m.secret, token)
	if err != nil {
		return 0, err
	}
	revoked, err := m.creds.IsTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return 0, fmt.Errorf("check blacklist: %w", err)
	}
	if revoked {
		return 0, auth.ErrInvalidToken
	}
	return claims.Sub, nil
}

// RevokeToken adds the token to the permanent blacklist. Idempotent;
// tokens that are malformed or already expired have nothing to revoke.
func (m *Manager) RevokeToken(ctx context.Context, token string) error {
	claims, err := auth.PeekClaims(m.secret, token)
	if err != nil {
		return nil
	}
	expiresAt := time.Unix(claims.Exp, 0)
	if !expiresAt.After(time.Now()) {
		return nil
	}
	if err := m.creds.RevokeToken(ctx, claims.JTI, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// HashPassword derives the stored digest for a password.
func (m *Manager) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored digest.
func (m *Manager) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CreateResetCode invalidates any outstanding codes for the user and
// stores a fresh numeric code with the configured TTL.
func (m *Manager) CreateResetCode(ctx context.Context, userID int) (string, error) {
	if err := m.creds.InvalidateResetCodes(ctx, userID); err != nil {
		return "", fmt.Errorf("invalidate previous codes: %w", err)
	}
	code := util.NewResetCode(6)
	expiresAt := time.Now().Add(m.codeTTL)
	if err := m.creds.SaveResetCode(ctx, code, userID, expiresAt); err != nil {
		return "", fmt.Errorf("save reset code: %w", err)
	}
	return code, nil
}

// ConsumeResetCode resolves a code to its user and invalidates it.
// Returns ErrCodeNotFound if no matching unexpired code exists.
func (m *Manager) ConsumeResetCode(ctx context.Context, code string) (int, error) {
	return m.creds.ConsumeResetCode(ctx, code)
}

// Reset clears the blacklist and all reset codes.
func (m *Manager) Reset(ctx context.Context) error {
	return m.creds.Reset(ctx)
}
