package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements CredentialStore in process memory. It is the
// fallback when Redis is not configured; revocations do not survive a
// restart, which is acceptable because tokens carry their own expiry.
type MemoryStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	codes   map[string]resetCode
}

type resetCode struct {
	userID    int
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked: make(map[string]time.Time),
		codes:   make(map[string]resetCode),
	}
}

func (s *MemoryStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !expiresAt.After(time.Now()) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) SaveResetCode(_ context.Context, code string, userID int, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	s.codes[code] = resetCode{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) ConsumeResetCode(_ context.Context, code string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.codes[code]
	if !ok || !rc.expiresAt.After(time.Now()) {
		delete(s.codes, code)
		return 0, ErrCodeNotFound
	}
	delete(s.codes, code)
	return rc.userID, nil
}

func (s *MemoryStore) InvalidateResetCodes(_ context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, rc := range s.codes {
		if rc.userID == userID {
			delete(s.codes, code)
		}
	}
	return nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = make(map[string]time.Time)
	s.codes = make(map[string]resetCode)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// prune drops lapsed entries. Called under mu on writes so the maps do
// not grow without bound in long-lived processes.
func (s *MemoryStore) prune() {
	now := time.Now()
	for jti, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, jti)
		}
	}
	for code, rc := range s.codes {
		if !rc.expiresAt.After(now) {
			delete(s.codes, code)
		}
	}
}
