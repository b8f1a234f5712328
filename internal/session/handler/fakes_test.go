package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"studyassist/backend/internal/session/domain"
)

var errStoreDown = errors.New("store down")

type fakeManager struct {
	mu            sync.Mutex
	sessions      map[string]*domain.Session
	invalidateErr error
	invalidated   []string
	clears        int
}

func newFakeManager() *fakeManager {
	return &fakeManager{sessions: map[string]*domain.Session{
		"tok-1": testSession("tok-1"),
	}}
}

func testSession(token string) *domain.Session {
	return &domain.Session{
		ID:        "s-1",
		Token:     token,
		UserID:    "u-1",
		ExpiresAt: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		User:      domain.UserIdentity{ID: "u-1", Username: "ada", Email: "ada@example.com"},
	}
}

func (f *fakeManager) ValidateSession(_ context.Context, token string) (*domain.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (f *fakeManager) InvalidateSession(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, token)
	delete(f.sessions, token)
	return f.invalidateErr
}

func (f *fakeManager) ClearCache() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return true
}
