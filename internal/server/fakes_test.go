package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"studyassist/backend/internal/logger"
	"studyassist/backend/internal/session/cache"
	"studyassist/backend/internal/session/domain"
)

// memStore is an in-memory cache.Store.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemStore(sessions ...*domain.Session) *memStore {
	m := &memStore{sessions: make(map[string]*domain.Session)}
	for _, s := range sessions {
		m.sessions[s.Token] = s.Clone()
	}
	return m
}

func (m *memStore) FindValidByToken(_ context.Context, token string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok || !s.Valid(time.Now()) {
		return nil, nil
	}
	return s.Clone(), nil
}

func (m *memStore) ExtendExpiry(_ context.Context, token string, expiresAt, lastActiveAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok && expiresAt.After(s.ExpiresAt) {
		s.ExpiresAt = expiresAt
		s.LastActiveAt = lastActiveAt
	}
	return nil
}

func (m *memStore) MarkConsumed(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[token]; ok {
		s.Consumed = true
	}
	return nil
}

func (m *memStore) Ping(context.Context) error { return nil }

func testSession(token string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		ID:           "s-1",
		Token:        token,
		UserID:       "u-1",
		ExpiresAt:    now.Add(time.Hour),
		LastActiveAt: now,
		CreatedAt:    now,
		User:         domain.UserIdentity{ID: "u-1", Username: "ada", Email: "ada@example.com"},
	}
}

func newTestCache(t *testing.T, store cache.Store) *cache.Cache {
	t.Helper()
	c, err := cache.New(store, cache.Options{Logger: logger.Discard()})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Drain(ctx)
	})
	return c
}
