package cache

import (
	"context"
	"sync"
	"time"

	"studyassist/backend/internal/session/domain"
	telemetrydomain "studyassist/backend/internal/telemetry/domain"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// At sets the clock to t0 + d.
func (c *fakeClock) At(d time.Duration) {
	c.mu.Lock()
	c.t = t0.Add(d)
	c.mu.Unlock()
}

type extendCall struct {
	token        string
	expiresAt    time.Time
	lastActiveAt time.Time
}

// fakeStore is an in-memory Store whose lookup filter follows the shared clock.
type fakeStore struct {
	mu       sync.Mutex
	clock    *fakeClock
	sessions map[string]*domain.Session

	findCalls    int
	findErr      error
	findStarted  chan struct{} // receives once per lookup when set
	findRelease  chan struct{} // lookups block on it when set
	extendCalls  []extendCall
	extendErrs   []error // consumed in order; nil entries mean success
	extendErr    error   // returned once extendErrs is exhausted
	extendBlock  chan struct{}
	consumeErr   error
	consumeCalls int
}

func newFakeStore(clock *fakeClock) *fakeStore {
	return &fakeStore{clock: clock, sessions: make(map[string]*domain.Session)}
}

func (s *fakeStore) put(sess *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Token] = sess.Clone()
}

func (s *fakeStore) get(token string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[token].Clone()
}

// FindValidByToken reads the record first and then optionally blocks, like a slow round trip.
func (s *fakeStore) FindValidByToken(ctx context.Context, token string) (*domain.Session, error) {
	s.mu.Lock()
	s.findCalls++
	started, release := s.findStarted, s.findRelease
	err := s.findErr
	var found *domain.Session
	if sess, ok := s.sessions[token]; ok && sess.Valid(s.clock.Now()) {
		found = sess.Clone()
	}
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *fakeStore) ExtendExpiry(ctx context.Context, token string, expiresAt, lastActiveAt time.Time) error {
	s.mu.Lock()
	block := s.extendBlock
	s.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.extendCalls = append(s.extendCalls, extendCall{token, expiresAt, lastActiveAt})
	var err error
	if len(s.extendErrs) > 0 {
		err, s.extendErrs = s.extendErrs[0], s.extendErrs[1:]
	} else {
		err = s.extendErr
	}
	if err != nil {
		return err
	}
	if sess, ok := s.sessions[token]; ok && !sess.Consumed {
		if expiresAt.After(sess.ExpiresAt) {
			sess.ExpiresAt = expiresAt
		}
		sess.LastActiveAt = lastActiveAt
	}
	return nil
}

func (s *fakeStore) MarkConsumed(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumeCalls++
	if s.consumeErr != nil {
		return s.consumeErr
	}
	if sess, ok := s.sessions[token]; ok {
		sess.Consumed = true
	}
	return nil
}

func (s *fakeStore) finds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls
}

func (s *fakeStore) extends() []extendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]extendCall(nil), s.extendCalls...)
}

// captureEmitter records session events on a channel.
type captureEmitter struct {
	ch chan *telemetrydomain.SessionEvent
}

func newCaptureEmitter() *captureEmitter {
	return &captureEmitter{ch: make(chan *telemetrydomain.SessionEvent, 16)}
}

func (e *captureEmitter) Emit(_ context.Context, event *telemetrydomain.SessionEvent) error {
	e.ch <- event
	return nil
}

func (e *captureEmitter) next(eventType string, timeout time.Duration) *telemetrydomain.SessionEvent {
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-e.ch:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			return nil
		}
	}
}

func testSession(token string, ttl time.Duration) *domain.Session {
	return &domain.Session{
		ID:           "sess-" + token,
		Token:        token,
		UserID:       "user-1",
		ExpiresAt:    t0.Add(ttl),
		LastActiveAt: t0,
		CreatedAt:    t0,
		User:         domain.UserIdentity{ID: "user-1", Username: "ann", Email: "ann@example.com"},
	}
}
