package domain

import "time"

// UserIdentity is the public identity of the user owning a session.
type UserIdentity struct {
	ID       string
	Username string
	Email    string
}

// Session is an opaque-token session record. Token is the raw bearer credential and
// lives only in memory; durable stores key the row on its hash.
type Session struct {
	ID           string
	Token        string
	UserID       string
	ExpiresAt    time.Time
	LastActiveAt time.Time // last persisted activity
	Consumed     bool      // set on logout; a consumed session never becomes valid again
	CreatedAt    time.Time
	User         UserIdentity
}

// Valid reports whether the session may authenticate a request at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && !s.Consumed && s.ExpiresAt.After(now)
}

// Clone returns a copy of s. Session holds no reference fields, so a value copy is deep.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
