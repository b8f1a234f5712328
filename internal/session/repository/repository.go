package repository

import (
	"context"
	"errors"
	"time"

	"studyassist/backend/internal/session/domain"
)

// ErrInvalidSession is returned by Create when the session is missing its token, user or expiry.
var ErrInvalidSession = errors.New("session: token, user id and expiry are required")

// Repository defines durable persistence for opaque-token sessions.
// Implementations key records on the SHA-256 hash of the token.
type Repository interface {
	// FindValidByToken returns the non-consumed, non-expired session for token joined with
	// its user identity, or nil if there is none. It returns an error only for store failures.
	FindValidByToken(ctx context.Context, token string) (*domain.Session, error)
	// ExtendExpiry persists activity. Expiry is only ever moved forward and consumed sessions are untouched.
	ExtendExpiry(ctx context.Context, token string, expiresAt, lastActiveAt time.Time) error
	// MarkConsumed permanently invalidates the session. Unknown or already consumed tokens are not an error.
	MarkConsumed(ctx context.Context, token string) error
	// Create persists a new session. ID is generated when empty.
	Create(ctx context.Context, s *domain.Session) error
	// Ping checks connectivity to the backing store.
	Ping(ctx context.Context) error
}

func validateNew(s *domain.Session) error {
	if s == nil || s.Token == "" || s.UserID == "" || s.ExpiresAt.IsZero() {
		return ErrInvalidSession
	}
	return nil
}
