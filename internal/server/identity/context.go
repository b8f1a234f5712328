// Package identity carries the authenticated session through a request context.
// Both the HTTP middleware and the gRPC interceptor set it; handlers read it.
package identity

import (
	"context"

	"studyassist/backend/internal/session/domain"
)

type contextKey struct{ name string }

var sessionKey = contextKey{"session"}

// WithSession returns a context carrying s. Handlers read it via FromContext, GetUserID and GetToken.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session set by WithSession and true; otherwise nil, false.
func FromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok && s != nil
}

// GetUserID returns the user_id of the authenticated session, or "", false.
func GetUserID(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return s.UserID, true
}

// GetSessionID returns the id of the authenticated session, or "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return s.ID, true
}

// GetToken returns the bearer token the session was validated with, or "", false.
func GetToken(ctx context.Context) (string, bool) {
	s, ok := FromContext(ctx)
	if !ok || s.Token == "" {
		return "", false
	}
	return s.Token, true
}
