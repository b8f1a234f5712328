// Package handler exposes the session cache over HTTP and gRPC.
package handler

import (
	"context"

	"studyassist/backend/internal/session/domain"
)

// SessionManager is the cache surface the handlers use. Implemented by *cache.Cache.
type SessionManager interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, bool)
	InvalidateSession(ctx context.Context, token string) error
	ClearCache() bool
}

type userView struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func newUserView(s *domain.Session) userView {
	v := userView{UserID: s.UserID, Username: s.User.Username, Email: s.User.Email}
	if v.UserID == "" {
		v.UserID = s.User.ID
	}
	return v
}
