// Package middleware holds the HTTP session gate.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"studyassist/backend/internal/server/identity"
	"studyassist/backend/internal/server/response"
	"studyassist/backend/internal/session/domain"
)

// AuthRequiredMessage is the only message an unauthenticated API caller sees.
const AuthRequiredMessage = "Authentication required"

// SessionValidator resolves an opaque session token. Implemented by *cache.Cache.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*domain.Session, bool)
}

// RequireSession validates the request's session token once and puts the session in context.
// Rejected API requests (/api/...) get a 401 envelope; rejected page requests are redirected
// to "/" with the session cookie deleted. The reason for a rejection is never exposed.
func RequireSession(v SessionValidator, cookies Cookies, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookies.Token(r)
			if token != "" {
				if s, ok := v.ValidateSession(r.Context(), token); ok {
					next.ServeHTTP(w, r.WithContext(identity.WithSession(r.Context(), s)))
					return
				}
			}
			log.DebugContext(r.Context(), "http auth: rejected request",
				slog.String("path", r.URL.Path), slog.Bool("had_token", token != ""))
			reject(w, r, cookies)
		})
	}
}

// RedirectIfAuthenticated sends callers with a valid session to target and lets everyone else through.
func RedirectIfAuthenticated(v SessionValidator, cookies Cookies, target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := cookies.Token(r); token != "" {
				if _, ok := v.ValidateSession(r.Context(), token); ok {
					http.Redirect(w, r, target, http.StatusTemporaryRedirect)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, cookies Cookies) {
	if isAPIPath(r.URL.Path) {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, AuthRequiredMessage)
		return
	}
	cookies.Clear(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, "/api/")
}
