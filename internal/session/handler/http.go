package handler

import (
	"log/slog"
	"net/http"

	"studyassist/backend/internal/logger"
	"studyassist/backend/internal/server/identity"
	"studyassist/backend/internal/server/middleware"
	"studyassist/backend/internal/server/response"
)

// HTTPHandler serves /api/validate_session and /api/remove_session.
type HTTPHandler struct {
	sessions      SessionManager
	cookies       middleware.Cookies
	clearOnLogout bool
	log           *slog.Logger
}

// NewHTTPHandler returns the HTTP session endpoints. When clearOnLogout is set, every
// successful or failed logout also drops the whole cache.
func NewHTTPHandler(sessions SessionManager, cookies middleware.Cookies, clearOnLogout bool, log *slog.Logger) *HTTPHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HTTPHandler{sessions: sessions, cookies: cookies, clearOnLogout: clearOnLogout, log: log}
}

// ValidateSession returns the user of the session resolved by middleware.RequireSession.
func (h *HTTPHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	s, ok := identity.FromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, middleware.AuthRequiredMessage)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": newUserView(s)})
}

// RemoveSession logs the caller out. It does not require a currently valid session, so an
// expired cookie can still be cleared. The cookie is deleted even when the store write fails.
func (h *HTTPHandler) RemoveSession(w http.ResponseWriter, r *http.Request) {
	token := h.cookies.Token(r)
	if token == "" {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, middleware.AuthRequiredMessage)
		return
	}

	err := h.sessions.InvalidateSession(r.Context(), token)
	if h.clearOnLogout {
		h.sessions.ClearCache()
	}
	h.cookies.Clear(w)
	if err != nil {
		h.log.ErrorContext(r.Context(), "logout failed", logger.TokenRef(token), logger.Err(err))
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeLogoutFailed, "Logout failed, please retry")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"logged_out": true})
}
