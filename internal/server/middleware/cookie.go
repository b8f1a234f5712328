package middleware

import (
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// Cookies names and writes the session cookie.
type Cookies struct {
	Name   string
	Secure bool
}

// Token returns the session token from the cookie, else from an Authorization Bearer header.
func (c Cookies) Token(r *http.Request) string {
	if ck, err := r.Cookie(c.Name); err == nil {
		if v := strings.TrimSpace(ck.Value); v != "" {
			return v
		}
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// Clear expires the session cookie on the client.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
