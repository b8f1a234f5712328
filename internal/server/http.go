package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyassist/backend/internal/server/middleware"
	sessionhandler "studyassist/backend/internal/session/handler"
)

// DashboardPath is where an authenticated visitor of "/" is sent.
const DashboardPath = "/ai/dashboard"

// HTTPDeps extends Deps with the HTTP-only settings.
type HTTPDeps struct {
	Deps
	Cookies middleware.Cookies
	// Pages serves the web pages. If nil, only the API and health routes are mounted.
	Pages http.Handler
}

// NewRouter returns the chi router for the HTTP surface.
func NewRouter(deps HTTPDeps) http.Handler {
	log := deps.logger()
	sessions := sessionhandler.NewHTTPHandler(deps.Sessions, deps.Cookies, deps.ClearCacheOnLogout, log)
	requireSession := middleware.RequireSession(deps.Sessions, deps.Cookies, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", deps.health().Healthz)
	r.Post("/api/remove_session", sessions.RemoveSession)
	r.With(requireSession).Get("/api/validate_session", sessions.ValidateSession)

	if deps.Pages != nil {
		r.With(middleware.RedirectIfAuthenticated(deps.Sessions, deps.Cookies, DashboardPath)).Handle("/", deps.Pages)
		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Handle(DashboardPath, deps.Pages)
			r.Handle(DashboardPath+"/*", deps.Pages)
			r.Handle("/account/*", deps.Pages)
		})
	}
	return r
}
