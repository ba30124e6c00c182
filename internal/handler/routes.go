package handler

import (
	"net/http"

	"github.com/msomdec/internsync/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, db Pinger, sessions *service.SessionService, auth *AuthHandler, board *DashboardHandler, cookieSecure bool) {
	withSession := func(h http.HandlerFunc) http.Handler {
		return LoadSession(sessions, cookieSecure, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(db))
	mux.Handle("GET /", withSession(HandleHome))

	mux.Handle("GET /login", withSession(auth.HandleLoginPage))
	mux.Handle("POST /login", withSession(auth.HandleLogin))
	mux.Handle("GET /register", withSession(auth.HandleRegisterPage))
	mux.Handle("POST /register", withSession(auth.HandleRegister))
	mux.Handle("POST /auth/google", withSession(auth.HandleGoogle))
	mux.HandleFunc("POST /logout", auth.HandleLogout)

	mux.Handle("GET /dashboard", withSession(board.HandleDashboard))
	mux.Handle("GET /dashboard/jobs", withSession(board.HandleJobs))
	mux.Handle("POST /dashboard/favorites/{id}", withSession(board.HandleToggleFavorite))

	mux.Handle("GET /api/auth/me", withSession(HandleMe))
	mux.Handle("GET /api/favorites", withSession(HandleFavorites))
}
