package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/service"
	"github.com/msomdec/internsync/internal/view"
)

// AuthHandler handles login, registration and logout.
type AuthHandler struct {
	credentials    *service.CredentialService
	identity       *service.IdentityService
	sessions       *service.SessionService
	limiter        *service.TokenBucket
	cookieSecure   bool
	googleClientID string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(credentials *service.CredentialService, identity *service.IdentityService, sessions *service.SessionService, limiter *service.TokenBucket, cookieSecure bool, googleClientID string) *AuthHandler {
	return &AuthHandler{
		credentials:    credentials,
		identity:       identity,
		sessions:       sessions,
		limiter:        limiter,
		cookieSecure:   cookieSecure,
		googleClientID: googleClientID,
	}
}

// HandleLoginPage renders the login form.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	view.LoginPage(view.LoginForm{GoogleClientID: h.googleClientID}).Render(r.Context(), w)
}

// HandleLogin processes the login form. An identifier containing "@" is
// treated as a remote account email; anything else is a local username.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	identifier := strings.TrimSpace(r.FormValue("identifier"))
	password := r.FormValue("password")

	if service.Blank(identifier, password) {
		h.renderLoginError(w, r, http.StatusUnprocessableEntity, identifier, "Please fill in all fields")
		return
	}
	if !h.limiter.Allow(clientIP(r)) {
		msg := (&domain.AuthError{Code: domain.AuthTooManyRequests}).Message()
		h.renderLoginError(w, r, http.StatusTooManyRequests, identifier, msg)
		return
	}

	if strings.Contains(identifier, "@") {
		user, err := h.identity.LoginWithPassword(r.Context(), identifier, password)
		if err != nil {
			h.renderAuthError(w, r, identifier, err)
			return
		}
		h.startRemoteSession(w, r, user)
		return
	}

	user, err := h.credentials.Authenticate(r.Context(), identifier, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingField):
			h.renderLoginError(w, r, http.StatusUnprocessableEntity, identifier, "Please fill in all fields")
		case errors.Is(err, domain.ErrInvalidCredentials):
			h.renderLoginError(w, r, http.StatusUnauthorized, identifier, "Invalid username or password")
		default:
			slog.Error("local login", "error", err)
			h.renderLoginError(w, r, http.StatusInternalServerError, identifier, "An unexpected error occurred. Please try again.")
		}
		return
	}

	h.startLocalSession(w, r, user)
}

// HandleGoogle completes a Google Identity Services sign-in. The browser
// posts the ID token as the "credential" form field.
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	if token := cookieValue(r, "g_csrf_token"); token == "" || token != r.FormValue("g_csrf_token") {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if !h.limiter.Allow(clientIP(r)) {
		msg := (&domain.AuthError{Code: domain.AuthTooManyRequests}).Message()
		h.renderLoginError(w, r, http.StatusTooManyRequests, "", msg)
		return
	}

	user, err := h.identity.LoginWithFederatedProvider(r.Context(), r.FormValue("credential"))
	if err != nil {
		h.renderAuthError(w, r, "", err)
		return
	}
	h.startRemoteSession(w, r, user)
}

// HandleRegisterPage renders the registration form.
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	if SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	view.RegisterPage(view.RegisterForm{}).Render(r.Context(), w)
}

// HandleRegister creates a local account and logs it in.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	form := view.RegisterForm{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
	}
	password := r.FormValue("password")

	renderErr := func(status int, msg string) {
		form.Error = msg
		w.WriteHeader(status)
		view.RegisterPage(form).Render(r.Context(), w)
	}

	if service.Blank(form.Username, form.Email, password) {
		renderErr(http.StatusUnprocessableEntity, "All fields are required")
		return
	}
	if r.FormValue("terms") == "" {
		renderErr(http.StatusUnprocessableEntity, "You must agree to the terms & conditions")
		return
	}

	user, err := h.credentials.Register(r.Context(), form.Username, form.Email, password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingField):
			renderErr(http.StatusUnprocessableEntity, "All fields are required")
		case errors.Is(err, domain.ErrUsernameTaken):
			renderErr(http.StatusConflict, "Username already exists")
		case errors.Is(err, domain.ErrWeakPassword):
			renderErr(http.StatusUnprocessableEntity, "Password must contain at least 8 characters, including uppercase, lowercase, number, and special character")
		default:
			slog.Error("register user", "error", err)
			renderErr(http.StatusInternalServerError, "An unexpected error occurred. Please try again.")
		}
		return
	}

	h.startLocalSession(w, r, user)
}

// HandleLogout signs out of the remote provider, if any, and clears every
// session cookie. It runs without session resolution so that logging out
// never depends on the provider being reachable.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var remote *domain.RemoteUser
	if token := cookieValue(r, remoteCookieName); token != "" {
		remote = &domain.RemoteUser{Token: token, RefreshToken: cookieValue(r, refreshCookieName)}
	}
	if err := h.identity.Logout(r.Context(), remote); err != nil {
		slog.Error("remote logout", "error", err)
	}
	clearSessionCookies(w, h.cookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// startLocalSession caches the local session and drops any remote identity,
// which would otherwise take precedence over it.
func (h *AuthHandler) startLocalSession(w http.ResponseWriter, r *http.Request, user *domain.LocalUser) {
	if remote := RemoteFromContext(r.Context()); remote != nil {
		if err := h.identity.Logout(r.Context(), remote); err != nil {
			slog.Error("remote logout before local login", "error", err)
		}
	}

	if !h.issueSession(w, r.Context(), domain.NewLocalSession(user)) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	clearRemoteCookies(w, h.cookieSecure)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *AuthHandler) startRemoteSession(w http.ResponseWriter, r *http.Request, user *domain.RemoteUser) {
	if !h.issueSession(w, r.Context(), domain.NewRemoteSession(user)) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	setRemoteCookies(w, user, h.sessions.TTL(), h.cookieSecure)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, ctx context.Context, sess *domain.Session) bool {
	token, err := h.sessions.Issue(sess)
	if err != nil {
		slog.ErrorContext(ctx, "issue session", "error", err)
		return false
	}
	setCookie(w, sessionCookieName, token, h.sessions.TTL(), h.cookieSecure)
	return true
}

func (h *AuthHandler) renderAuthError(w http.ResponseWriter, r *http.Request, identifier string, err error) {
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		authErr = &domain.AuthError{Code: domain.AuthUnknown, Err: err}
	}
	if authErr.Code == domain.AuthUnknown {
		slog.Error("remote login", "error", err)
	}
	status := http.StatusUnauthorized
	if authErr.Code == domain.AuthTooManyRequests {
		status = http.StatusTooManyRequests
	}
	h.renderLoginError(w, r, status, identifier, authErr.Message())
}

func (h *AuthHandler) renderLoginError(w http.ResponseWriter, r *http.Request, status int, identifier, msg string) {
	w.WriteHeader(status)
	view.LoginPage(view.LoginForm{
		Identifier:     identifier,
		Error:          msg,
		GoogleClientID: h.googleClientID,
	}).Render(r.Context(), w)
}
