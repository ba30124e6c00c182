package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/service"
)

type contextKey string

const (
	sessionContextKey contextKey = "session"
	remoteContextKey  contextKey = "remote"
)

// Cookie names. current_user holds the cached session record; remote_identity
// and remote_refresh hold the remote provider's token pair.
const (
	sessionCookieName = "current_user"
	remoteCookieName  = "remote_identity"
	refreshCookieName = "remote_refresh"
)

// SessionFromContext extracts the resolved session from the request context.
// Returns nil if no one is logged in.
func SessionFromContext(ctx context.Context) *domain.Session {
	sess, _ := ctx.Value(sessionContextKey).(*domain.Session)
	return sess
}

// RemoteFromContext extracts the live remote identity, if any.
func RemoteFromContext(ctx context.Context) *domain.RemoteUser {
	user, _ := ctx.Value(remoteContextKey).(*domain.RemoteUser)
	return user
}

// LoadSession resolves the session for every request and injects it into the
// context. Stale session state is cleared; a cached record that no longer
// mirrors the resolved session is rewritten. When resolution fails the
// request is served anonymously and no cookie is touched.
func LoadSession(sessions *service.SessionService, cookieSecure bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := sessions.Resolve(r.Context(),
			cookieValue(r, sessionCookieName),
			cookieValue(r, remoteCookieName),
			cookieValue(r, refreshCookieName),
		)
		if err != nil {
			slog.ErrorContext(r.Context(), "resolve session", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if res.ClearCache {
			clearCookie(w, sessionCookieName, cookieSecure)
		}
		if res.ClearRemote {
			clearRemoteCookies(w, cookieSecure)
		}
		if res.RemoteRefreshed {
			setRemoteCookies(w, res.Remote, sessions.TTL(), cookieSecure)
		}
		if res.Session != nil && res.Reissue {
			token, err := sessions.Issue(res.Session)
			if err != nil {
				slog.Error("reissue session", "error", err)
			} else {
				setCookie(w, sessionCookieName, token, sessions.TTL(), cookieSecure)
			}
		}

		ctx := r.Context()
		if res.Session != nil {
			ctx = context.WithValue(ctx, sessionContextKey, res.Session)
		}
		if res.Remote != nil {
			ctx = context.WithValue(ctx, remoteContextKey, res.Remote)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SecurityHeaders sets conservative security headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the wrapper.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// LogRequest logs each request with its status, latency and a request ID.
func LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := newRequestID()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		slog.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"latency_ms", time.Since(start).Milliseconds(),
		)
	})
}

func newRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// clientIP returns the leftmost X-Forwarded-For address, or the remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		ip = strings.TrimSpace(ip)
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return host
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func setCookie(w http.ResponseWriter, name, value string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func setRemoteCookies(w http.ResponseWriter, user *domain.RemoteUser, ttl time.Duration, secure bool) {
	setCookie(w, remoteCookieName, user.Token, ttl, secure)
	if user.RefreshToken != "" {
		setCookie(w, refreshCookieName, user.RefreshToken, ttl, secure)
	} else {
		clearCookie(w, refreshCookieName, secure)
	}
}

func clearRemoteCookies(w http.ResponseWriter, secure bool) {
	clearCookie(w, remoteCookieName, secure)
	clearCookie(w, refreshCookieName, secure)
}

func clearSessionCookies(w http.ResponseWriter, secure bool) {
	clearCookie(w, sessionCookieName, secure)
	clearRemoteCookies(w, secure)
}
