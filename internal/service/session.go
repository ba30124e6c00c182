package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/msomdec/internsync/internal/domain"
)

const sessionIssuer = "internsync"

// SessionService is the session holder. The cached session record travels as
// an HS256 JWT; it never carries favorites, which are hydrated from storage on
// every resolve.
type SessionService struct {
	secret      []byte
	ttl         time.Duration
	identity    *IdentityService
	credentials *CredentialService
	favorites   *FavoritesService
}

// NewSessionService creates a new SessionService.
func NewSessionService(secret string, identity *IdentityService, credentials *CredentialService, favorites *FavoritesService) *SessionService {
	return &SessionService{
		secret:      []byte(secret),
		ttl:         24 * time.Hour,
		identity:    identity,
		credentials: credentials,
		favorites:   favorites,
	}
}

// TTL is the lifetime of an issued session record.
func (s *SessionService) TTL() time.Duration { return s.ttl }

type sessionClaims struct {
	Kind  domain.SessionKind `json:"kind"`
	Email string             `json:"email"`
	Name  string             `json:"name"`
	jwt.RegisteredClaims
}

// Issue signs the session record for the cache cookie.
func (s *SessionService) Issue(sess *domain.Session) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Kind:  sess.Kind,
		Email: sess.Email,
		Name:  sess.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   sess.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a cached session record.
func (s *SessionService) Parse(token string) (*domain.Session, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer))
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}
	if claims.Subject == "" || (claims.Kind != domain.SessionLocal && claims.Kind != domain.SessionRemote) {
		return nil, domain.ErrUnauthorized
	}

	return &domain.Session{
		Kind:        claims.Kind,
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

// ResolveSession applies the precedence rule between a live remote identity
// and the cached record: the remote identity always wins; a cached local
// record counts as logged in; a cached remote record with no live remote
// identity is stale and resolves to nil.
func ResolveSession(remote *domain.RemoteUser, cached *domain.Session) *domain.Session {
	if remote != nil {
		return domain.NewRemoteSession(remote)
	}
	if cached != nil && cached.Kind == domain.SessionLocal {
		sess := *cached
		return &sess
	}
	return nil
}

// Resolution is the outcome of resolving a request's session state.
type Resolution struct {
	Session *domain.Session
	Remote  *domain.RemoteUser
	// ClearCache and ClearRemote mark stored state that no longer resolves.
	ClearCache  bool
	ClearRemote bool
	// Reissue is set when the cached record no longer mirrors the resolved session.
	Reissue bool
	// RemoteRefreshed is set when Remote carries a new provider token pair
	// that must replace the stored one.
	RemoteRefreshed bool
}

// Resolve re-derives the current session from the cached record and the
// remote provider tokens, then hydrates favorites from storage.
//
// A provider that cannot be reached, or answers with an unrecognised error,
// counts as no live remote identity for this request only: the remote
// tokens are kept and a cached local record still resolves.
func (s *SessionService) Resolve(ctx context.Context, cachedToken, remoteToken, refreshToken string) (*Resolution, error) {
	res := &Resolution{}

	var cached *domain.Session
	if cachedToken != "" {
		var err error
		if cached, err = s.Parse(cachedToken); err != nil {
			res.ClearCache = true
		}
	}

	var remote *domain.RemoteUser
	remoteUnavailable := false
	if remoteToken != "" {
		user, refreshed, err := s.identity.Restore(ctx, remoteToken, refreshToken)
		switch {
		case err == nil:
			remote = user
			res.RemoteRefreshed = refreshed
		case isTransient(err):
			slog.WarnContext(ctx, "remote identity unavailable", "error", err)
			remoteUnavailable = true
		default:
			res.ClearRemote = true
		}
	}

	sess := ResolveSession(remote, cached)
	if sess == nil {
		if cached != nil && !remoteUnavailable {
			res.ClearCache = true
		}
		return res, nil
	}

	if sess.Kind == domain.SessionLocal {
		user, err := s.credentials.Lookup(ctx, sess.Username())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				res.ClearCache = true
				return res, nil
			}
			return nil, fmt.Errorf("load local user: %w", err)
		}
		sess.Email = user.Email
	}

	favorites, err := s.favorites.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	sess.Favorites = favorites

	res.Session = sess
	res.Remote = remote
	res.Reissue = cached == nil || cached.Kind != sess.Kind || cached.ID != sess.ID
	return res, nil
}

func isTransient(err error) bool {
	var authErr *domain.AuthError
	return !errors.As(err, &authErr) || authErr.Transient()
}

// Stale reports whether any stored session state should be cleared.
func (r *Resolution) Stale() bool {
	return r.ClearCache || r.ClearRemote
}
