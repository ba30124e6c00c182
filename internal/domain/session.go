package domain

import "strings"

// SessionKind discriminates how a session was authenticated.
type SessionKind string

const (
	SessionLocal  SessionKind = "local"
	SessionRemote SessionKind = "remote"
)

// LocalIDPrefix prefixes the synthesized ID of local sessions.
const LocalIDPrefix = "local-"

// Session is the single current-session record for a visitor.
type Session struct {
	Kind        SessionKind
	ID          string
	Email       string
	DisplayName string
	Favorites   []FavoriteJobRef
}

// NewLocalSession builds the session record for a local registry user.
func NewLocalSession(u *LocalUser) *Session {
	return &Session{
		Kind:        SessionLocal,
		ID:          LocalIDPrefix + u.Username,
		Email:       u.Email,
		DisplayName: u.Username,
		Favorites:   u.Favorites,
	}
}

// NewRemoteSession builds the session record for a remote identity.
func NewRemoteSession(u *RemoteUser) *Session {
	return &Session{
		Kind:        SessionRemote,
		ID:          u.UID,
		Email:       u.Email,
		DisplayName: u.Name(),
	}
}

// Username returns the local registry key of a local session.
func (s *Session) Username() string {
	return strings.TrimPrefix(s.ID, LocalIDPrefix)
}

// IsFavorite reports whether the job is in the session's favorites.
func (s *Session) IsFavorite(id JobID) bool {
	if s == nil {
		return false
	}
	for _, f := range s.Favorites {
		if f.ID == id {
			return true
		}
	}
	return false
}
