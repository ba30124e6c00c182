package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/msomdec/internsync/internal/domain"
)

// StateChange describes a remote sign-in or sign-out.
type StateChange struct {
	User     *domain.RemoteUser
	SignedIn bool
}

// IdentityService adapts the remote identity provider and keeps the user
// document in step with federated sign-ins.
type IdentityService struct {
	provider  domain.IdentityProvider
	documents domain.DocumentStore

	mu        sync.RWMutex
	listeners []func(StateChange)
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(provider domain.IdentityProvider, documents domain.DocumentStore) *IdentityService {
	return &IdentityService{provider: provider, documents: documents}
}

// OnStateChange registers fn to run after every remote sign-in and sign-out.
// Listeners run on the calling goroutine, in registration order.
func (s *IdentityService) OnStateChange(fn func(StateChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *IdentityService) notify(change StateChange) {
	s.mu.RLock()
	listeners := append([]func(StateChange){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

// LoginWithPassword signs in with email and password. Failures are *domain.AuthError.
func (s *IdentityService) LoginWithPassword(ctx context.Context, email, password string) (*domain.RemoteUser, error) {
	user, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, normalizeAuthError(err)
	}
	s.notify(StateChange{User: user, SignedIn: true})
	return user, nil
}

// LoginWithFederatedProvider signs in with a federated credential and upserts
// the user document. Favorites are only initialised when the document is new.
func (s *IdentityService) LoginWithFederatedProvider(ctx context.Context, credential string) (*domain.RemoteUser, error) {
	user, err := s.provider.SignInWithIdp(ctx, credential)
	if err != nil {
		return nil, normalizeAuthError(err)
	}

	if err := s.upsertDocument(ctx, user); err != nil {
		return nil, &domain.AuthError{Code: domain.AuthUnknown, Err: err}
	}

	s.notify(StateChange{User: user, SignedIn: true})
	return user, nil
}

func (s *IdentityService) upsertDocument(ctx context.Context, user *domain.RemoteUser) error {
	email, name, local := user.Email, user.Name(), false
	patch := domain.DocumentPatch{Email: &email, DisplayName: &name, IsLocalUser: &local}

	_, err := s.documents.Get(ctx, user.UID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		now := time.Now().UTC()
		patch.CreatedAt = &now
	case err != nil:
		return fmt.Errorf("%w: read user document: %w", domain.ErrStorage, err)
	}

	if err := s.documents.Merge(ctx, user.UID, patch); err != nil {
		return fmt.Errorf("%w: merge user document: %w", domain.ErrStorage, err)
	}
	return nil
}

// Logout signs the user out of the provider. A nil user is allowed and only
// notifies listeners.
func (s *IdentityService) Logout(ctx context.Context, user *domain.RemoteUser) error {
	if user != nil {
		if err := s.provider.SignOut(ctx, user); err != nil {
			return fmt.Errorf("sign out: %w", err)
		}
	}
	s.notify(StateChange{User: user, SignedIn: false})
	return nil
}

// Verify re-derives the remote identity behind a provider token.
func (s *IdentityService) Verify(ctx context.Context, token string) (*domain.RemoteUser, error) {
	user, err := s.provider.Verify(ctx, token)
	if err != nil {
		return nil, normalizeAuthError(err)
	}
	return user, nil
}

// Refresh exchanges a refresh token for a new provider token.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*domain.RemoteUser, error) {
	user, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, normalizeAuthError(err)
	}
	return user, nil
}

// Restore re-derives the remote identity from a stored token pair. An
// expired token is exchanged using refreshToken; refreshed reports whether
// the returned user carries a new token pair.
func (s *IdentityService) Restore(ctx context.Context, token, refreshToken string) (user *domain.RemoteUser, refreshed bool, err error) {
	user, err = s.Verify(ctx, token)
	if err == nil || !domain.HasAuthCode(err, domain.AuthTokenExpired) || refreshToken == "" {
		return user, false, err
	}

	user, err = s.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func normalizeAuthError(err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return &domain.AuthError{Code: domain.AuthUnknown, Err: err}
}
