package service_test

import (
	"context"
	"sync"

	"github.com/msomdec/internsync/internal/domain"
)

// stubProvider is an in-memory IdentityProvider. Tokens are "tok-<uid>" and
// refresh tokens "ref-<uid>".
type stubProvider struct {
	mu       sync.Mutex
	users    map[string]*domain.RemoteUser // by email
	idp      map[string]*domain.RemoteUser // by credential
	expired  map[string]bool               // tokens that fail Verify as expired
	signOuts int
	// verifyErr, when set, is returned by every Verify and Refresh.
	verifyErr error
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		users:   make(map[string]*domain.RemoteUser),
		idp:     make(map[string]*domain.RemoteUser),
		expired: make(map[string]bool),
	}
}

func (p *stubProvider) addPasswordUser(uid, email, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[email] = &domain.RemoteUser{UID: uid, Email: email, DisplayName: name, Token: "tok-" + uid, RefreshToken: "ref-" + uid}
}

func (p *stubProvider) addIdpUser(credential, uid, email, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idp[credential] = &domain.RemoteUser{UID: uid, Email: email, DisplayName: name, Token: "tok-" + uid, RefreshToken: "ref-" + uid}
}

func (p *stubProvider) SignInWithPassword(_ context.Context, email, password string) (*domain.RemoteUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[email]
	if !ok {
		return nil, &domain.AuthError{Code: domain.AuthUserNotFound}
	}
	if password != "secret" {
		return nil, &domain.AuthError{Code: domain.AuthWrongPassword}
	}
	return u, nil
}

func (p *stubProvider) SignInWithIdp(_ context.Context, credential string) (*domain.RemoteUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if credential == "" {
		return nil, &domain.AuthError{Code: domain.AuthPopupClosed}
	}
	u, ok := p.idp[credential]
	if !ok {
		return nil, &domain.AuthError{Code: domain.AuthInvalidSession}
	}
	return u, nil
}

func (p *stubProvider) Verify(_ context.Context, token string) (*domain.RemoteUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	if p.expired[token] {
		return nil, &domain.AuthError{Code: domain.AuthTokenExpired}
	}
	for _, all := range []map[string]*domain.RemoteUser{p.users, p.idp} {
		for _, u := range all {
			if u.Token == token {
				return u, nil
			}
		}
	}
	return nil, &domain.AuthError{Code: domain.AuthInvalidSession}
}

// Refresh rotates the user's token to "tok2-<uid>".
func (p *stubProvider) Refresh(_ context.Context, refreshToken string) (*domain.RemoteUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	for _, all := range []map[string]*domain.RemoteUser{p.users, p.idp} {
		for _, u := range all {
			if u.RefreshToken == refreshToken {
				u.Token = "tok2-" + u.UID
				return u, nil
			}
		}
	}
	return nil, &domain.AuthError{Code: domain.AuthInvalidSession}
}

func (p *stubProvider) expire(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired[token] = true
}

func (p *stubProvider) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyErr = err
}

func (p *stubProvider) SignOut(context.Context, *domain.RemoteUser) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	return nil
}
