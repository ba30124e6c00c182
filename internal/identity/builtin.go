package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/internsync/internal/domain"
)

const (
	builtinIssuer = "internsync-identity"

	// Token audiences keep ID tokens and refresh tokens from standing in for
	// each other.
	audienceID      = "id"
	audienceRefresh = "refresh"
)

// BuiltinProvider is a self-hosted identity provider backed by the accounts
// table. Provider tokens are HS256 JWTs: a short-lived ID token and a
// long-lived refresh token. It does not support federated sign-in.
type BuiltinProvider struct {
	accounts   domain.AccountRepository
	secret     []byte
	bcryptCost int
	tokenTTL   time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ domain.IdentityProvider = (*BuiltinProvider)(nil)

// BuiltinOption configures a BuiltinProvider.
type BuiltinOption func(*BuiltinProvider)

// WithClock replaces the clock used to issue and check tokens.
func WithClock(now func() time.Time) BuiltinOption {
	return func(p *BuiltinProvider) { p.now = now }
}

// NewBuiltinProvider creates a new BuiltinProvider. ID tokens live for an
// hour and refresh tokens for thirty days.
func NewBuiltinProvider(accounts domain.AccountRepository, secret string, bcryptCost int, opts ...BuiltinOption) *BuiltinProvider {
	p := &BuiltinProvider{
		accounts:   accounts,
		secret:     []byte(secret),
		bcryptCost: bcryptCost,
		tokenTTL:   time.Hour,
		refreshTTL: 30 * 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CreateAccount provisions an account that can sign in with a password.
func (p *BuiltinProvider) CreateAccount(ctx context.Context, email, displayName, password string) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func (p *BuiltinProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.RemoteUser, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &domain.AuthError{Code: domain.AuthInvalidEmail}
	}

	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.AuthError{Code: domain.AuthUserNotFound}
		}
		return nil, &domain.AuthError{Code: domain.AuthUnknown, Err: err}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, &domain.AuthError{Code: domain.AuthWrongPassword}
	}
	if account.Disabled {
		return nil, &domain.AuthError{Code: domain.AuthUserDisabled}
	}

	return p.signIn(account)
}

func (p *BuiltinProvider) SignInWithIdp(ctx context.Context, credential string) (*domain.RemoteUser, error) {
	return nil, &domain.AuthError{Code: domain.AuthOperationNotAllowed}
}

func (p *BuiltinProvider) Verify(ctx context.Context, token string) (*domain.RemoteUser, error) {
	account, err := p.accountFor(ctx, token, audienceID)
	if err != nil {
		return nil, err
	}
	return accountUser(account, token, ""), nil
}

// Refresh trades a refresh token for a new token pair.
func (p *BuiltinProvider) Refresh(ctx context.Context, refreshToken string) (*domain.RemoteUser, error) {
	account, err := p.accountFor(ctx, refreshToken, audienceRefresh)
	if err != nil {
		if domain.HasAuthCode(err, domain.AuthTokenExpired) {
			return nil, &domain.AuthError{Code: domain.AuthInvalidSession, Err: err}
		}
		return nil, err
	}
	return p.signIn(account)
}

// SignOut is a no-op; tokens expire on their own and the caller drops them.
func (p *BuiltinProvider) SignOut(ctx context.Context, user *domain.RemoteUser) error {
	return nil
}

func (p *BuiltinProvider) accountFor(ctx context.Context, token, audience string) (*domain.Account, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithIssuer(builtinIssuer), jwt.WithAudience(audience), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &domain.AuthError{Code: domain.AuthTokenExpired, Err: err}
		}
		return nil, &domain.AuthError{Code: domain.AuthInvalidSession, Err: err}
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil {
		return nil, &domain.AuthError{Code: domain.AuthInvalidSession, Err: err}
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, &domain.AuthError{Code: domain.AuthInvalidSession, Err: err}
	}

	account, err := p.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.AuthError{Code: domain.AuthUserNotFound}
		}
		return nil, &domain.AuthError{Code: domain.AuthUnknown, Err: err}
	}
	if account.Disabled {
		return nil, &domain.AuthError{Code: domain.AuthUserDisabled}
	}
	return account, nil
}

func (p *BuiltinProvider) signIn(account *domain.Account) (*domain.RemoteUser, error) {
	token, err := p.issueToken(account, audienceID, p.tokenTTL)
	if err != nil {
		return nil, &domain.AuthError{Code: domain.AuthUnknown, Err: fmt.Errorf("issue token: %w", err)}
	}
	refresh, err := p.issueToken(account, audienceRefresh, p.refreshTTL)
	if err != nil {
		return nil, &domain.AuthError{Code: domain.AuthUnknown, Err: fmt.Errorf("issue refresh token: %w", err)}
	}
	return accountUser(account, token, refresh), nil
}

func (p *BuiltinProvider) issueToken(account *domain.Account, audience string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Issuer:    builtinIssuer,
		Subject:   strconv.FormatInt(account.ID, 10),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func accountUser(a *domain.Account, token, refreshToken string) *domain.RemoteUser {
	return &domain.RemoteUser{
		UID:          "acct-" + strconv.FormatInt(a.ID, 10),
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		Token:        token,
		RefreshToken: refreshToken,
	}
}
