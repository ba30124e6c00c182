// Package identity implements the remote identity providers behind
// domain.IdentityProvider.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/msomdec/internsync/internal/domain"
)

const (
	// DefaultFirebaseURL is the Identity Toolkit REST endpoint.
	DefaultFirebaseURL = "https://identitytoolkit.googleapis.com"
	// DefaultSecureTokenURL exchanges refresh tokens for fresh ID tokens.
	DefaultSecureTokenURL = "https://securetoken.googleapis.com"
	firebaseTimeout       = 15 * time.Second
)

// firebaseCodes maps Identity Toolkit error messages to normalized codes.
var firebaseCodes = map[string]domain.AuthErrorCode{
	"INVALID_EMAIL":               domain.AuthInvalidEmail,
	"MISSING_EMAIL":               domain.AuthInvalidEmail,
	"EMAIL_NOT_FOUND":             domain.AuthUserNotFound,
	"USER_NOT_FOUND":              domain.AuthUserNotFound,
	"INVALID_PASSWORD":            domain.AuthWrongPassword,
	"MISSING_PASSWORD":            domain.AuthWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":   domain.AuthWrongPassword,
	"USER_DISABLED":               domain.AuthUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": domain.AuthTooManyRequests,
	"OPERATION_NOT_ALLOWED":       domain.AuthOperationNotAllowed,
	"INVALID_ID_TOKEN":            domain.AuthInvalidSession,
	"TOKEN_EXPIRED":               domain.AuthTokenExpired,
	"INVALID_REFRESH_TOKEN":       domain.AuthInvalidSession,
	"MISSING_REFRESH_TOKEN":       domain.AuthInvalidSession,
	"INVALID_GRANT_TYPE":          domain.AuthInvalidSession,
}

// FirebaseProvider talks to Firebase Authentication over its REST API.
type FirebaseProvider struct {
	apiKey     string
	baseURL    string
	tokenURL   string
	requestURI string
	client     *http.Client
}

var _ domain.IdentityProvider = (*FirebaseProvider)(nil)

// NewFirebaseProvider creates a provider for the given web API key. Empty
// baseURL and tokenURL select DefaultFirebaseURL and DefaultSecureTokenURL.
// requestURI is reported to the IdP endpoint as the origin of federated
// sign-ins.
func NewFirebaseProvider(apiKey, baseURL, tokenURL, requestURI string) *FirebaseProvider {
	if baseURL == "" {
		baseURL = DefaultFirebaseURL
	}
	if tokenURL == "" {
		tokenURL = DefaultSecureTokenURL
	}
	if requestURI == "" {
		requestURI = "http://localhost"
	}
	return &FirebaseProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokenURL:   strings.TrimRight(tokenURL, "/"),
		requestURI: requestURI,
		client:     &http.Client{Timeout: firebaseTimeout},
	}
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// refreshResponse is the securetoken exchange result; it uses snake_case.
type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
		Disabled    bool   `json:"disabled"`
	} `json:"users"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*domain.RemoteUser, error) {
	var resp signInResponse
	err := p.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.remoteUser(), nil
}

// SignInWithIdp exchanges a Google ID token for a Firebase session.
func (p *FirebaseProvider) SignInWithIdp(ctx context.Context, credential string) (*domain.RemoteUser, error) {
	if credential == "" {
		return nil, &domain.AuthError{Code: domain.AuthPopupClosed}
	}

	postBody := url.Values{}
	postBody.Set("id_token", credential)
	postBody.Set("providerId", "google.com")

	var resp signInResponse
	err := p.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          p.requestURI,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.remoteUser(), nil
}

func (p *FirebaseProvider) Verify(ctx context.Context, token string) (*domain.RemoteUser, error) {
	if token == "" {
		return nil, &domain.AuthError{Code: domain.AuthInvalidSession}
	}

	var resp lookupResponse
	if err := p.call(ctx, "accounts:lookup", map[string]any{"idToken": token}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, &domain.AuthError{Code: domain.AuthUserNotFound}
	}
	u := resp.Users[0]
	if u.Disabled {
		return nil, &domain.AuthError{Code: domain.AuthUserDisabled}
	}
	return &domain.RemoteUser{UID: u.LocalID, Email: u.Email, DisplayName: u.DisplayName, Token: token}, nil
}

// Refresh exchanges a refresh token for a new ID token and re-reads the
// account behind it.
func (p *FirebaseProvider) Refresh(ctx context.Context, refreshToken string) (*domain.RemoteUser, error) {
	if refreshToken == "" {
		return nil, &domain.AuthError{Code: domain.AuthInvalidSession}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var resp refreshResponse
	endpoint := fmt.Sprintf("%s/v1/token?key=%s", p.tokenURL, url.QueryEscape(p.apiKey))
	if err := p.post(ctx, "token", endpoint, "application/x-www-form-urlencoded", []byte(form.Encode()), &resp); err != nil {
		return nil, err
	}

	user, err := p.Verify(ctx, resp.IDToken)
	if err != nil {
		return nil, err
	}
	user.RefreshToken = resp.RefreshToken
	return user, nil
}

// SignOut is local to the caller: Firebase ID tokens cannot be revoked
// without admin credentials, so dropping the token ends the session.
func (p *FirebaseProvider) SignOut(ctx context.Context, user *domain.RemoteUser) error {
	return nil
}

func (r signInResponse) remoteUser() *domain.RemoteUser {
	return &domain.RemoteUser{
		UID:          r.LocalID,
		Email:        r.Email,
		DisplayName:  r.DisplayName,
		Token:        r.IDToken,
		RefreshToken: r.RefreshToken,
	}
}

func (p *FirebaseProvider) call(ctx context.Context, method string, body any, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/v1/%s?key=%s", p.baseURL, method, url.QueryEscape(p.apiKey))
	return p.post(ctx, method, endpoint, "application/json", payload, dst)
}

func (p *FirebaseProvider) post(ctx context.Context, method, endpoint, contentType string, payload []byte, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.AuthError{Code: domain.AuthUnknown, Err: fmt.Errorf("%s: %w", method, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.AuthError{Code: domain.AuthUnknown, Err: fmt.Errorf("read %s body: %w", method, err)}
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(data, &apiErr)
		return &domain.AuthError{
			Code: firebaseCode(apiErr.Error.Message),
			Err:  fmt.Errorf("%s returned %d: %s", method, resp.StatusCode, apiErr.Error.Message),
		}
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return &domain.AuthError{Code: domain.AuthUnknown, Err: fmt.Errorf("decode %s response: %w", method, err)}
	}
	return nil
}

// firebaseCode normalizes an Identity Toolkit message such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been ...".
func firebaseCode(message string) domain.AuthErrorCode {
	key, _, _ := strings.Cut(message, " ")
	key = strings.TrimSpace(strings.TrimSuffix(key, ":"))
	if code, ok := firebaseCodes[key]; ok {
		return code
	}
	return domain.AuthUnknown
}
