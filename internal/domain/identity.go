package domain

import (
	"context"
	"errors"
	"strings"
)

// RemoteUser is an identity confirmed by the remote identity provider.
type RemoteUser struct {
	UID         string
	Email       string
	DisplayName string
	// Token is the provider's opaque session token, presented back to Verify.
	Token string
	// RefreshToken exchanges for a new Token once Token has expired. Empty when
	// the provider does not issue one.
	RefreshToken string
}

// Name returns the display name, falling back to the email's local part.
func (u *RemoteUser) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	name, _, _ := strings.Cut(u.Email, "@")
	return name
}

// IdentityProvider is the remote identity provider contract.
// Failures are reported as *AuthError.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*RemoteUser, error)
	SignInWithIdp(ctx context.Context, credential string) (*RemoteUser, error)
	Verify(ctx context.Context, token string) (*RemoteUser, error)
	Refresh(ctx context.Context, refreshToken string) (*RemoteUser, error)
	SignOut(ctx context.Context, user *RemoteUser) error
}

// AuthErrorCode is a normalized provider error code.
type AuthErrorCode string

const (
	AuthInvalidEmail        AuthErrorCode = "invalid-email"
	AuthUserDisabled        AuthErrorCode = "user-disabled"
	AuthUserNotFound        AuthErrorCode = "user-not-found"
	AuthWrongPassword       AuthErrorCode = "wrong-password"
	AuthTooManyRequests     AuthErrorCode = "too-many-requests"
	AuthPopupClosed         AuthErrorCode = "popup-closed-by-user"
	AuthCancelledPopup      AuthErrorCode = "cancelled-popup-request"
	AuthOperationNotAllowed AuthErrorCode = "operation-not-allowed"
	AuthInvalidSession      AuthErrorCode = "invalid-session"
	AuthTokenExpired        AuthErrorCode = "user-token-expired"
	AuthUnknown             AuthErrorCode = "unknown"
)

var authMessages = map[AuthErrorCode]string{
	AuthInvalidEmail:        "Invalid email address",
	AuthUserDisabled:        "Account disabled",
	AuthUserNotFound:        "Account not found",
	AuthWrongPassword:       "Incorrect password",
	AuthTooManyRequests:     "Too many attempts. Try again later",
	AuthPopupClosed:         "Sign in cancelled",
	AuthCancelledPopup:      "Sign in cancelled",
	AuthOperationNotAllowed: "Google sign-in not enabled",
	AuthTokenExpired:        "Session expired. Please sign in again",
}

// AuthError is a provider failure normalized to a known code.
type AuthError struct {
	Code AuthErrorCode
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message returns the single user-facing line for the error.
func (e *AuthError) Message() string {
	if msg, ok := authMessages[e.Code]; ok {
		return msg
	}
	return "Authentication failed"
}

// Transient reports whether the failure says nothing about the credential
// itself, so retrying later may succeed.
func (e *AuthError) Transient() bool {
	return e.Code == AuthUnknown || e.Code == AuthTooManyRequests
}

// HasAuthCode reports whether err is an *AuthError with the given code.
func HasAuthCode(err error, code AuthErrorCode) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Code == code
}
