package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/identity"
)

func newFirebaseServer(t *testing.T, handler http.HandlerFunc) *identity.FirebaseProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return identity.NewFirebaseProvider("test-key", srv.URL, srv.URL, "http://localhost:8080")
}

func writeFirebaseError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": 400, "message": message},
	})
}

func TestFirebaseProvider_SignInWithPassword(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	p := newFirebaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"localId":      "uid-123",
			"email":        "ann@example.com",
			"displayName":  "",
			"idToken":      "id-token",
			"refreshToken": "refresh-token",
		})
	})

	user, err := p.SignInWithPassword(context.Background(), "ann@example.com", "secret")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if gotPath != "/v1/accounts:signInWithPassword" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected api key test-key, got %q", gotKey)
	}
	if gotBody["email"] != "ann@example.com" || gotBody["returnSecureToken"] != true {
		t.Fatalf("unexpected request body %v", gotBody)
	}
	if user.UID != "uid-123" || user.Token != "id-token" || user.RefreshToken != "refresh-token" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Name() != "ann" {
		t.Fatalf("expected name fallback 'ann', got %q", user.Name())
	}
}

func TestFirebaseProvider_ErrorCodes(t *testing.T) {
	tests := []struct {
		message string
		code    domain.AuthErrorCode
		text    string
	}{
		{"INVALID_EMAIL", domain.AuthInvalidEmail, "Invalid email address"},
		{"EMAIL_NOT_FOUND", domain.AuthUserNotFound, "Account not found"},
		{"INVALID_PASSWORD", domain.AuthWrongPassword, "Incorrect password"},
		{"USER_DISABLED", domain.AuthUserDisabled, "Account disabled"},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", domain.AuthTooManyRequests, "Too many attempts. Try again later"},
		{"OPERATION_NOT_ALLOWED", domain.AuthOperationNotAllowed, "Google sign-in not enabled"},
		{"SOMETHING_NEW", domain.AuthUnknown, "Authentication failed"},
	}

	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			p := newFirebaseServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeFirebaseError(w, tc.message)
			})

			_, err := p.SignInWithPassword(context.Background(), "a@b.com", "pw")
			var authErr *domain.AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *AuthError, got %v", err)
			}
			if authErr.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, authErr.Code)
			}
			if authErr.Message() != tc.text {
				t.Fatalf("expected message %q, got %q", tc.text, authErr.Message())
			}
		})
	}
}

func TestFirebaseProvider_SignInWithIdp(t *testing.T) {
	var gotBody map[string]any
	p := newFirebaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithIdp" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"localId":     "g-1",
			"email":       "g@example.com",
			"displayName": "Gee",
			"idToken":     "tok",
		})
	})

	user, err := p.SignInWithIdp(context.Background(), "google-jwt")
	if err != nil {
		t.Fatalf("SignInWithIdp: %v", err)
	}
	if user.DisplayName != "Gee" {
		t.Fatalf("unexpected user %+v", user)
	}

	postBody, _ := gotBody["postBody"].(string)
	values, err := url.ParseQuery(postBody)
	if err != nil {
		t.Fatalf("parse postBody: %v", err)
	}
	if values.Get("id_token") != "google-jwt" || values.Get("providerId") != "google.com" {
		t.Fatalf("unexpected postBody %q", postBody)
	}
	if gotBody["requestUri"] != "http://localhost:8080" {
		t.Fatalf("unexpected requestUri %v", gotBody["requestUri"])
	}
}

func TestFirebaseProvider_SignInWithIdp_Cancelled(t *testing.T) {
	p := identity.NewFirebaseProvider("key", "http://127.0.0.1:1", "", "")

	_, err := p.SignInWithIdp(context.Background(), "")
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) || authErr.Code != domain.AuthPopupClosed {
		t.Fatalf("expected popup-closed-by-user, got %v", err)
	}
	if authErr.Message() != "Sign in cancelled" {
		t.Fatalf("unexpected message %q", authErr.Message())
	}
}

func TestFirebaseProvider_Verify(t *testing.T) {
	p := newFirebaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["idToken"] != "good" {
			writeFirebaseError(w, "INVALID_ID_TOKEN")
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{{"localId": "uid-9", "email": "v@example.com"}},
		})
	})

	user, err := p.Verify(context.Background(), "good")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.UID != "uid-9" || user.Token != "good" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = p.Verify(context.Background(), "expired")
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) || authErr.Code != domain.AuthInvalidSession {
		t.Fatalf("expected invalid-session, got %v", err)
	}
}

func TestFirebaseProvider_RefreshExpiredToken(t *testing.T) {
	var gotForm url.Values
	p := newFirebaseServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/token":
			if r.URL.Query().Get("key") != "test-key" {
				t.Errorf("missing api key on token exchange")
			}
			r.ParseForm()
			gotForm = r.PostForm
			if r.PostForm.Get("refresh_token") != "refresh-1" {
				writeFirebaseError(w, "INVALID_REFRESH_TOKEN")
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id_token":      "fresh",
				"refresh_token": "refresh-2",
				"user_id":       "uid-9",
				"expires_in":    "3600",
			})
		case "/v1/accounts:lookup":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["idToken"] != "fresh" {
				writeFirebaseError(w, "TOKEN_EXPIRED")
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{"localId": "uid-9", "email": "v@example.com"}},
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	ctx := context.Background()

	_, err := p.Verify(ctx, "stale")
	if !domain.HasAuthCode(err, domain.AuthTokenExpired) {
		t.Fatalf("expected user-token-expired, got %v", err)
	}

	user, err := p.Refresh(ctx, "refresh-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if gotForm.Get("grant_type") != "refresh_token" {
		t.Fatalf("unexpected grant_type %q", gotForm.Get("grant_type"))
	}
	if user.UID != "uid-9" || user.Token != "fresh" || user.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected user %+v", user)
	}

	_, err = p.Refresh(ctx, "revoked")
	if !domain.HasAuthCode(err, domain.AuthInvalidSession) {
		t.Fatalf("expected invalid-session, got %v", err)
	}
}
