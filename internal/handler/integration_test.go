package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func TestIntegration_RegisterDashboardToggleLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	// 1. Register alice; she lands on the dashboard logged in.
	resp, _ := postForm(t, c, app.srv.URL+"/register", url.Values{
		"username": {"alice"},
		"email":    {"alice@x.com"},
		"password": {"Passw0rd!"},
		"terms":    {"on"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("register: expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("register: expected redirect to /dashboard, got %s", loc)
	}
	if app.cookie(t, c, "current_user") == "" {
		t.Fatal("expected current_user cookie after register")
	}

	// 2. The dashboard renders the catalog with her name.
	resp, html := get(t, c, app.srv.URL+"/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(html, "alice") || !strings.Contains(html, "Data Intern") {
		t.Fatal("dashboard should show the user and the catalog")
	}
	page := pageID(t, html)

	// 3. Toggling job 42 stores it and redraws the star filled.
	body := toggle(t, c, app.srv.URL, "42", map[string]string{"pageId": page, "mode": "all"})
	if !strings.Contains(body, `id="fav-42"`) || !strings.Contains(body, "❤️") {
		t.Fatalf("toggle should redraw a filled star, got %s", body)
	}
	favs, err := app.db.LocalUsers().ListFavorites(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 1 || favs[0].ID != "42" || favs[0].CompanyName != "Globex" {
		t.Fatalf("expected job 42 in favorites, got %+v", favs)
	}

	// 4. Favorites mode shows only job 42.
	body = getJobs(t, c, app.srv.URL, map[string]string{"pageId": page, "mode": "favorites"})
	if !strings.Contains(body, "Data Intern") || strings.Contains(body, "Backend Intern") {
		t.Fatalf("favorites mode should show only job 42, got %s", body)
	}

	// 5. The JSON API mirrors the session.
	resp, raw := get(t, c, app.srv.URL+"/api/favorites")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("api favorites: expected 200, got %d", resp.StatusCode)
	}
	var list struct {
		Favorites []struct {
			ID string `json:"id"`
		} `json:"favorites"`
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		t.Fatalf("decode favorites: %v", err)
	}
	if len(list.Favorites) != 1 || list.Favorites[0].ID != "42" {
		t.Fatalf("unexpected favorites %+v", list.Favorites)
	}

	// 6. Toggling again restores the empty state.
	body = toggle(t, c, app.srv.URL, "42", map[string]string{"pageId": page, "mode": "all"})
	if !strings.Contains(body, "☆") {
		t.Fatalf("second toggle should redraw an empty star, got %s", body)
	}

	// 7. Logout clears the session.
	resp, _ = postForm(t, c, app.srv.URL+"/logout", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout: expected 303, got %d", resp.StatusCode)
	}
	if app.cookie(t, c, "current_user") != "" {
		t.Fatal("current_user cookie should be cleared")
	}

	// 8. alice can log in again with the same credentials.
	resp, _ = postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"alice"},
		"password":   {"Passw0rd!"},
	})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("login: expected redirect to /dashboard, got %d %s", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestIntegration_LoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp, html := postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"bob"},
		"password":   {"wrongpass"},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if !strings.Contains(html, "Invalid username or password") {
		t.Fatalf("expected error message, got %s", html)
	}
	if app.cookie(t, c, "current_user") != "" {
		t.Fatal("no session should be created")
	}
}

func TestIntegration_LoginSeedAccount(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp, _ := postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"bob"},
		"password":   {"bobpass"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}

	resp, raw := get(t, c, app.srv.URL+"/api/auth/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(raw, `"id":"local-bob"`) || !strings.Contains(raw, `"isLocalUser":true`) {
		t.Fatalf("unexpected me response %s", raw)
	}
}

func TestIntegration_RegisterValidation(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
		want   string
	}{
		{"blank", url.Values{"username": {"carl"}, "terms": {"on"}}, http.StatusUnprocessableEntity, "All fields are required"},
		{"terms", url.Values{"username": {"carl"}, "email": {"c@x.com"}, "password": {"Passw0rd!"}}, http.StatusUnprocessableEntity, "You must agree to the terms &amp; conditions"},
		{"weak", url.Values{"username": {"carl"}, "email": {"c@x.com"}, "password": {"password"}, "terms": {"on"}}, http.StatusUnprocessableEntity, "Password must contain at least 8 characters"},
		{"taken", url.Values{"username": {"bob"}, "email": {"b2@x.com"}, "password": {"Passw0rd!"}, "terms": {"on"}}, http.StatusConflict, "Username already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, html := postForm(t, c, app.srv.URL+"/register", tt.form)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if !strings.Contains(html, tt.want) {
				t.Fatalf("expected %q in page", tt.want)
			}
		})
	}
}

func TestIntegration_LoginBlankFields(t *testing.T) {
	app := newTestApp(t)

	resp, html := postForm(t, app.client(t), app.srv.URL+"/login", url.Values{"identifier": {"bob"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(html, "Please fill in all fields") {
		t.Fatal("expected blank-field message")
	}
}

func TestIntegration_RemoteAccountLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	if _, err := app.accounts.CreateAccount(context.Background(), "dana@example.com", "Dana", "s3cret-pass"); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	resp, html := postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"dana@example.com"},
		"password":   {"nope"},
	})
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(html, "Incorrect password") {
		t.Fatalf("expected wrong-password message, got %d", resp.StatusCode)
	}

	resp, _ = postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"dana@example.com"},
		"password":   {"s3cret-pass"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if app.cookie(t, c, "remote_identity") == "" {
		t.Fatal("expected remote_identity cookie")
	}

	resp, raw := get(t, c, app.srv.URL+"/api/auth/me")
	if resp.StatusCode != http.StatusOK || !strings.Contains(raw, `"kind":"remote"`) {
		t.Fatalf("expected remote session, got %d %s", resp.StatusCode, raw)
	}

	// A local login replaces the remote identity.
	resp, _ = postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"bob"},
		"password":   {"bobpass"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if app.cookie(t, c, "remote_identity") != "" {
		t.Fatal("local login should clear the remote identity")
	}
	_, raw = get(t, c, app.srv.URL+"/api/auth/me")
	if !strings.Contains(raw, `"id":"local-bob"`) {
		t.Fatalf("expected local session, got %s", raw)
	}
}

func TestIntegration_GoogleSignInDisabled(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	u, _ := url.Parse(app.srv.URL)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: "g_csrf_token", Value: "csrf-1"}})

	resp, html := postForm(t, c, app.srv.URL+"/auth/google", url.Values{
		"credential":   {"id-token"},
		"g_csrf_token": {"csrf-1"},
	})
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(html, "Google sign-in not enabled") {
		t.Fatalf("expected operation-not-allowed message, got %d", resp.StatusCode)
	}

	resp, _ = postForm(t, c, app.srv.URL+"/auth/google", url.Values{"credential": {"id-token"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing csrf token: expected 400, got %d", resp.StatusCode)
	}
}

func TestIntegration_CatalogFailure(t *testing.T) {
	app := newTestApp(t)
	app.listingsStatus.Store(http.StatusInternalServerError)

	resp, html := get(t, app.client(t), app.srv.URL+"/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(html, "⚠️ Failed to fetch jobs: 500") {
		t.Fatalf("expected error panel, got %s", html)
	}
	if strings.Count(html, "<option") != 3 {
		t.Fatal("select filters should stay empty")
	}
}

func TestIntegration_AnonymousPrompts(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	_, html := get(t, c, app.srv.URL+"/dashboard")
	page := pageID(t, html)

	body := toggle(t, c, app.srv.URL, "42", map[string]string{"pageId": page})
	if !strings.Contains(body, "Please login to save favorites") {
		t.Fatalf("expected login prompt, got %s", body)
	}

	body = getJobs(t, c, app.srv.URL, map[string]string{"pageId": page, "mode": "favorites"})
	if !strings.Contains(body, "Please login to view favorites") {
		t.Fatalf("expected login prompt, got %s", body)
	}
	if strings.Contains(body, "job-card-flip") {
		t.Fatal("the job list should not be re-rendered")
	}

	resp, _ := get(t, c, app.srv.URL+"/api/favorites")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestIntegration_FilterJobs(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	_, html := get(t, c, app.srv.URL+"/dashboard")
	page := pageID(t, html)

	body := getJobs(t, c, app.srv.URL, map[string]string{"pageId": page, "search": "acme", "mode": "all"})
	if !strings.Contains(body, "Backend Intern") || strings.Contains(body, "Data Intern") {
		t.Fatalf("search should match company, got %s", body)
	}

	body = getJobs(t, c, app.srv.URL, map[string]string{"pageId": page, "location": "Tokyo", "mode": "all"})
	if !strings.Contains(body, "No internships found matching your filters.") {
		t.Fatalf("expected no-results state, got %s", body)
	}

	body = getJobs(t, c, app.srv.URL, map[string]string{"pageId": "expired", "mode": "all"})
	if !strings.Contains(body, "/dashboard") {
		t.Fatalf("unknown page should redirect to the dashboard, got %s", body)
	}
}

func loginAnn(t *testing.T, app *testApp, c *http.Client) {
	t.Helper()
	resp, _ := postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"ann@example.com"},
		"password":   {"secret"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("remote login: expected 303, got %d", resp.StatusCode)
	}
	if app.cookie(t, c, "remote_identity") != "tok-1" || app.cookie(t, c, "remote_refresh") != "ref-1" {
		t.Fatal("expected the provider token pair in cookies")
	}
}

func TestIntegration_ProviderOutage(t *testing.T) {
	stub := newFirebaseStub(t)
	app := newTestAppWith(t, stub.provider())
	c := app.client(t)
	loginAnn(t, app, c)

	stub.outage.Store(true)

	// Pages still render, anonymously, and the remote tokens survive the outage.
	resp, html := get(t, c, app.srv.URL+"/login")
	if resp.StatusCode != http.StatusOK || !strings.Contains(html, `name="identifier"`) {
		t.Fatalf("login page during outage: expected 200 form, got %d", resp.StatusCode)
	}
	resp, _ = get(t, c, app.srv.URL+"/api/auth/me")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me during outage: expected 401, got %d", resp.StatusCode)
	}
	if app.cookie(t, c, "remote_identity") != "tok-1" {
		t.Fatal("a transient provider failure should keep the remote token")
	}

	resp, _ = postForm(t, c, app.srv.URL+"/logout", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout during outage: expected 303, got %d", resp.StatusCode)
	}
	for _, name := range []string{"current_user", "remote_identity", "remote_refresh"} {
		if app.cookie(t, c, name) != "" {
			t.Fatalf("logout should clear %s", name)
		}
	}
}

func TestIntegration_ProviderOutageKeepsLocalSession(t *testing.T) {
	stub := newFirebaseStub(t)
	app := newTestAppWith(t, stub.provider())
	c := app.client(t)

	resp, _ := postForm(t, c, app.srv.URL+"/login", url.Values{
		"identifier": {"bob"},
		"password":   {"bobpass"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("local login: expected 303, got %d", resp.StatusCode)
	}

	// A leftover remote token the provider cannot check right now.
	u, _ := url.Parse(app.srv.URL)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: "remote_identity", Value: "tok-1", Path: "/"}})
	stub.outage.Store(true)

	resp, raw := get(t, c, app.srv.URL+"/api/auth/me")
	if resp.StatusCode != http.StatusOK || !strings.Contains(raw, `"id":"local-bob"`) {
		t.Fatalf("expected the local session to survive, got %d %s", resp.StatusCode, raw)
	}
}

func TestIntegration_ExpiredRemoteTokenIsRefreshed(t *testing.T) {
	stub := newFirebaseStub(t)
	app := newTestAppWith(t, stub.provider())
	c := app.client(t)
	loginAnn(t, app, c)

	stub.expired.Store(true)

	resp, raw := get(t, c, app.srv.URL+"/api/auth/me")
	if resp.StatusCode != http.StatusOK || !strings.Contains(raw, `"id":"fb-ann"`) {
		t.Fatalf("expected the remote session after refresh, got %d %s", resp.StatusCode, raw)
	}
	if got := app.cookie(t, c, "remote_identity"); got != "tok-2" {
		t.Fatalf("expected refreshed remote_identity tok-2, got %q", got)
	}
	if got := app.cookie(t, c, "remote_refresh"); got != "ref-2" {
		t.Fatalf("expected rotated remote_refresh ref-2, got %q", got)
	}

	// The refreshed token keeps working without another exchange.
	resp, _ = get(t, c, app.srv.URL+"/api/auth/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with refreshed token, got %d", resp.StatusCode)
	}
}
