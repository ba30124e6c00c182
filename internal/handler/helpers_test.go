package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msomdec/internsync/internal/catalog"
	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/handler"
	"github.com/msomdec/internsync/internal/identity"
	"github.com/msomdec/internsync/internal/repository/sqlite"
	"github.com/msomdec/internsync/internal/service"
)

const testJWTSecret = "test-secret-for-handler-tests-32b"

const testListings = `{"internshipJobsDataCsv": [
  {"id": 41, "jobTitle": "Backend Intern", "companyName": "Acme", "location": "Berlin",
   "salary": "1000", "duration": "3 months", "jobType": "Remote", "jobCategory": "Engineering",
   "description": "Go services."},
  {"id": 42, "jobTitle": "Data Intern", "companyName": "Globex", "location": "Paris",
   "salary": "1200", "duration": "6 months", "jobType": "Onsite", "jobCategory": "Data",
   "description": "Crunch numbers."}
]}`

type testApp struct {
	srv      *httptest.Server
	db       *sqlite.DB
	sessions *service.SessionService
	accounts *identity.BuiltinProvider
	// listingsStatus, when non-zero, makes the listings API fail with that status.
	listingsStatus atomic.Int32
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWith(t, nil)
}

// newTestAppWith builds the app around provider; nil selects the builtin
// account provider, available as app.accounts.
func newTestAppWith(t *testing.T, provider domain.IdentityProvider) *testApp {
	t.Helper()
	app := &testApp{}

	listings := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status := app.listingsStatus.Load(); status != 0 {
			w.WriteHeader(int(status))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, testListings)
	}))
	t.Cleanup(listings.Close)

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	app.db = db

	creds := service.NewCredentialService(db.LocalUsers(), 4)
	if err := creds.SeedDefault(context.Background()); err != nil {
		t.Fatalf("SeedDefault: %v", err)
	}
	if provider == nil {
		app.accounts = identity.NewBuiltinProvider(db.Accounts(), testJWTSecret, 4)
		provider = app.accounts
	}
	ids := service.NewIdentityService(provider, db.Documents())
	favs := service.NewFavoritesService(db.LocalUsers(), db.Documents())
	app.sessions = service.NewSessionService(testJWTSecret, ids, creds, favs)
	board := service.NewCatalogService(catalog.NewLoader(listings.URL), time.Minute)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, db, app.sessions,
		handler.NewAuthHandler(creds, ids, app.sessions, service.NewPerMinute(100), false, ""),
		handler.NewDashboardHandler(board, favs),
		false,
	)
	app.srv = httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(app.srv.Close)
	return app
}

// client returns an HTTP client with its own cookie jar that does not follow redirects.
func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (a *testApp) cookie(t *testing.T, c *http.Client, name string) string {
	t.Helper()
	u, _ := url.Parse(a.srv.URL)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func postForm(t *testing.T, c *http.Client, u string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	return resp, readBody(t, resp)
}

func get(t *testing.T, c *http.Client, u string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	return resp, readBody(t, resp)
}

// pageID extracts the catalog page ID from a rendered dashboard.
func pageID(t *testing.T, html string) string {
	t.Helper()
	const marker = "&#34;pageId&#34;:&#34;"
	i := strings.Index(html, marker)
	if i < 0 {
		t.Fatalf("dashboard has no page id: %s", html)
	}
	rest := html[i+len(marker):]
	end := strings.Index(rest, "&#34;")
	return rest[:end]
}

func signalsJSON(t *testing.T, signals map[string]string) string {
	t.Helper()
	b, err := json.Marshal(signals)
	if err != nil {
		t.Fatalf("marshal signals: %v", err)
	}
	return string(b)
}

// getJobs requests a datastar re-render of the job list.
func getJobs(t *testing.T, c *http.Client, base string, signals map[string]string) string {
	t.Helper()
	u := base + "/dashboard/jobs?datastar=" + url.QueryEscape(signalsJSON(t, signals))
	req, _ := http.NewRequest(http.MethodGet, u, nil)
	req.Header.Set("Datastar-Request", "true")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("GET /dashboard/jobs: %v", err)
	}
	return readBody(t, resp)
}

// toggle posts a datastar favorite toggle for id.
func toggle(t *testing.T, c *http.Client, base, id string, signals map[string]string) string {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, base+"/dashboard/favorites/"+id, strings.NewReader(signalsJSON(t, signals)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Datastar-Request", "true")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("POST favorite: %v", err)
	}
	return readBody(t, resp)
}

// firebaseStub is an Identity Toolkit and securetoken stand-in with a single
// account, ann@example.com / secret.
type firebaseStub struct {
	srv *httptest.Server
	// outage makes every call fail with 503 UNAVAILABLE.
	outage atomic.Bool
	// expired makes lookups of the first issued token fail with TOKEN_EXPIRED.
	expired atomic.Bool
}

func newFirebaseStub(t *testing.T) *firebaseStub {
	t.Helper()
	stub := &firebaseStub{}

	fail := func(w http.ResponseWriter, status int, message string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": message}})
	}
	account := map[string]any{"localId": "fb-ann", "email": "ann@example.com", "displayName": "Ann"}

	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stub.outage.Load() {
			fail(w, http.StatusServiceUnavailable, "UNAVAILABLE")
			return
		}
		switch r.URL.Path {
		case "/v1/accounts:signInWithPassword":
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			if body["email"] != "ann@example.com" || body["password"] != "secret" {
				fail(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"localId": "fb-ann", "email": "ann@example.com", "displayName": "Ann",
				"idToken": "tok-1", "refreshToken": "ref-1",
			})
		case "/v1/accounts:lookup":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			switch {
			case body["idToken"] == "tok-1" && stub.expired.Load():
				fail(w, http.StatusBadRequest, "TOKEN_EXPIRED")
			case body["idToken"] == "tok-1" || body["idToken"] == "tok-2":
				json.NewEncoder(w).Encode(map[string]any{"users": []any{account}})
			default:
				fail(w, http.StatusBadRequest, "INVALID_ID_TOKEN")
			}
		case "/v1/token":
			r.ParseForm()
			if r.PostForm.Get("refresh_token") != "ref-1" {
				fail(w, http.StatusBadRequest, "INVALID_REFRESH_TOKEN")
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id_token": "tok-2", "refresh_token": "ref-2", "user_id": "fb-ann", "expires_in": "3600",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (s *firebaseStub) provider() *identity.FirebaseProvider {
	return identity.NewFirebaseProvider("test-key", s.srv.URL, s.srv.URL, "http://localhost")
}
