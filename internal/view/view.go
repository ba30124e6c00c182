// Package view holds the templ components rendered by the handlers. The
// *_templ.go files are generated from the .templ sources with templ generate.
package view

import (
	"encoding/json"
	"fmt"

	"github.com/a-h/templ"

	"github.com/msomdec/internsync/internal/domain"
)

// Element IDs patched by the board's SSE responses.
const (
	JobsContainerID = "jobs-container"
	FlashID         = "flash"
)

// FavoriteButtonID is the element ID of a job's favorite button.
func FavoriteButtonID(id domain.JobID) string {
	return "fav-" + string(id)
}

// Dashboard is everything the dashboard page needs for its first render.
type Dashboard struct {
	Session *domain.Session
	PageID  string
	Options domain.FilterOptions
	Jobs    []domain.Job
	// LoadError replaces the job list when the catalog could not be fetched.
	LoadError string
}

// LoginForm is the state of the login form on re-render.
type LoginForm struct {
	Identifier     string
	Error          string
	GoogleClientID string
}

// RegisterForm is the state of the registration form on re-render.
type RegisterForm struct {
	Username string
	Email    string
	Error    string
}

// dashboardSignals is the initial datastar signal set of the board.
func dashboardSignals(pageID string) (string, error) {
	b, err := json.Marshal(map[string]string{
		"pageId":   pageID,
		"search":   "",
		"location": "",
		"jobType":  "",
		"category": "",
		"mode":     string(domain.ViewAll),
	})
	if err != nil {
		return "", fmt.Errorf("marshal signals: %w", err)
	}
	return string(b), nil
}

// loginHead loads the Google Identity Services client when sign-in is enabled.
func loginHead(form LoginForm) templ.Component {
	if form.GoogleClientID == "" {
		return nil
	}
	return googleSignInScript()
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7fb;color:#1d1d1f}
.navbar{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1.5rem;background:#fff;box-shadow:0 1px 3px #0001}
.nav-links{display:flex;gap:1rem;align-items:center}
.container{max-width:1100px;margin:1.5rem auto;padding:0 1rem}
.btn,.btn-link{cursor:pointer}
.alert{padding:.6rem 1rem;border-radius:6px;background:#fde8e8;color:#9b1c1c;margin-bottom:1rem}
.filters{display:flex;flex-wrap:wrap;gap:.5rem;margin-bottom:1rem}
.view-toggle button.view-active{font-weight:bold;text-decoration:underline}
#jobs-container{display:grid;grid-template-columns:repeat(auto-fill,minmax(260px,1fr));gap:1rem}
.job-card-flip{perspective:1000px;min-height:280px}
.job-card-inner{position:relative;width:100%;height:100%;transition:transform .5s;transform-style:preserve-3d}
.job-card-inner.flipped{transform:rotateY(180deg)}
.job-card-front,.job-card-back{position:absolute;inset:0;backface-visibility:hidden;background:#fff;border-radius:8px;padding:1rem;box-shadow:0 1px 4px #0002}
.job-card-back{transform:rotateY(180deg);overflow:auto}
.favorite-btn.disabled{opacity:.5}
.no-results,.error{grid-column:1/-1;text-align:center;padding:2rem}
`
