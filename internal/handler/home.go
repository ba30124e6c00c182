package handler

import (
	"net/http"

	"github.com/msomdec/internsync/internal/view"
)

// HandleHome renders the landing page.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	view.HomePage(SessionFromContext(r.Context())).Render(r.Context(), w)
}
