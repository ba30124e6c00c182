package handler

import (
	"errors"
	"log/slog"
	"net/http"

	datastar "github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/internsync/internal/catalog"
	"github.com/msomdec/internsync/internal/domain"
	"github.com/msomdec/internsync/internal/service"
	"github.com/msomdec/internsync/internal/view"
)

// boardSignals are the datastar signals the dashboard sends with each request.
type boardSignals struct {
	PageID   string `json:"pageId"`
	Search   string `json:"search"`
	Location string `json:"location"`
	JobType  string `json:"jobType"`
	Category string `json:"category"`
	Mode     string `json:"mode"`
}

func (s boardSignals) state() domain.ViewState {
	return domain.ViewState{
		Search:   s.Search,
		Location: s.Location,
		JobType:  s.JobType,
		Category: s.Category,
		Mode:     service.ParseMode(s.Mode),
	}
}

// DashboardHandler handles the job board.
type DashboardHandler struct {
	catalog   *service.CatalogService
	favorites *service.FavoritesService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(catalog *service.CatalogService, favorites *service.FavoritesService) *DashboardHandler {
	return &DashboardHandler{catalog: catalog, favorites: favorites}
}

// HandleDashboard fetches the catalog for this page load and renders the board.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	pageID, jobs, err := h.catalog.Open(r.Context())
	if err != nil {
		slog.Error("load catalog", "error", err)
		view.DashboardPage(view.Dashboard{Session: sess, LoadError: loadErrorMessage(err)}).Render(r.Context(), w)
		return
	}

	view.DashboardPage(view.Dashboard{
		Session: sess,
		PageID:  pageID,
		Options: service.FilterOptions(jobs),
		Jobs:    jobs,
	}).Render(r.Context(), w)
}

// HandleJobs re-renders the job list for the current filters via SSE.
func (h *DashboardHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	var signals boardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sess := SessionFromContext(r.Context())
	sse := datastar.NewSSE(w, r)

	jobs, ok := h.catalog.Snapshot(signals.PageID)
	if !ok {
		sse.Redirect("/dashboard")
		return
	}

	state := signals.state()
	mode, err := service.SelectMode(sess, state.Mode)
	if err != nil {
		sse.PatchElementTempl(view.Flash("Please login to view favorites"), datastar.WithSelectorID(view.FlashID), datastar.WithModeInner())
		sse.MarshalAndPatchSignals(map[string]string{"mode": string(mode)})
		return
	}
	state.Mode = mode

	var favorites domain.FavoriteSet
	if sess != nil {
		favorites = domain.NewFavoriteSet(sess.Favorites)
	}

	sse.PatchElementTempl(view.Flash(""), datastar.WithSelectorID(view.FlashID), datastar.WithModeInner())
	sse.PatchElementTempl(
		view.JobList(service.FilterJobs(jobs, state, favorites), sess),
		datastar.WithSelectorID(view.JobsContainerID),
		datastar.WithModeInner(),
	)
}

// HandleToggleFavorite flips a job's favorite state and redraws its star once
// the write is acknowledged.
func (h *DashboardHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var signals boardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	jobID := domain.JobID(r.PathValue("id"))

	sess := SessionFromContext(r.Context())
	sse := datastar.NewSSE(w, r)

	if sess == nil {
		sse.PatchElementTempl(view.Flash("Please login to save favorites"), datastar.WithSelectorID(view.FlashID), datastar.WithModeInner())
		return
	}

	job, err := h.catalog.Find(signals.PageID, jobID)
	if err != nil {
		if _, ok := h.catalog.Snapshot(signals.PageID); !ok {
			sse.Redirect("/dashboard")
			return
		}
		sse.PatchElementTempl(view.Flash("Failed to update favorites"), datastar.WithSelectorID(view.FlashID), datastar.WithModeInner())
		return
	}

	favorited, err := h.favorites.Toggle(r.Context(), sess, job)
	if err != nil {
		slog.Error("toggle favorite", "job", job.ID, "session", sess.ID, "error", err)
		sse.PatchElementTempl(view.Flash("Failed to update favorites"), datastar.WithSelectorID(view.FlashID), datastar.WithModeInner())
		return
	}

	sse.PatchElementTempl(view.Flash(""), datastar.WithSelectorID(view.FlashID), datastar.WithModeInner())

	// In favorites mode an unfavorited card leaves the list.
	if service.ParseMode(signals.Mode) == domain.ViewFavorites {
		refs, err := h.favorites.List(r.Context(), sess)
		if err != nil {
			slog.Error("list favorites", "session", sess.ID, "error", err)
		} else {
			sess.Favorites = refs
			jobs, _ := h.catalog.Snapshot(signals.PageID)
			sse.PatchElementTempl(
				view.JobList(service.FilterJobs(jobs, signals.state(), domain.NewFavoriteSet(refs)), sess),
				datastar.WithSelectorID(view.JobsContainerID),
				datastar.WithModeInner(),
			)
			return
		}
	}

	sse.PatchElementTempl(view.FavoriteButton(job.ID, true, favorited))
}

func loadErrorMessage(err error) string {
	var netErr *catalog.NetworkError
	if errors.As(err, &netErr) {
		return netErr.Error()
	}
	return "Failed to fetch jobs"
}
