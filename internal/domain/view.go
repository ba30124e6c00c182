package domain

// ViewMode selects between the whole catalog and the favorites subset.
type ViewMode string

const (
	ViewAll       ViewMode = "all"
	ViewFavorites ViewMode = "favorites"
)

// ViewState is the set of active board controls. It is never persisted.
type ViewState struct {
	Search   string
	Location string
	JobType  string
	Category string
	Mode     ViewMode
}

// FilterOptions lists the distinct values offered by the select filters.
type FilterOptions struct {
	Locations  []string
	JobTypes   []string
	Categories []string
}
