package service

import (
	"strings"

	"github.com/msomdec/internsync/internal/domain"
)

// FilterJobs applies the view state to the catalog, preserving catalog order.
// Search is a case-insensitive substring match on title or company, taken as
// typed: surrounding whitespace is part of the term. Each non-empty select
// must match exactly.
func FilterJobs(jobs []domain.Job, state domain.ViewState, favorites domain.FavoriteSet) []domain.Job {
	term := strings.ToLower(state.Search)

	out := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		if state.Mode == domain.ViewFavorites && !favorites.Has(j.ID) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(j.JobTitle), term) &&
			!strings.Contains(strings.ToLower(j.CompanyName), term) {
			continue
		}
		if state.Location != "" && j.Location != state.Location {
			continue
		}
		if state.JobType != "" && j.JobType != state.JobType {
			continue
		}
		if state.Category != "" && j.JobCategory != state.Category {
			continue
		}
		out = append(out, j)
	}
	return out
}

// FilterOptions returns the distinct locations, job types and categories of the
// catalog in first-seen order. Empty values are skipped.
func FilterOptions(jobs []domain.Job) domain.FilterOptions {
	return domain.FilterOptions{
		Locations:  distinct(jobs, func(j domain.Job) string { return j.Location }),
		JobTypes:   distinct(jobs, func(j domain.Job) string { return j.JobType }),
		Categories: distinct(jobs, func(j domain.Job) string { return j.JobCategory }),
	}
}

func distinct(jobs []domain.Job, field func(domain.Job) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, j := range jobs {
		v := field(j)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ParseMode maps a request value to a view mode. Anything unrecognised is ViewAll.
func ParseMode(s string) domain.ViewMode {
	if domain.ViewMode(s) == domain.ViewFavorites {
		return domain.ViewFavorites
	}
	return domain.ViewAll
}

// SelectMode checks that the session may enter the requested mode. Favorites
// mode needs a session; without one the caller keeps its current mode.
func SelectMode(sess *domain.Session, requested domain.ViewMode) (domain.ViewMode, error) {
	if requested == domain.ViewFavorites && sess == nil {
		return domain.ViewAll, domain.ErrLoginRequired
	}
	return requested, nil
}
