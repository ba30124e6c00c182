package handler

import (
	"net/http"
)

// HandleMe returns the current session.
// GET /api/auth/me
// Response: {"user": {...}} or 401
func HandleMe(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "Not authenticated.")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user": toSessionDTO(sess),
	})
}

// HandleFavorites returns the current session's favorites in insertion order.
// GET /api/favorites
// Response: {"favorites": [...]} or 401
func HandleFavorites(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "Please login to view favorites")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"favorites": toFavoriteDTOs(sess.Favorites),
	})
}
