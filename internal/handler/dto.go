package handler

import (
	"github.com/msomdec/internsync/internal/domain"
)

// SessionDTO is the JSON representation of the current session.
type SessionDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	IsLocalUser bool   `json:"isLocalUser"`
	Favorites   int    `json:"favoritesCount"`
}

func toSessionDTO(s *domain.Session) SessionDTO {
	return SessionDTO{
		ID:          s.ID,
		Kind:        string(s.Kind),
		Email:       s.Email,
		DisplayName: s.DisplayName,
		IsLocalUser: s.Kind == domain.SessionLocal,
		Favorites:   len(s.Favorites),
	}
}

// FavoriteDTO is the JSON representation of a favorited job.
type FavoriteDTO struct {
	ID          string `json:"id"`
	JobTitle    string `json:"jobTitle"`
	CompanyName string `json:"companyName"`
	Location    string `json:"location"`
}

func toFavoriteDTOs(refs []domain.FavoriteJobRef) []FavoriteDTO {
	dtos := make([]FavoriteDTO, len(refs))
	for i, f := range refs {
		dtos[i] = FavoriteDTO{
			ID:          string(f.ID),
			JobTitle:    f.JobTitle,
			CompanyName: f.CompanyName,
			Location:    f.Location,
		}
	}
	return dtos
}
