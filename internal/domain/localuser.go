package domain

import (
	"context"
	"time"
)

// LocalUser is a demo account kept in the local credential registry.
type LocalUser struct {
	Username     string
	Email        string
	PasswordHash string
	Favorites    []FavoriteJobRef
	CreatedAt    time.Time
}

// LocalUserRepository persists the local credential registry, keyed by username.
// Favorites are keyed by job ID per user and returned in insertion order.
type LocalUserRepository interface {
	Create(ctx context.Context, user *LocalUser) error
	GetByUsername(ctx context.Context, username string) (*LocalUser, error)
	ListFavorites(ctx context.Context, username string) ([]FavoriteJobRef, error)
	HasFavorite(ctx context.Context, username string, jobID JobID) (bool, error)
	PutFavorite(ctx context.Context, username string, ref FavoriteJobRef) error
	RemoveFavorite(ctx context.Context, username string, jobID JobID) error
}
