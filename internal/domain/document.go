package domain

import (
	"context"
	"time"
)

// UserDocument is the per-user record kept in the document store for
// remote identities.
type UserDocument struct {
	UID         string
	Email       string
	DisplayName string
	Favorites   []FavoriteJobRef
	CreatedAt   time.Time
	IsLocalUser bool
}

// DocumentPatch carries the fields of a merge write. Nil fields are left
// untouched on an existing document.
type DocumentPatch struct {
	Email       *string
	DisplayName *string
	CreatedAt   *time.Time
	IsLocalUser *bool
}

// DocumentStore is the remote per-user document store.
//
// Merge creates the document when it does not exist and otherwise only
// overwrites the fields set in the patch. PutFavorite upserts by job ID,
// creating the document if needed. RemoveFavorite removes by job ID and is a
// no-op when the entry is absent.
type DocumentStore interface {
	Get(ctx context.Context, uid string) (*UserDocument, error)
	Merge(ctx context.Context, uid string, patch DocumentPatch) error
	PutFavorite(ctx context.Context, uid string, ref FavoriteJobRef) error
	RemoveFavorite(ctx context.Context, uid string, jobID JobID) error
}
