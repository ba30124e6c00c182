package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/msomdec/internsync/internal/domain"
)

// FavoritesService reconciles favorite toggles against the store that owns
// the session: the local registry or the remote user document.
type FavoritesService struct {
	local     domain.LocalUserRepository
	documents domain.DocumentStore
}

// NewFavoritesService creates a new FavoritesService.
func NewFavoritesService(local domain.LocalUserRepository, documents domain.DocumentStore) *FavoritesService {
	return &FavoritesService{local: local, documents: documents}
}

// Toggle flips the favorited state of job for the session and returns the
// new state. Concurrent toggles are last-write-wins.
func (s *FavoritesService) Toggle(ctx context.Context, sess *domain.Session, job domain.Job) (bool, error) {
	if sess == nil {
		return false, domain.ErrLoginRequired
	}
	if job.ID == "" {
		return false, fmt.Errorf("%w: job has no id", domain.ErrInvalidInput)
	}

	switch sess.Kind {
	case domain.SessionLocal:
		return s.toggleLocal(ctx, sess.Username(), job)
	case domain.SessionRemote:
		return s.toggleRemote(ctx, sess.ID, job)
	default:
		return false, fmt.Errorf("%w: unknown session kind %q", domain.ErrInvalidInput, sess.Kind)
	}
}

func (s *FavoritesService) toggleLocal(ctx context.Context, username string, job domain.Job) (bool, error) {
	has, err := s.local.HasFavorite(ctx, username, job.ID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	if has {
		if err := s.local.RemoveFavorite(ctx, username, job.ID); err != nil {
			return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return false, nil
	}

	if err := s.local.PutFavorite(ctx, username, job.Favorite()); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return true, nil
}

func (s *FavoritesService) toggleRemote(ctx context.Context, uid string, job domain.Job) (bool, error) {
	doc, err := s.documents.Get(ctx, uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}

	if doc != nil && domain.NewFavoriteSet(doc.Favorites).Has(job.ID) {
		if err := s.documents.RemoveFavorite(ctx, uid, job.ID); err != nil {
			return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return false, nil
	}

	// PutFavorite creates the document when it does not exist yet.
	if err := s.documents.PutFavorite(ctx, uid, job.Favorite()); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return true, nil
}

// List returns the session's favorites in insertion order.
func (s *FavoritesService) List(ctx context.Context, sess *domain.Session) ([]domain.FavoriteJobRef, error) {
	if sess == nil {
		return nil, domain.ErrLoginRequired
	}

	switch sess.Kind {
	case domain.SessionLocal:
		favs, err := s.local.ListFavorites(ctx, sess.Username())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return favs, nil
	case domain.SessionRemote:
		doc, err := s.documents.Get(ctx, sess.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.FavoriteJobRef{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStorage, err)
		}
		return doc.Favorites, nil
	default:
		return nil, fmt.Errorf("%w: unknown session kind %q", domain.ErrInvalidInput, sess.Kind)
	}
}
