package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/internsync/internal/domain"
)

// LocalUserRepository implements domain.LocalUserRepository using SQLite.
type LocalUserRepository struct {
	db *sql.DB
}

var _ domain.LocalUserRepository = (*LocalUserRepository)(nil)

// NewLocalUserRepository creates a new SQLite-backed LocalUserRepository.
func NewLocalUserRepository(db *DB) *LocalUserRepository {
	return &LocalUserRepository{db: db.SqlDB}
}

func (r *LocalUserRepository) Create(ctx context.Context, user *domain.LocalUser) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_users (username, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert local user: %w", err)
	}

	user.CreatedAt = now
	return nil
}

// GetByUsername loads the user and its favorites. Username matching is exact.
func (r *LocalUserRepository) GetByUsername(ctx context.Context, username string) (*domain.LocalUser, error) {
	user := &domain.LocalUser{}
	err := r.db.QueryRowContext(ctx,
		`SELECT username, email, password_hash, created_at
		 FROM local_users WHERE username = ?`, username,
	).Scan(&user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query local user: %w", err)
	}

	favorites, err := r.ListFavorites(ctx, username)
	if err != nil {
		return nil, err
	}
	user.Favorites = favorites
	return user, nil
}

func (r *LocalUserRepository) ListFavorites(ctx context.Context, username string) ([]domain.FavoriteJobRef, error) {
	return queryFavorites(ctx, r.db,
		`SELECT job_id, job_title, company_name, location
		 FROM local_favorites WHERE username = ? ORDER BY id`, username)
}

func (r *LocalUserRepository) HasFavorite(ctx context.Context, username string, jobID domain.JobID) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM local_favorites WHERE username = ? AND job_id = ?",
		username, string(jobID),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check local favorite: %w", err)
	}
	return n > 0, nil
}

// PutFavorite upserts the projection. An existing entry keeps its position.
func (r *LocalUserRepository) PutFavorite(ctx context.Context, username string, ref domain.FavoriteJobRef) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_favorites (username, job_id, job_title, company_name, location)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (username, job_id) DO UPDATE SET
		     job_title = excluded.job_title,
		     company_name = excluded.company_name,
		     location = excluded.location`,
		username, string(ref.ID), ref.JobTitle, ref.CompanyName, ref.Location,
	)
	if err != nil {
		return fmt.Errorf("put local favorite: %w", err)
	}
	return nil
}

func (r *LocalUserRepository) RemoveFavorite(ctx context.Context, username string, jobID domain.JobID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM local_favorites WHERE username = ? AND job_id = ?",
		username, string(jobID),
	)
	if err != nil {
		return fmt.Errorf("remove local favorite: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryFavorites(ctx context.Context, q queryer, query string, args ...any) ([]domain.FavoriteJobRef, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []domain.FavoriteJobRef{}
	for rows.Next() {
		var f domain.FavoriteJobRef
		var id string
		if err := rows.Scan(&id, &f.JobTitle, &f.CompanyName, &f.Location); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		f.ID = domain.JobID(id)
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}
