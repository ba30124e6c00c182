package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/msomdec/internsync/internal/domain"
)

// DocumentStore implements domain.DocumentStore on SQLite tables. It is the
// default store when no Redis server is configured.
type DocumentStore struct {
	db *sql.DB
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new SQLite-backed DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db.SqlDB}
}

func (s *DocumentStore) Get(ctx context.Context, uid string) (*domain.UserDocument, error) {
	doc := &domain.UserDocument{UID: uid}
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT email, display_name, created_at, is_local_user
		 FROM user_documents WHERE uid = ?`, uid,
	).Scan(&doc.Email, &doc.DisplayName, &createdAt, &doc.IsLocalUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get user document: %w", err)
	}
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}

	favorites, err := queryFavorites(ctx, s.db,
		`SELECT job_id, job_title, company_name, location
		 FROM document_favorites WHERE uid = ? ORDER BY id`, uid)
	if err != nil {
		return nil, err
	}
	doc.Favorites = favorites
	return doc, nil
}

func (s *DocumentStore) Merge(ctx context.Context, uid string, patch domain.DocumentPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureDocument(ctx, tx, uid); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE user_documents SET
		     email = COALESCE(?, email),
		     display_name = COALESCE(?, display_name),
		     created_at = COALESCE(?, created_at),
		     is_local_user = COALESCE(?, is_local_user)
		 WHERE uid = ?`,
		nullable(patch.Email), nullable(patch.DisplayName), nullable(patch.CreatedAt), nullable(patch.IsLocalUser), uid,
	)
	if err != nil {
		return fmt.Errorf("merge user document: %w", err)
	}

	return tx.Commit()
}

func (s *DocumentStore) PutFavorite(ctx context.Context, uid string, ref domain.FavoriteJobRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureDocument(ctx, tx, uid); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO document_favorites (uid, job_id, job_title, company_name, location)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (uid, job_id) DO UPDATE SET
		     job_title = excluded.job_title,
		     company_name = excluded.company_name,
		     location = excluded.location`,
		uid, string(ref.ID), ref.JobTitle, ref.CompanyName, ref.Location,
	)
	if err != nil {
		return fmt.Errorf("put document favorite: %w", err)
	}

	return tx.Commit()
}

func (s *DocumentStore) RemoveFavorite(ctx context.Context, uid string, jobID domain.JobID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM document_favorites WHERE uid = ? AND job_id = ?",
		uid, string(jobID),
	)
	if err != nil {
		return fmt.Errorf("remove document favorite: %w", err)
	}
	return nil
}

func ensureDocument(ctx context.Context, tx *sql.Tx, uid string) error {
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO user_documents (uid) VALUES (?)", uid); err != nil {
		return fmt.Errorf("create user document: %w", err)
	}
	return nil
}

// nullable turns an unset patch field into SQL NULL so COALESCE keeps the
// stored value.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
