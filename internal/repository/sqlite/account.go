package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/internsync/internal/domain"
)

// AccountRepository implements domain.AccountRepository using SQLite.
type AccountRepository struct {
	db *sql.DB
}

var _ domain.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new SQLite-backed AccountRepository.
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db.SqlDB}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (email, display_name, password_hash, disabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.Email, account.DisplayName, account.PasswordHash, account.Disabled, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *AccountRepository) getOne(ctx context.Context, where string, arg any) (*domain.Account, error) {
	a := &domain.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, disabled, created_at, updated_at
		 FROM accounts WHERE `+where, arg,
	).Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.Disabled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return a, nil
}
