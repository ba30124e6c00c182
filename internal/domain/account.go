package domain

import (
	"context"
	"time"
)

// Account is a self-hosted remote identity, used when no external identity
// provider is configured.
type Account struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Disabled     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountRepository defines persistence operations for self-hosted accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
}
