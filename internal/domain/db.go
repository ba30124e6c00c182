package domain

import "context"

// Database is the lifecycle of the store backing the local registry, the
// default document store and builtin accounts.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
