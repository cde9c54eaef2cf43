package domain

import "context"

// RunRepository defines the port for cleanup-run history persistence.
// Implementations live in infrastructure/postgres.
type RunRepository interface {
	// EnsureSchema creates the history table when it does not exist yet.
	EnsureSchema(ctx context.Context) error

	// Record stores the outcome of one cleanup invocation.
	Record(ctx context.Context, run CleanupRun) error

	// ListRecent fetches the most recent runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*CleanupRun, error)
}
