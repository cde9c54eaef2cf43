package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-studio/admin-service/internal/domain"
)

// Repository is the PostgreSQL implementation of domain.RunRepository.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new postgres Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the cleanup_runs table when it is missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cleanup_runs (
			id              UUID PRIMARY KEY,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ NOT NULL,
			deleted_count   INT NOT NULL,
			orphans_deleted INT NOT NULL,
			skipped_count   INT NOT NULL,
			success         BOOLEAN NOT NULL,
			error           TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure cleanup_runs schema: %w", err)
	}
	return nil
}

// Record inserts the outcome of one cleanup invocation.
func (r *Repository) Record(ctx context.Context, run domain.CleanupRun) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cleanup_runs (id, started_at, finished_at, deleted_count, orphans_deleted, skipped_count, success, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.StartedAt, run.FinishedAt, run.DeletedCount, run.OrphansDeleted, run.SkippedCount, run.Success, run.Error)
	if err != nil {
		return fmt.Errorf("insert cleanup run: %w", err)
	}
	return nil
}

// ListRecent fetches the most recent runs, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*domain.CleanupRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, started_at, finished_at, deleted_count, orphans_deleted, skipped_count, success, error
		FROM cleanup_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cleanup runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.CleanupRun
	for rows.Next() {
		var run domain.CleanupRun
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt,
			&run.DeletedCount, &run.OrphansDeleted, &run.SkippedCount,
			&run.Success, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan cleanup run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
