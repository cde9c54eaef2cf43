package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/atelier-studio/admin-service/internal/domain"
	"github.com/atelier-studio/admin-service/internal/links"
)

// The platform rejects more than 500 operations in one atomic commit.
// We stage at most 450 to leave headroom for concurrent writers; qualifying
// documents beyond the margin stay soft-deleted until the next run.
const (
	batchHardLimit    = 500
	batchSafetyMargin = 450
)

// orphanScanLimit bounds the notification pass: link guesses are built for
// the first N deleted identifiers only.
const orphanScanLimit = 10

// Service holds the trash maintenance use-cases.
type Service struct {
	store   domain.ContentStore
	history domain.RunRepository
	audit   AuditPublisher
}

// AuditPublisher broadcasts a finished cleanup run to the audit topic.
// Implementation lives in internal/kafka; a no-op can be used for testing.
type AuditPublisher interface {
	CleanupCompleted(ctx context.Context, run domain.CleanupRun)
}

// NewService creates a new application Service.
func NewService(store domain.ContentStore, history domain.RunRepository, audit AuditPublisher) *Service {
	return &Service{store: store, history: history, audit: audit}
}

// SoftDeletedCount sums the soft-deleted document counts across all content
// collections. The six count queries fan out concurrently; a failed count
// contributes 0 after logging, so a broken collection never blocks the
// dashboard badge.
func (s *Service) SoftDeletedCount(ctx context.Context) int64 {
	var total atomic.Int64
	var wg sync.WaitGroup

	for _, kind := range domain.ContentKinds {
		wg.Add(1)
		go func(kind domain.Kind) {
			defer wg.Done()
			n, err := s.store.CountWhere(ctx, kind, domain.FieldDeleted, true)
			if err != nil {
				log.Error().Err(err).Str("collection", string(kind)).Msg("soft-delete count failed")
				return
			}
			total.Add(n)
		}(kind)
	}

	wg.Wait()
	return total.Load()
}

// CleanupSoftDeleted permanently removes soft-deleted documents, then makes a
// best-effort pass over notifications that link to the removed items.
// The two passes commit independently: a failure in the orphan pass does not
// roll back the primary deletions, it only marks the run as failed.
// Safe to invoke repeatedly; the selection predicate is re-evaluated fresh
// each call.
func (s *Service) CleanupSoftDeleted(ctx context.Context) (domain.CleanupRun, error) {
	run := domain.CleanupRun{
		ID:        uuid.New(),
		StartedAt: time.Now().UTC(),
	}

	deleted, skipped, err := s.purgeTrashed(ctx)
	run.DeletedCount = len(deleted)
	run.SkippedCount = skipped

	if err == nil && len(deleted) > 0 {
		run.OrphansDeleted, err = s.purgeOrphanNotifications(ctx, deleted)
	}

	run.FinishedAt = time.Now().UTC()
	run.Success = err == nil
	if err != nil {
		run.Error = err.Error()
		log.Error().Err(err).
			Int("deleted", run.DeletedCount).
			Msg("trash cleanup failed")
	} else {
		log.Info().
			Int("deleted", run.DeletedCount).
			Int("orphans_deleted", run.OrphansDeleted).
			Int("skipped", run.SkippedCount).
			Msg("trash cleanup completed")
	}

	s.recordRun(ctx, run)
	return run, err
}

// purgeTrashed is the primary pass: one atomic batch of deletes across all
// content collections, capped at the safety margin. Returns the removed
// items and how many qualifying documents were left for a future run.
func (s *Service) purgeTrashed(ctx context.Context) ([]domain.DeletedItem, int, error) {
	batch := s.store.Batch()
	var deleted []domain.DeletedItem
	skipped := 0

	for _, kind := range domain.ContentKinds {
		docs, err := s.store.FetchWhere(ctx, kind, domain.FieldDeleted, true)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch trashed %s: %w", kind, err)
		}
		for _, doc := range docs {
			if batch.Staged() >= batchSafetyMargin {
				skipped++
				continue
			}
			batch.StageDelete(doc)
			deleted = append(deleted, domain.DeletedItem{Kind: kind, ID: doc.ID})
		}
	}

	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("trash exceeds batch margin, remainder deferred to next run")
	}
	if batch.Staged() == 0 {
		return nil, 0, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit trash purge: %w", err)
	}
	return deleted, skipped, nil
}

// purgeOrphanNotifications searches every user's notification subcollection
// for links pointing at the removed items and deletes the matches in a
// second atomic batch. Only the first orphanScanLimit items are considered,
// and only exact link matches are deleted: the store cannot do substring
// search, so false negatives are accepted and false positives are not.
func (s *Service) purgeOrphanNotifications(ctx context.Context, deleted []domain.DeletedItem) (int, error) {
	if len(deleted) > orphanScanLimit {
		deleted = deleted[:orphanScanLimit]
	}

	batch := s.store.Batch()
	for _, item := range deleted {
		for _, link := range links.Candidates(item.Kind, item.ID) {
			docs, err := s.store.SearchGroup(ctx, domain.NotificationsGroup, domain.FieldLink, link)
			if err != nil {
				return 0, fmt.Errorf("search orphan notifications for %q: %w", link, err)
			}
			for _, doc := range docs {
				if batch.Staged() >= batchSafetyMargin {
					continue
				}
				batch.StageDelete(doc)
			}
		}
	}

	if batch.Staged() == 0 {
		return 0, nil
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit orphan purge: %w", err)
	}
	return batch.Staged(), nil
}

// recordRun persists the run and publishes the audit event. Both are
// best-effort: a broken history table or audit topic never changes the
// outcome reported to the dashboard.
func (s *Service) recordRun(ctx context.Context, run domain.CleanupRun) {
	if err := s.history.Record(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID.String()).Msg("failed to record cleanup run")
	}
	s.audit.CleanupCompleted(ctx, run)
}

// ListRuns returns recent cleanup runs for the dashboard history view.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*domain.CleanupRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.history.ListRecent(ctx, limit)
}
