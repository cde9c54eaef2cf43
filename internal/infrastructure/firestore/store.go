package firestore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	"github.com/atelier-studio/admin-service/internal/domain"
)

const countAlias = "count"

// Store is the Cloud Firestore implementation of domain.ContentStore.
type Store struct {
	client *firestore.Client
	// docPrefix is the resource-name prefix stripped from DocumentRef.Path
	// so domain.Document carries a client-relative path.
	docPrefix string
}

// New creates a new firestore Store.
func New(client *firestore.Client, projectID string) *Store {
	return &Store{
		client:    client,
		docPrefix: fmt.Sprintf("projects/%s/databases/(default)/documents/", projectID),
	}
}

// CountWhere runs a server-side aggregation count; document bodies are never
// transferred.
func (s *Store) CountWhere(ctx context.Context, collection domain.Kind, field string, value any) (int64, error) {
	q := s.client.Collection(string(collection)).Where(field, "==", value)
	res, err := q.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}

	raw, ok := res[countAlias]
	if !ok {
		return 0, fmt.Errorf("count %s: aggregation result missing alias", collection)
	}
	v, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected aggregation value type %T", collection, raw)
	}
	return v.GetIntegerValue(), nil
}

// FetchWhere returns references to every document matching the equality
// predicate.
func (s *Store) FetchWhere(ctx context.Context, collection domain.Kind, field string, value any) ([]domain.Document, error) {
	iter := s.client.Collection(string(collection)).Where(field, "==", value).Documents(ctx)
	defer iter.Stop()
	return s.collect(iter, string(collection))
}

// SearchGroup queries the named subcollection across every user document.
func (s *Store) SearchGroup(ctx context.Context, subcollection, field string, value any) ([]domain.Document, error) {
	iter := s.client.CollectionGroup(subcollection).Where(field, "==", value).Documents(ctx)
	defer iter.Stop()
	return s.collect(iter, subcollection)
}

func (s *Store) collect(iter *firestore.DocumentIterator, scope string) ([]domain.Document, error) {
	var docs []domain.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate %s: %w", scope, err)
		}
		docs = append(docs, domain.Document{
			ID:   snap.Ref.ID,
			Path: strings.TrimPrefix(snap.Ref.Path, s.docPrefix),
		})
	}
	return docs, nil
}

// Batch starts a new atomic write batch.
func (s *Store) Batch() domain.WriteBatch {
	return &writeBatch{store: s, batch: s.client.Batch()}
}

// writeBatch wraps the SDK's atomic batch. All staged deletes apply in one
// commit or not at all.
type writeBatch struct {
	store  *Store
	batch  *firestore.WriteBatch
	staged int
}

func (b *writeBatch) StageDelete(doc domain.Document) {
	b.batch.Delete(b.store.client.Doc(doc.Path))
	b.staged++
}

func (b *writeBatch) Staged() int {
	return b.staged
}

func (b *writeBatch) Commit(ctx context.Context) error {
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("commit write batch: %w", err)
	}
	return nil
}
