package domain

import "context"

// ContentStore defines the port over the hosted document database.
// The production implementation lives in infrastructure/firestore; tests use
// an in-memory fake.
type ContentStore interface {
	// CountWhere returns the server-side count of documents in collection
	// whose field equals value, without transferring document bodies.
	CountWhere(ctx context.Context, collection Kind, field string, value any) (int64, error)

	// FetchWhere returns references to all documents in collection whose
	// field equals value.
	FetchWhere(ctx context.Context, collection Kind, field string, value any) ([]Document, error)

	// SearchGroup queries the named subcollection under every user document
	// for an exact equality match on one field.
	SearchGroup(ctx context.Context, subcollection, field string, value any) ([]Document, error)

	// Batch starts a new atomic write batch.
	Batch() WriteBatch
}

// WriteBatch accumulates delete operations and applies them as one
// all-or-nothing unit. Committing an empty batch must not be attempted;
// callers check Staged() > 0 first.
type WriteBatch interface {
	StageDelete(doc Document)
	Staged() int
	Commit(ctx context.Context) error
}
