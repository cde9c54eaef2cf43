package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies one of the site's content collections.
type Kind string

const (
	KindProject Kind = "projects"
	KindTool    Kind = "tools"
	KindEvent   Kind = "events"
	KindPost    Kind = "posts"
	KindCourse  Kind = "courses"
	KindProduct Kind = "products"
)

// ContentKinds is the fixed set of collections the trash operations scan,
// in iteration order.
var ContentKinds = []Kind{
	KindProject, KindTool, KindEvent, KindPost, KindCourse, KindProduct,
}

// Field names shared with the site's authoring frontend.
const (
	// FieldDeleted is the soft-delete flag set by the trash action.
	FieldDeleted = "isDeleted"
	// FieldLink is the relative URL stored on a notification record.
	FieldLink = "link"
)

// NotificationsGroup is the name of the per-user notification subcollection,
// queried across all users during the orphan pass.
const NotificationsGroup = "notifications"

// Document is an opaque reference to a stored document: its identifier and
// the store path used to address a delete.
type Document struct {
	ID   string
	Path string
}

// DeletedItem records one document removed by the primary cleanup pass.
// The kind is kept so the orphan pass can build kind-specific link guesses.
type DeletedItem struct {
	Kind Kind
	ID   string
}

// CleanupRun is the history record of one cleanup invocation. The two passes
// report independent counts; Error carries the failure text when Success is
// false.
type CleanupRun struct {
	ID             uuid.UUID `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DeletedCount   int       `json:"deleted_count"`
	OrphansDeleted int       `json:"orphans_deleted"`
	SkippedCount   int       `json:"skipped_count"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
}
