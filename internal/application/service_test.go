package application_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/atelier-studio/admin-service/internal/application"
	"github.com/atelier-studio/admin-service/internal/domain"
)

// --- in-memory fake of the document store ---

type fakeDoc struct {
	id      string
	deleted bool
}

type fakeNotif struct {
	path string
	link string
}

type fakeStore struct {
	collections   map[domain.Kind][]fakeDoc
	notifications []fakeNotif

	countErr  map[domain.Kind]error
	fetchErr  map[domain.Kind]error
	searchErr error
	commitErr error

	searchedLinks []string
	commits       []int // staged size of every committed batch
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		collections: make(map[domain.Kind][]fakeDoc),
		countErr:    make(map[domain.Kind]error),
		fetchErr:    make(map[domain.Kind]error),
	}
}

func (s *fakeStore) seed(kind domain.Kind, id string, deleted bool) {
	s.collections[kind] = append(s.collections[kind], fakeDoc{id: id, deleted: deleted})
}

func (s *fakeStore) seedNotif(user, id, link string) {
	s.notifications = append(s.notifications, fakeNotif{
		path: "users/" + user + "/notifications/" + id,
		link: link,
	})
}

func (s *fakeStore) has(kind domain.Kind, id string) bool {
	for _, d := range s.collections[kind] {
		if d.id == id {
			return true
		}
	}
	return false
}

func (s *fakeStore) remaining(kind domain.Kind) int {
	return len(s.collections[kind])
}

func (s *fakeStore) CountWhere(_ context.Context, kind domain.Kind, _ string, value any) (int64, error) {
	if err := s.countErr[kind]; err != nil {
		return 0, err
	}
	want := value.(bool)
	var n int64
	for _, d := range s.collections[kind] {
		if d.deleted == want {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) FetchWhere(_ context.Context, kind domain.Kind, _ string, value any) ([]domain.Document, error) {
	if err := s.fetchErr[kind]; err != nil {
		return nil, err
	}
	want := value.(bool)
	var docs []domain.Document
	for _, d := range s.collections[kind] {
		if d.deleted == want {
			docs = append(docs, domain.Document{ID: d.id, Path: string(kind) + "/" + d.id})
		}
	}
	return docs, nil
}

func (s *fakeStore) SearchGroup(_ context.Context, _, _ string, value any) ([]domain.Document, error) {
	link := value.(string)
	s.searchedLinks = append(s.searchedLinks, link)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var docs []domain.Document
	for _, n := range s.notifications {
		if n.link == link {
			docs = append(docs, domain.Document{ID: n.path, Path: n.path})
		}
	}
	return docs, nil
}

func (s *fakeStore) Batch() domain.WriteBatch {
	return &fakeBatch{store: s}
}

type fakeBatch struct {
	store  *fakeStore
	staged []domain.Document
}

func (b *fakeBatch) StageDelete(doc domain.Document) { b.staged = append(b.staged, doc) }
func (b *fakeBatch) Staged() int                     { return len(b.staged) }

// Commit applies every staged delete or none, like the real store.
func (b *fakeBatch) Commit(_ context.Context) error {
	if b.store.commitErr != nil {
		return b.store.commitErr
	}
	for _, doc := range b.staged {
		b.store.remove(doc.Path)
	}
	b.store.commits = append(b.store.commits, len(b.staged))
	return nil
}

func (s *fakeStore) remove(path string) {
	if strings.HasPrefix(path, "users/") {
		for i, n := range s.notifications {
			if n.path == path {
				s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
				return
			}
		}
		return
	}
	kind, id, _ := strings.Cut(path, "/")
	docs := s.collections[domain.Kind(kind)]
	for i, d := range docs {
		if d.id == id {
			s.collections[domain.Kind(kind)] = append(docs[:i], docs[i+1:]...)
			return
		}
	}
}

// --- fakes for history and audit ---

type memHistory struct {
	runs      []domain.CleanupRun
	lastLimit int
	recordErr error
}

func (h *memHistory) EnsureSchema(context.Context) error { return nil }

func (h *memHistory) Record(_ context.Context, run domain.CleanupRun) error {
	if h.recordErr != nil {
		return h.recordErr
	}
	h.runs = append(h.runs, run)
	return nil
}

func (h *memHistory) ListRecent(_ context.Context, limit int) ([]*domain.CleanupRun, error) {
	h.lastLimit = limit
	var out []*domain.CleanupRun
	for i := len(h.runs) - 1; i >= 0 && len(out) < limit; i-- {
		run := h.runs[i]
		out = append(out, &run)
	}
	return out, nil
}

type capturedAudit struct {
	events []domain.CleanupRun
}

func (a *capturedAudit) CleanupCompleted(_ context.Context, run domain.CleanupRun) {
	a.events = append(a.events, run)
}

func newService(store *fakeStore) (*application.Service, *memHistory, *capturedAudit) {
	history := &memHistory{}
	audit := &capturedAudit{}
	return application.NewService(store, history, audit), history, audit
}

// --- soft-delete counter ---

func TestSoftDeletedCount_SumsAcrossCollections(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)
	store.seed(domain.KindPost, "p2", true)
	store.seed(domain.KindPost, "p3", false)
	store.seed(domain.KindCourse, "c1", true)

	svc, _, _ := newService(store)
	if got := svc.SoftDeletedCount(context.Background()); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
}

func TestSoftDeletedCount_FailSoft(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)
	store.seed(domain.KindCourse, "c1", true)
	store.seed(domain.KindEvent, "e1", true)
	store.countErr[domain.KindEvent] = errors.New("backend unavailable")

	svc, _, _ := newService(store)
	if got := svc.SoftDeletedCount(context.Background()); got != 2 {
		t.Fatalf("count = %d, want 2 (failed collection contributes 0)", got)
	}
}

// --- cleanup executor: primary pass ---

func TestCleanup_DeletesOnlyFlaggedDocuments(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)
	store.seed(domain.KindPost, "p2", true)
	store.seed(domain.KindPost, "p3", true)
	store.seed(domain.KindPost, "keep", false)

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if run.DeletedCount != 3 {
		t.Fatalf("DeletedCount = %d, want 3", run.DeletedCount)
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if store.has(domain.KindPost, id) {
			t.Fatalf("document %s should have been removed", id)
		}
	}
	if !store.has(domain.KindPost, "keep") {
		t.Fatal("unflagged document was deleted")
	}
}

func TestCleanup_MarginEnforced(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 200; i++ {
		store.seed(domain.KindProject, fmt.Sprintf("pr-%03d", i), true)
	}
	for i := 0; i < 200; i++ {
		store.seed(domain.KindTool, fmt.Sprintf("tl-%03d", i), true)
	}
	for i := 0; i < 200; i++ {
		store.seed(domain.KindEvent, fmt.Sprintf("ev-%03d", i), true)
	}

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if run.DeletedCount != 450 {
		t.Fatalf("DeletedCount = %d, want 450", run.DeletedCount)
	}
	if run.SkippedCount != 150 {
		t.Fatalf("SkippedCount = %d, want 150", run.SkippedCount)
	}
	if got := store.remaining(domain.KindEvent); got != 150 {
		t.Fatalf("%d events remain, want 150", got)
	}
	for _, staged := range store.commits {
		if staged > 450 {
			t.Fatalf("a batch committed %d operations, margin is 450", staged)
		}
	}
}

func TestCleanup_SecondRunDeletesNothing(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindCourse, "c1", true)
	store.seed(domain.KindCourse, "c2", true)

	svc, _, _ := newService(store)
	if _, err := svc.CleanupSoftDeleted(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if run.DeletedCount != 0 {
		t.Fatalf("second run DeletedCount = %d, want 0", run.DeletedCount)
	}
}

func TestCleanup_EmptyTrashNeverCommits(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "keep", false)
	// A commit would fail; it must never be attempted for an empty batch.
	store.commitErr = errors.New("must not commit")

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if run.DeletedCount != 0 {
		t.Fatalf("DeletedCount = %d, want 0", run.DeletedCount)
	}
	if len(store.commits) != 0 {
		t.Fatal("commit was attempted for an empty batch")
	}
}

func TestCleanup_CommitFailureLeavesDocuments(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)
	store.seed(domain.KindPost, "p2", true)
	store.seed(domain.KindPost, "p3", true)
	store.commitErr = errors.New("commit rejected")

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err == nil {
		t.Fatal("expected error from failed commit")
	}
	if run.Success {
		t.Fatal("run marked successful despite commit failure")
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		if !store.has(domain.KindPost, id) {
			t.Fatalf("document %s was removed despite atomic commit failure", id)
		}
	}
}

func TestCleanup_FetchFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)
	store.fetchErr[domain.KindTool] = errors.New("query failed")

	svc, _, _ := newService(store)
	if _, err := svc.CleanupSoftDeleted(context.Background()); err == nil {
		t.Fatal("expected error from failed fetch")
	}
	if !store.has(domain.KindPost, "p1") {
		t.Fatal("no deletions should commit when a fetch fails")
	}
}

// --- cleanup executor: orphan-notification pass ---

func TestCleanup_OrphanExactMatchOnly(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindEvent, "XYZ", true)
	store.seedNotif("u1", "n1", "/events?id=XYZ")
	store.seedNotif("u2", "n2", "/events?id=XYZ&extra=1")
	store.seedNotif("u3", "n3", "/events?id=other")

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if run.OrphansDeleted != 1 {
		t.Fatalf("OrphansDeleted = %d, want 1", run.OrphansDeleted)
	}
	if len(store.notifications) != 2 {
		t.Fatalf("%d notifications remain, want 2", len(store.notifications))
	}
	for _, n := range store.notifications {
		if n.link == "/events?id=XYZ" {
			t.Fatal("exact-match orphan was not deleted")
		}
	}
}

func TestCleanup_OrphanScanBoundedToFirstTen(t *testing.T) {
	store := newFakeStore()
	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("course-%02d", i)
		store.seed(domain.KindCourse, ids[i], true)
	}

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if run.DeletedCount != 25 {
		t.Fatalf("DeletedCount = %d, want 25", run.DeletedCount)
	}

	for _, id := range ids[10:] {
		for _, link := range store.searchedLinks {
			if strings.Contains(link, id) {
				t.Fatalf("link %q was searched for item beyond the first 10", link)
			}
		}
	}
	searched := map[string]bool{}
	for _, id := range ids[:10] {
		for _, link := range store.searchedLinks {
			if strings.Contains(link, id) {
				searched[id] = true
			}
		}
	}
	if len(searched) != 10 {
		t.Fatalf("searched links for %d of the first 10 items, want all 10", len(searched))
	}
}

func TestCleanup_NoOrphanPassWhenNothingDeleted(t *testing.T) {
	store := newFakeStore()
	store.seedNotif("u1", "n1", "/events?id=XYZ")

	svc, _, _ := newService(store)
	if _, err := svc.CleanupSoftDeleted(context.Background()); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if len(store.searchedLinks) != 0 {
		t.Fatal("orphan search ran although the primary pass deleted nothing")
	}
}

func TestCleanup_OrphanSearchFailureKeepsPrimaryDeletions(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindEvent, "XYZ", true)
	store.searchErr = errors.New("group query failed")

	svc, _, _ := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err == nil {
		t.Fatal("expected error from failed orphan search")
	}
	if run.Success {
		t.Fatal("run marked successful despite orphan pass failure")
	}
	// The primary batch already committed; the failure must not undo it.
	if store.has(domain.KindEvent, "XYZ") {
		t.Fatal("primary deletion was rolled back")
	}
	if run.DeletedCount != 1 {
		t.Fatalf("DeletedCount = %d, want 1", run.DeletedCount)
	}
}

// --- run history and audit ---

func TestCleanup_RecordsRunAndPublishesAudit(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)

	svc, history, audit := newService(store)
	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if len(history.runs) != 1 || history.runs[0].ID != run.ID {
		t.Fatal("run was not recorded in history")
	}
	if len(audit.events) != 1 || audit.events[0].DeletedCount != 1 {
		t.Fatal("audit event was not published")
	}
}

func TestCleanup_HistoryFailureDoesNotChangeOutcome(t *testing.T) {
	store := newFakeStore()
	store.seed(domain.KindPost, "p1", true)

	history := &memHistory{recordErr: errors.New("history table gone")}
	svc := application.NewService(store, history, &capturedAudit{})

	run, err := svc.CleanupSoftDeleted(context.Background())
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if !run.Success || run.DeletedCount != 1 {
		t.Fatalf("unexpected run outcome: %+v", run)
	}
}

func TestListRuns_ClampsLimit(t *testing.T) {
	store := newFakeStore()
	svc, history, _ := newService(store)

	if _, err := svc.ListRuns(context.Background(), 0); err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if history.lastLimit != 20 {
		t.Fatalf("limit = %d, want default 20", history.lastLimit)
	}

	if _, err := svc.ListRuns(context.Background(), 500); err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if history.lastLimit != 20 {
		t.Fatalf("limit = %d, want clamped 20", history.lastLimit)
	}
}
