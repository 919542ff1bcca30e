package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonny/hookaudit/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(sqlite.Config{
		Path:              ":memory:",
		MaxOpenConns:      1,
		PragmaJournalMode: "WAL",
		PragmaBusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func makeRecord(t *testing.T, id string, kind model.Kind, actor string, offset time.Duration) model.Record {
	t.Helper()
	rec, err := model.Restore(model.Snapshot{
		ID:        id,
		Timestamp: baseTime.Add(offset),
		Kind:      kind,
		Actor:     actor,
		RawSourceEvent: model.Payload{
			"sender": map[string]any{"login": "bob"},
			"action": "opened",
		},
		RawTargetResource: model.Payload{
			"repository":   map[string]any{"id": 9007199254740993, "full_name": "acme/widgets"},
			"issue_number": 42,
		},
		RawOutcome: map[string]any{"status": "received"},
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return rec
}

func TestAuditRepo_SaveAndGetByID(t *testing.T) {
	repo := sqlite.NewAuditRepo(newTestStore(t))
	ctx := context.Background()

	rec := makeRecord(t, "rec-1", model.KindIssueAction, "alice", 0)
	id, err := repo.Save(ctx, rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "rec-1" {
		t.Errorf("Save returned %q", id)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Kind() != model.KindIssueAction {
		t.Errorf("Kind: got %s", got.Kind())
	}
	if actor, _ := got.Actor(); actor != "alice" {
		t.Errorf("Actor: got %q", actor)
	}
	if !got.Timestamp().Equal(rec.Timestamp()) {
		t.Errorf("Timestamp: got %v want %v", got.Timestamp(), rec.Timestamp())
	}

	se, ok := got.SourceEvent()
	if !ok || se.SenderIdentity != "bob" || se.Action != model.Some("opened") {
		t.Errorf("SourceEvent: got %+v (%v)", se, ok)
	}
	tr, ok := got.TargetResource()
	if !ok {
		t.Fatal("expected target resource")
	}
	if tr.Repository.ID != model.Some[int64](9007199254740993) {
		t.Errorf("Repository.ID: got %v", tr.Repository.ID)
	}
	if tr.IssueNumber != model.Some[int64](42) {
		t.Errorf("IssueNumber: got %v", tr.IssueNumber)
	}
	outcome, ok := got.Outcome().(map[string]any)
	if !ok || outcome["status"] != "received" {
		t.Errorf("Outcome: got %#v", got.Outcome())
	}
}

func TestAuditRepo_PreservesUnattachedParts(t *testing.T) {
	repo := sqlite.NewAuditRepo(newTestStore(t))
	ctx := context.Background()

	builder, err := model.NewRecordBuilder(model.KindAuthentication)
	if err != nil {
		t.Fatalf("NewRecordBuilder: %v", err)
	}
	rec, err := builder.ByUser("alice").Seal()
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.GetByID(ctx, rec.ID())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if _, ok := got.SourceEvent(); ok {
		t.Error("expected no source event")
	}
	if _, ok := got.TargetResource(); ok {
		t.Error("expected no target resource")
	}
	if got.Outcome() != nil {
		t.Errorf("expected nil outcome, got %#v", got.Outcome())
	}
}

func TestAuditRepo_RejectsIncompleteAndDuplicate(t *testing.T) {
	repo := sqlite.NewAuditRepo(newTestStore(t))
	ctx := context.Background()

	incomplete := makeRecord(t, "rec-x", model.KindIssueAction, "", 0)
	if _, err := repo.Save(ctx, incomplete); !errors.Is(err, model.ErrIncompleteRecord) {
		t.Errorf("expected ErrIncompleteRecord, got %v", err)
	}

	rec := makeRecord(t, "rec-1", model.KindIssueAction, "alice", 0)
	if _, err := repo.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.Save(ctx, rec); !errors.Is(err, outbound.ErrDuplicateRecord) {
		t.Errorf("expected ErrDuplicateRecord, got %v", err)
	}
}

func TestAuditRepo_GetByID_NotFound(t *testing.T) {
	repo := sqlite.NewAuditRepo(newTestStore(t))
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, outbound.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestAuditRepo_FindAllSortedAndByActor(t *testing.T) {
	repo := sqlite.NewAuditRepo(newTestStore(t))
	ctx := context.Background()

	// Saved out of order on purpose.
	for _, rec := range []model.Record{
		makeRecord(t, "c", model.KindCommitStatus, "alice", 2*time.Minute),
		makeRecord(t, "a", model.KindIssueAction, "alice", 0),
		makeRecord(t, "b", model.KindPullRequestAction, "carol", time.Minute),
	} {
		if _, err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, err := repo.FindAllSorted(ctx, outbound.PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("FindAllSorted: %v", err)
	}
	if all.TotalCount != 3 || len(all.Items) != 3 {
		t.Fatalf("expected 3 records, got %d/%d", len(all.Items), all.TotalCount)
	}
	for i, want := range []string{"a", "b", "c"} {
		if all.Items[i].ID() != want {
			t.Errorf("item %d: got %s want %s", i, all.Items[i].ID(), want)
		}
	}

	desc, err := repo.FindAllSorted(ctx, outbound.PageRequest{Size: 1, Desc: true})
	if err != nil {
		t.Fatalf("FindAllSorted desc: %v", err)
	}
	if len(desc.Items) != 1 || desc.Items[0].ID() != "c" {
		t.Errorf("expected newest record first, got %v", desc.Items)
	}

	byActor, err := repo.FindByActor(ctx, "alice", outbound.PageRequest{Size: 10})
	if err != nil {
		t.Fatalf("FindByActor: %v", err)
	}
	if byActor.TotalCount != 2 || byActor.Items[0].ID() != "a" || byActor.Items[1].ID() != "c" {
		t.Errorf("unexpected actor page: %d records", byActor.TotalCount)
	}
}

func TestAuditRepo_ListFilters(t *testing.T) {
	repo := sqlite.NewAuditRepo(newTestStore(t))
	ctx := context.Background()

	for i, kind := range []model.Kind{model.KindIssueAction, model.KindIssueAction, model.KindCommitStatus} {
		rec := makeRecord(t, string(rune('a'+i)), kind, "alice", time.Duration(i)*time.Hour)
		if _, err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	res, err := repo.List(ctx, outbound.AuditFilter{Kind: string(model.KindIssueAction)}, outbound.PageRequest{Size: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.TotalCount != 2 || len(res.Items) != 1 {
		t.Errorf("expected 1 of 2 issue records, got %d of %d", len(res.Items), res.TotalCount)
	}

	since := baseTime.Add(30 * time.Minute)
	res, err = repo.List(ctx, outbound.AuditFilter{Since: &since, Repository: "acme/widgets", Sender: "bob"}, outbound.PageRequest{})
	if err != nil {
		t.Fatalf("List since: %v", err)
	}
	if res.TotalCount != 2 {
		t.Errorf("expected 2 records since %v, got %d", since, res.TotalCount)
	}

	if _, err := repo.List(ctx, outbound.AuditFilter{}, outbound.PageRequest{OrderBy: "id; DROP TABLE audit_records"}); err == nil {
		t.Error("expected error for invalid order column")
	}
}
