package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/jonny/hookaudit/internal/adapter/outbound/persistence/postgres"
	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

var recordColumns = []string{"id", "kind", "actor", "created_at", "raw_source_event", "raw_target_resource", "raw_outcome"}

func newMockRepo(t *testing.T) (*postgres.AuditRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return postgres.NewAuditRepo(&postgres.Store{DB: db}), mock
}

func sampleRecord(t *testing.T, actor string) model.Record {
	t.Helper()
	rec, err := model.Restore(model.Snapshot{
		ID:                "rec-1",
		Timestamp:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:              model.KindPullRequestAction,
		Actor:             actor,
		RawSourceEvent:    model.Payload{"action": "opened", "sender": map[string]any{"login": "bob"}},
		RawTargetResource: model.Payload{"repository": map[string]any{"full_name": "acme/widgets"}, "pull_request": 7},
		RawOutcome:        map[string]any{"status": "received"},
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return rec
}

func TestAuditRepo_Save(t *testing.T) {
	repo, mock := newMockRepo(t)
	rec := sampleRecord(t, "alice")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WithArgs(
			"rec-1", "PULL_REQUEST_ACTION", "alice",
			"bob", "opened", "acme/widgets",
			rec.Timestamp(),
			`{"action":"opened","sender":{"login":"bob"}}`,
			`{"pull_request":7,"repository":{"full_name":"acme/widgets"}}`,
			`{"status":"received"}`,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Save(context.Background(), rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != "rec-1" {
		t.Errorf("Save returned %q", id)
	}
}

func TestAuditRepo_Save_Duplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := repo.Save(context.Background(), sampleRecord(t, "alice"))
	if !errors.Is(err, outbound.ErrDuplicateRecord) {
		t.Errorf("expected ErrDuplicateRecord, got %v", err)
	}
}

func TestAuditRepo_Save_Incomplete(t *testing.T) {
	repo, _ := newMockRepo(t)
	if _, err := repo.Save(context.Background(), sampleRecord(t, "")); !errors.Is(err, model.ErrIncompleteRecord) {
		t.Errorf("expected ErrIncompleteRecord, got %v", err)
	}
}

func TestAuditRepo_GetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_records WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			"rec-1", "COMMIT_STATUS", "alice", ts,
			[]byte(`{"sender":{"login":"ci-bot"}}`),
			[]byte(`{"commit":"abc123","repository":{"id":1}}`),
			[]byte(`null`),
		))

	rec, err := repo.GetByID(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.Kind() != model.KindCommitStatus || !rec.Timestamp().Equal(ts) {
		t.Errorf("got %+v", rec.Snapshot())
	}
	se, _ := rec.SourceEvent()
	if se.SenderIdentity != "ci-bot" || se.Action.IsSet() {
		t.Errorf("SourceEvent: got %+v", se)
	}
	tr, _ := rec.TargetResource()
	if tr.Commit != model.Some("abc123") || tr.Repository.ID != model.Some[int64](1) {
		t.Errorf("TargetResource: got %+v", tr)
	}
	if rec.Outcome() != nil {
		t.Errorf("Outcome: got %#v", rec.Outcome())
	}
}

func TestAuditRepo_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_records WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(recordColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, outbound.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestAuditRepo_FindByActor(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_records WHERE actor = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE actor = $1 ORDER BY created_at DESC, created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs("alice", 2, 2).
		WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
			"rec-3", "ISSUE_ACTION", "alice", ts, []byte(`null`), []byte(`null`), []byte(`"done"`),
		))

	res, err := repo.FindByActor(context.Background(), "alice", outbound.PageRequest{Page: 1, Size: 2, Desc: true})
	if err != nil {
		t.Fatalf("FindByActor: %v", err)
	}
	if res.TotalCount != 3 || len(res.Items) != 1 {
		t.Fatalf("got %d items of %d", len(res.Items), res.TotalCount)
	}
	if res.Items[0].ID() != "rec-3" || res.Items[0].Outcome() != "done" {
		t.Errorf("unexpected item %+v", res.Items[0].Snapshot())
	}
}

func TestAuditRepo_List_FilterPlaceholders(t *testing.T) {
	repo, mock := newMockRepo(t)
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_records WHERE kind = $1 AND repository = $2 AND created_at >= $3")).
		WithArgs("ISSUE_ACTION", "acme/widgets", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY kind ASC, created_at ASC, id ASC LIMIT $4 OFFSET $5")).
		WithArgs("ISSUE_ACTION", "acme/widgets", since, 20, 0).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	res, err := repo.List(context.Background(),
		outbound.AuditFilter{Kind: "ISSUE_ACTION", Repository: "acme/widgets", Since: &since},
		outbound.PageRequest{OrderBy: "kind"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.TotalCount != 0 || len(res.Items) != 0 || res.Size != 20 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAuditRepo_List_InvalidOrder(t *testing.T) {
	repo, _ := newMockRepo(t)
	if _, err := repo.List(context.Background(), outbound.AuditFilter{}, outbound.PageRequest{OrderBy: "raw_outcome"}); err == nil {
		t.Error("expected error for invalid order column")
	}
}

func TestStore_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS audit_records")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := &postgres.Store{DB: db}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
