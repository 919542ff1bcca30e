package slackbot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// stubQuery is an in-memory AuditQueryPort.
type stubQuery struct {
	records    []model.Record
	err        error
	lastLimit  int
	lastActor  string
	lastPageRq outbound.PageRequest
}

func (s *stubQuery) Get(_ context.Context, id string) (model.Record, error) {
	if s.err != nil {
		return model.Record{}, s.err
	}
	for _, r := range s.records {
		if r.ID() == id {
			return r, nil
		}
	}
	return model.Record{}, outbound.ErrRecordNotFound
}

func (s *stubQuery) List(context.Context, outbound.AuditFilter, outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return outbound.PageResult[model.Record]{Items: s.records, TotalCount: int64(len(s.records))}, s.err
}

func (s *stubQuery) ByActor(_ context.Context, actor string, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	s.lastActor, s.lastPageRq = actor, page
	return outbound.PageResult[model.Record]{Items: s.records, TotalCount: int64(len(s.records))}, s.err
}

func (s *stubQuery) Recent(_ context.Context, limit int) ([]model.Record, error) {
	s.lastLimit = limit
	return s.records, s.err
}

func newStub(t *testing.T) *stubQuery {
	t.Helper()
	builder, err := model.NewRecordBuilder(model.KindIssueAction)
	if err != nil {
		t.Fatalf("NewRecordBuilder: %v", err)
	}
	rec, err := builder.ByUser("alice").Seal()
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return &stubQuery{records: []model.Record{rec}}
}

func TestCommands_Help(t *testing.T) {
	c := NewCommands("", newStub(t))
	for _, text := range []string{"", "help", "  HELP  "} {
		resp := c.Handle(context.Background(), text)
		if !strings.Contains(resp.Text, "/audit recent") {
			t.Errorf("Handle(%q) = %q, expected help", text, resp.Text)
		}
	}
}

func TestCommands_Recent(t *testing.T) {
	tests := []struct {
		text      string
		wantLimit int
		wantUsage bool
	}{
		{"recent", defaultRecent, false},
		{"recent 3", 3, false},
		{"recent 500", maxRecent, false},
		{"recent zero", 0, true},
		{"recent -1", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			q := newStub(t)
			resp := NewCommands("/audit", q).Handle(context.Background(), tc.text)
			if tc.wantUsage {
				if !strings.Contains(resp.Text, "Usage") {
					t.Errorf("expected usage text, got %q", resp.Text)
				}
				return
			}
			if q.lastLimit != tc.wantLimit {
				t.Errorf("limit = %d, want %d", q.lastLimit, tc.wantLimit)
			}
			if len(resp.Blocks) == 0 {
				t.Error("expected blocks")
			}
		})
	}
}

func TestCommands_Actor(t *testing.T) {
	q := newStub(t)
	resp := NewCommands("/audit", q).Handle(context.Background(), "actor alice")
	if q.lastActor != "alice" || !q.lastPageRq.Desc {
		t.Errorf("query = %q %+v", q.lastActor, q.lastPageRq)
	}
	if !strings.Contains(resp.Text, "alice (1 total)") {
		t.Errorf("text = %q", resp.Text)
	}

	resp = NewCommands("/audit", q).Handle(context.Background(), "actor")
	if !strings.Contains(resp.Text, "Usage") {
		t.Errorf("expected usage, got %q", resp.Text)
	}
}

func TestCommands_Show(t *testing.T) {
	q := newStub(t)
	c := NewCommands("/audit", q)

	resp := c.Handle(context.Background(), "show "+q.records[0].ID())
	if resp.Text != "issue action by alice" || len(resp.Blocks) == 0 {
		t.Errorf("unexpected response %+v", resp)
	}

	resp = c.Handle(context.Background(), "show missing")
	if !strings.Contains(resp.Text, "No audit record") {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestCommands_QueryError(t *testing.T) {
	q := newStub(t)
	q.err = errors.New("database is `locked`")
	resp := NewCommands("/audit", q).Handle(context.Background(), "recent")
	if !strings.HasPrefix(resp.Text, ":x:") || strings.Contains(resp.Text, "`") {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestCommands_Unknown(t *testing.T) {
	resp := NewCommands("/audit", newStub(t)).Handle(context.Background(), "deploy`now`")
	if !strings.Contains(resp.Text, "Unknown command") || strings.Contains(resp.Text, "deploy`") {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestStripMention(t *testing.T) {
	if got := stripMention("<@U123ABC> recent 3"); got != "recent 3" {
		t.Errorf("stripMention = %q", got)
	}
}
