package template_test

import (
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/hookaudit/internal/adapter/inbound/slackbot/template"
	"github.com/jonny/hookaudit/internal/domain/model"
)

func sealRecord(t *testing.T, kind model.Kind, actor string, resource model.Payload) model.Record {
	t.Helper()
	builder, err := model.NewRecordBuilder(kind)
	if err != nil {
		t.Fatalf("NewRecordBuilder: %v", err)
	}
	b := builder.
		ByUser(actor).
		FromSourceEvent(model.Payload{"action": "opened", "sender": map[string]any{"login": "octocat"}})
	if resource != nil {
		b = b.OnResource(resource)
	}
	rec, err := b.Seal()
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return rec
}

func TestBuildRecordBlocks(t *testing.T) {
	rec := sealRecord(t, model.KindPullRequestAction, "alice", model.Payload{
		"repository":   map[string]any{"full_name": "octocat/Hello-World"},
		"pull_request": 7,
		"commit":       "0123456789abcdef",
	})

	blocks := template.BuildRecordBlocks(rec)
	if len(blocks) < 4 {
		t.Fatalf("expected at least 4 blocks, got %d", len(blocks))
	}

	section, ok := blocks[0].(*slackapi.SectionBlock)
	if !ok {
		t.Fatalf("expected first block to be SectionBlock, got %T", blocks[0])
	}
	for _, want := range []string{":twisted_rightwards_arrows:", "pull request action", "alice", "octocat/Hello-World"} {
		if !strings.Contains(section.Text.Text, want) {
			t.Errorf("header %q missing %q", section.Text.Text, want)
		}
	}

	ctxBlock, ok := blocks[3].(*slackapi.ContextBlock)
	if !ok {
		t.Fatalf("expected resource context block, got %T", blocks[3])
	}
	text := ctxBlock.ContextElements.Elements[0].(*slackapi.TextBlockObject).Text
	for _, want := range []string{"`pr=#7`", "`commit=0123456`"} {
		if !strings.Contains(text, want) {
			t.Errorf("resource line %q missing %q", text, want)
		}
	}
}

func TestBuildRecordBlocks_Degraded(t *testing.T) {
	rec := sealRecord(t, model.KindIssueAction, "bob", model.Payload{})

	blocks := template.BuildRecordBlocks(rec)
	last, ok := blocks[len(blocks)-1].(*slackapi.ContextBlock)
	if !ok {
		t.Fatalf("expected trailing context block, got %T", blocks[len(blocks)-1])
	}
	text := last.ContextElements.Elements[0].(*slackapi.TextBlockObject).Text
	if !strings.Contains(text, ":warning:") {
		t.Errorf("expected degraded warning, got %q", text)
	}
}

func TestBuildRecordListBlocks(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		blocks := template.BuildRecordListBlocks("Recent", nil)
		if len(blocks) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(blocks))
		}
	})

	t.Run("records", func(t *testing.T) {
		recs := []model.Record{
			sealRecord(t, model.KindIssueAction, "alice", nil),
			sealRecord(t, model.KindAuthentication, "bob", nil),
		}
		blocks := template.BuildRecordListBlocks("Recent", recs)
		body := blocks[len(blocks)-1].(*slackapi.SectionBlock).Text.Text
		if strings.Count(body, "\n") != 1 {
			t.Errorf("expected one line per record, got %q", body)
		}
		for _, rec := range recs {
			if !strings.Contains(body, rec.ID()) {
				t.Errorf("list missing record %s", rec.ID())
			}
		}
	})
}
