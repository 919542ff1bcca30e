package parser_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonny/hookaudit/internal/adapter/inbound/webhook/parser"
	"github.com/jonny/hookaudit/internal/domain/model"
)

func githubRequest(event, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	return req
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubParser_CanParse(t *testing.T) {
	p := parser.NewGitHubParser()

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	if p.CanParse(req) {
		t.Error("expected false without X-GitHub-Event")
	}
	req.Header.Set("X-GitHub-Event", "issues")
	if !p.CanParse(req) {
		t.Error("expected true with X-GitHub-Event")
	}
}

func TestGitHubParser_ValidateSignature(t *testing.T) {
	p := parser.NewGitHubParser()
	body := `{"action":"opened"}`

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"valid", sign("s3cret", body), false},
		{"wrong secret", sign("other", body), true},
		{"missing", "", true},
		{"no prefix", strings.TrimPrefix(sign("s3cret", body), "sha256="), true},
		{"bad hex", "sha256=zz", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := githubRequest("issues", body)
			if tc.header != "" {
				req.Header.Set("X-Hub-Signature-256", tc.header)
			}
			err := p.ValidateSignature(req, "s3cret")
			if tc.wantErr {
				if !errors.Is(err, parser.ErrInvalidSignature) {
					t.Errorf("expected ErrInvalidSignature, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// The body must still be readable for Parse.
			rest, _ := io.ReadAll(req.Body)
			if string(rest) != body {
				t.Errorf("body not restored: %q", rest)
			}
		})
	}

	if err := p.ValidateSignature(githubRequest("issues", body), ""); err != nil {
		t.Errorf("expected nil with empty secret, got %v", err)
	}
}

func TestGitHubParser_Parse_Issue(t *testing.T) {
	body := `{
		"action": "opened",
		"issue": {"number": 42, "title": "Widget broken"},
		"repository": {
			"id": 1296269,
			"full_name": "octocat/Hello-World",
			"url": "https://api.github.com/repos/octocat/Hello-World",
			"clone_url": "https://github.com/octocat/Hello-World.git",
			"git_url": "git://github.com/octocat/Hello-World.git",
			"ssh_url": "git@github.com:octocat/Hello-World.git"
		},
		"sender": {"login": "octocat"}
	}`

	subs, err := parser.NewGitHubParser().Parse(context.Background(), githubRequest("issues", body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
	sub := subs[0]
	if sub.Kind != model.KindIssueAction {
		t.Errorf("Kind = %s", sub.Kind)
	}
	if sub.Actor != "" {
		t.Errorf("parser must not set actor, got %q", sub.Actor)
	}
	if sub.Event.Object("sender").Text("login") != model.Some("octocat") {
		t.Errorf("event sender = %v", sub.Event.Object("sender"))
	}
	if sub.Resource.Integer("issue_number") != model.Some[int64](42) {
		t.Errorf("issue_number = %v", sub.Resource["issue_number"])
	}
	if sub.Resource.Object("repository").Text("ssh_url") != model.Some("git@github.com:octocat/Hello-World.git") {
		t.Errorf("repository = %v", sub.Resource["repository"])
	}
	if _, ok := sub.Resource.Lookup("commit"); ok {
		t.Error("issue event should not carry a commit")
	}

	outcome, ok := sub.Outcome.(map[string]any)
	if !ok {
		t.Fatalf("outcome type %T", sub.Outcome)
	}
	if outcome["status"] != "received" || outcome["event"] != "issues" || outcome["delivery"] != "72d3162e-cc78-11e3-81ab-4c9367dc0958" {
		t.Errorf("outcome = %v", outcome)
	}
}

func TestGitHubParser_Parse_Resources(t *testing.T) {
	tests := []struct {
		event       string
		body        string
		kind        model.Kind
		commit      model.Optional[string]
		pullRequest model.Optional[int64]
	}{
		{
			event:  "push",
			body:   `{"after":"6dcb09b","head_commit":{"id":"ignored"},"repository":{"full_name":"a/b"}}`,
			kind:   model.KindRepositoryAccess,
			commit: model.Some("6dcb09b"),
		},
		{
			event:  "push",
			body:   `{"after":"","head_commit":{"id":"abc"}}`,
			kind:   model.KindRepositoryAccess,
			commit: model.Some("abc"),
		},
		{
			event:       "pull_request",
			body:        `{"action":"closed","number":7,"pull_request":{"number":7}}`,
			kind:        model.KindPullRequestAction,
			pullRequest: model.Some[int64](7),
		},
		{
			event:       "pull_request_review",
			body:        `{"action":"submitted","number":9}`,
			kind:        model.KindPullRequestAction,
			pullRequest: model.Some[int64](9),
		},
		{
			event:  "status",
			body:   `{"sha":"deadbeef","state":"success"}`,
			kind:   model.KindCommitStatus,
			commit: model.Some("deadbeef"),
		},
		{
			event:  "check_suite",
			body:   `{"check_suite":{"head_sha":"cafe"}}`,
			kind:   model.KindCommitStatus,
			commit: model.Some("cafe"),
		},
		{
			event: "star",
			body:  `{"action":"created"}`,
			kind:  model.KindRepositoryAccess,
		},
	}

	for _, tc := range tests {
		t.Run(tc.event, func(t *testing.T) {
			subs, err := parser.NewGitHubParser().Parse(context.Background(), githubRequest(tc.event, tc.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(subs) != 1 {
				t.Fatalf("expected 1 submission, got %d", len(subs))
			}
			sub := subs[0]
			if sub.Kind != tc.kind {
				t.Errorf("Kind = %s, want %s", sub.Kind, tc.kind)
			}
			if got := sub.Resource.Text("commit"); got != tc.commit {
				t.Errorf("commit = %v, want %v", got, tc.commit)
			}
			if got := sub.Resource.Integer("pull_request"); got != tc.pullRequest {
				t.Errorf("pull_request = %v, want %v", got, tc.pullRequest)
			}
		})
	}
}

func TestGitHubParser_Parse_Ping(t *testing.T) {
	subs, err := parser.NewGitHubParser().Parse(context.Background(), githubRequest("ping", `{"zen":"Keep it logically awesome."}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expected no submissions for ping, got %d", len(subs))
	}
}

func TestGitHubParser_Parse_Errors(t *testing.T) {
	p := parser.NewGitHubParser()

	if _, err := p.Parse(context.Background(), githubRequest("sponsorship", `{}`)); !errors.Is(err, parser.ErrUnsupportedEvent) {
		t.Errorf("expected ErrUnsupportedEvent, got %v", err)
	}
	if _, err := p.Parse(context.Background(), githubRequest("issues", `[1]`)); !errors.Is(err, model.ErrNotObject) {
		t.Errorf("expected ErrNotObject, got %v", err)
	}
	if _, err := p.Parse(context.Background(), githubRequest("issues", `{bad`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestGitHubParser_Parse_KeepsLargeIDsExact(t *testing.T) {
	subs, err := parser.NewGitHubParser().Parse(context.Background(),
		githubRequest("fork", `{"repository":{"id":9007199254740993}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, ok := subs[0].Resource.Object("repository")["id"].(json.Number)
	if !ok || id.String() != "9007199254740993" {
		t.Errorf("repository id = %#v", subs[0].Resource.Object("repository")["id"])
	}
}
