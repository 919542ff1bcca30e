package parser

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
)

const (
	headerGitHubEvent     = "X-GitHub-Event"
	headerGitHubDelivery  = "X-GitHub-Delivery"
	headerGitHubSignature = "X-Hub-Signature-256"
)

// githubEventKinds maps X-GitHub-Event names to record kinds.
var githubEventKinds = map[string]model.Kind{
	"issues":        model.KindIssueAction,
	"issue_comment": model.KindIssueAction,
	"milestone":     model.KindIssueAction,
	"label":         model.KindIssueAction,

	"pull_request":                model.KindPullRequestAction,
	"pull_request_review":         model.KindPullRequestAction,
	"pull_request_review_comment": model.KindPullRequestAction,

	"push":       model.KindRepositoryAccess,
	"create":     model.KindRepositoryAccess,
	"delete":     model.KindRepositoryAccess,
	"fork":       model.KindRepositoryAccess,
	"repository": model.KindRepositoryAccess,
	"public":     model.KindRepositoryAccess,
	"member":     model.KindRepositoryAccess,
	"star":       model.KindRepositoryAccess,
	"watch":      model.KindRepositoryAccess,

	"status":            model.KindCommitStatus,
	"check_run":         model.KindCommitStatus,
	"check_suite":       model.KindCommitStatus,
	"deployment_status": model.KindCommitStatus,
}

// GitHubParser parses repository webhook deliveries sent by GitHub.
type GitHubParser struct{}

// NewGitHubParser creates a new GitHubParser.
func NewGitHubParser() *GitHubParser {
	return &GitHubParser{}
}

// Source returns the source identifier for GitHub deliveries.
func (g *GitHubParser) Source() string {
	return "github"
}

// CanParse returns true if the request carries an X-GitHub-Event header.
func (g *GitHubParser) CanParse(r *http.Request) bool {
	return r.Header.Get(headerGitHubEvent) != ""
}

// ValidateSignature checks the X-Hub-Signature-256 HMAC over the raw body.
// Returns nil when no secret is configured.
func (g *GitHubParser) ValidateSignature(r *http.Request, secret string) error {
	if secret == "" {
		return nil
	}
	sigHeader := r.Header.Get(headerGitHubSignature)
	if sigHeader == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, headerGitHubSignature)
	}
	const prefix = "sha256="
	if !strings.HasPrefix(sigHeader, prefix) {
		return fmt.Errorf("%w: invalid signature format", ErrInvalidSignature)
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(sigHeader, prefix))
	if err != nil {
		return fmt.Errorf("%w: invalid signature encoding", ErrInvalidSignature)
	}

	body, err := readBody(r)
	if err != nil {
		return err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return fmt.Errorf("%w: HMAC mismatch", ErrInvalidSignature)
	}
	return nil
}

// Parse turns one delivery into at most one submission. Ping deliveries
// yield none.
func (g *GitHubParser) Parse(_ context.Context, r *http.Request) ([]inbound.Submission, error) {
	event := r.Header.Get(headerGitHubEvent)
	if event == "ping" {
		return nil, nil
	}
	kind, ok := githubEventKinds[event]
	if !ok {
		return nil, fmt.Errorf("github: %w: %q", ErrUnsupportedEvent, event)
	}

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	payload, err := model.DecodePayload(body)
	if err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}

	return []inbound.Submission{{
		Kind:     kind,
		Event:    payload,
		Resource: githubResource(event, payload),
		Outcome: map[string]any{
			"status":   "received",
			"event":    event,
			"delivery": r.Header.Get(headerGitHubDelivery),
		},
	}}, nil
}

// githubResource builds the resource descriptor for a delivery. Values are
// copied as found; the record builder decides what is usable.
func githubResource(event string, p model.Payload) model.Payload {
	res := model.Payload{}
	if repo := p.Object("repository"); repo != nil {
		res["repository"] = map[string]any(repo)
	}
	if n, ok := p.Object("issue").Lookup("number"); ok {
		res["issue_number"] = n
	}
	if strings.HasPrefix(event, "pull_request") {
		if n, ok := p.Object("pull_request").Lookup("number"); ok {
			res["pull_request"] = n
		} else if n, ok := p.Lookup("number"); ok {
			res["pull_request"] = n
		}
	}
	if sha, ok := githubCommit(p); ok {
		res["commit"] = sha
	}
	return res
}

func githubCommit(p model.Payload) (string, bool) {
	candidates := []model.Optional[string]{
		p.Text("after"),
		p.Object("head_commit").Text("id"),
		p.Text("sha"),
		p.Object("check_run").Text("head_sha"),
		p.Object("check_suite").Text("head_sha"),
	}
	for _, c := range candidates {
		if sha, ok := c.Get(); ok && sha != "" {
			return sha, true
		}
	}
	return "", false
}
