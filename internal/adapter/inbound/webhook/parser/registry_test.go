package parser_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonny/hookaudit/internal/adapter/inbound/webhook/parser"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
)

// stubParser is a test double implementing inbound.WebhookParser.
type stubParser struct {
	source   string
	canParse bool
}

func (s *stubParser) Source() string                                         { return s.source }
func (s *stubParser) CanParse(r *http.Request) bool                          { return s.canParse }
func (s *stubParser) ValidateSignature(r *http.Request, secret string) error { return nil }
func (s *stubParser) Parse(ctx context.Context, r *http.Request) ([]inbound.Submission, error) {
	return nil, nil
}

func TestRegistry_Register_and_Sources(t *testing.T) {
	reg := parser.NewRegistry()

	if sources := reg.Sources(); len(sources) != 0 {
		t.Fatalf("expected 0 sources, got %d", len(sources))
	}

	reg.Register(&stubParser{source: "github"})
	reg.Register(&stubParser{source: "generic"})

	sources := reg.Sources()
	if len(sources) != 2 || sources[0] != "github" || sources[1] != "generic" {
		t.Errorf("unexpected sources: %v", sources)
	}
}

func TestRegistry_Resolve_ReturnsFirstMatch(t *testing.T) {
	reg := parser.NewRegistry()
	reg.Register(&stubParser{source: "no-match", canParse: false})
	reg.Register(&stubParser{source: "github", canParse: true})
	reg.Register(&stubParser{source: "also-matches", canParse: true})

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	p, err := reg.Resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Source() != "github" {
		t.Errorf("expected github, got %s", p.Source())
	}
}

func TestRegistry_Resolve_NoMatch(t *testing.T) {
	reg := parser.NewRegistry()
	reg.Register(&stubParser{source: "no-match", canParse: false})

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	if _, err := reg.Resolve(req); !errors.Is(err, parser.ErrNoParser) {
		t.Fatalf("expected ErrNoParser, got %v", err)
	}
}

func TestDefaultRegistry_PrefersGitHub(t *testing.T) {
	reg := parser.NewDefaultRegistry()

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	p, err := reg.Resolve(req)
	if err != nil || p.Source() != "github" {
		t.Fatalf("expected github parser, got %v, %v", p, err)
	}

	req.Header.Del("X-GitHub-Event")
	p, err = reg.Resolve(req)
	if err != nil || p.Source() != "generic" {
		t.Fatalf("expected generic parser, got %v, %v", p, err)
	}
}
