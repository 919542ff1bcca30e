package parser

import (
	"context"
	"crypto/hmac"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
)

// GenericParser accepts audit metadata posted by internal API clients. The
// body is one object, or an array of objects, shaped as
//
//	{"kind": "...", "event": {...}, "resource": {...}, "outcome": ...}
//
// It matches any request with a JSON content type, so register it last.
type GenericParser struct{}

// NewGenericParser creates a new GenericParser.
func NewGenericParser() *GenericParser {
	return &GenericParser{}
}

// Source returns the source identifier for generic submissions.
func (g *GenericParser) Source() string {
	return "generic"
}

// CanParse returns true for any request with a JSON Content-Type (fallback parser).
func (g *GenericParser) CanParse(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.Contains(ct, "application/json")
}

// ValidateSignature validates a Bearer token in the Authorization header.
// Returns nil when no secret is configured (authentication disabled).
func (g *GenericParser) ValidateSignature(r *http.Request, secret string) error {
	if secret == "" {
		return nil
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return fmt.Errorf("%w: missing Authorization header", ErrInvalidSignature)
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return fmt.Errorf("%w: invalid Authorization header format", ErrInvalidSignature)
	}
	if !hmac.Equal([]byte(strings.TrimSpace(parts[1])), []byte(secret)) {
		return fmt.Errorf("%w: invalid bearer token", ErrInvalidSignature)
	}
	return nil
}

// Parse decodes one or more submissions from the request body.
func (g *GenericParser) Parse(_ context.Context, r *http.Request) ([]inbound.Submission, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}
	doc, err := model.DecodeDocument(body)
	if err != nil {
		return nil, fmt.Errorf("generic: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("generic: %w: got %T", model.ErrNotObject, doc)
	}

	subs := make([]inbound.Submission, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("generic: item %d: %w", i, model.ErrNotObject)
		}
		sub, err := DecodeSubmission(obj)
		if err != nil {
			return nil, fmt.Errorf("generic: item %d: %w", i, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// DecodeSubmission reads one generic submission object. The actor is never
// taken from the body; callers attach it from the authenticated request.
func DecodeSubmission(obj model.Payload) (inbound.Submission, error) {
	kind, err := model.ParseKind(obj.Text("kind").OrElse(""))
	if err != nil {
		return inbound.Submission{}, err
	}
	sub := inbound.Submission{Kind: kind}

	if v, ok := obj.Lookup("event"); ok {
		event, ok := asPayload(v)
		if !ok {
			return inbound.Submission{}, fmt.Errorf("event: %w", model.ErrNotObject)
		}
		sub.Event = event
	}
	if v, ok := obj.Lookup("resource"); ok {
		resource, ok := asPayload(v)
		if !ok {
			return inbound.Submission{}, fmt.Errorf("resource: %w", model.ErrNotObject)
		}
		sub.Resource = resource
	}
	if v, ok := obj.Lookup("outcome"); ok {
		sub.Outcome = v
	}
	return sub, nil
}

func asPayload(v any) (model.Payload, bool) {
	switch t := v.(type) {
	case map[string]any:
		return model.Payload(t), true
	case model.Payload:
		return t, true
	}
	return nil, false
}
