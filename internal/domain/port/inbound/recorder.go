package inbound

import (
	"context"
	"net/http"

	"github.com/jonny/hookaudit/internal/domain/model"
)

// Submission carries the raw material for one audit record as received by
// an inbound adapter. Event and Resource are attached only when non-nil;
// an empty Actor leaves the record without one.
type Submission struct {
	Kind     model.Kind
	Actor    string
	Event    model.Payload
	Resource model.Payload
	Outcome  any
}

// WebhookParser turns a source-specific webhook request into submissions.
type WebhookParser interface {
	Source() string
	CanParse(r *http.Request) bool
	Parse(ctx context.Context, r *http.Request) ([]Submission, error)
	ValidateSignature(r *http.Request, secret string) error
}

// ParserRegistry manages WebhookParser instances.
type ParserRegistry interface {
	Register(parser WebhookParser)
	Resolve(r *http.Request) (WebhookParser, error)
	Sources() []string
}

// AuditRecorderPort builds and persists audit records.
type AuditRecorderPort interface {
	Record(ctx context.Context, sub Submission) (model.Record, error)
	RecordAll(ctx context.Context, subs []Submission) ([]model.Record, error)
}
