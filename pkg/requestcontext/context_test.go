package requestcontext_test

import (
	"context"
	"testing"

	"github.com/jonny/hookaudit/pkg/requestcontext"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if requestcontext.Actor(ctx) != "" || requestcontext.RequestID(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}
	if _, ok := requestcontext.RawBody(ctx); ok {
		t.Fatal("expected no raw body on a bare context")
	}

	ctx = requestcontext.WithActor(ctx, "alice")
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithRawBody(ctx, []byte("{}"))

	if got := requestcontext.Actor(ctx); got != "alice" {
		t.Errorf("Actor = %q", got)
	}
	if got := requestcontext.RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID = %q", got)
	}
	if body, ok := requestcontext.RawBody(ctx); !ok || string(body) != "{}" {
		t.Errorf("RawBody = %q, %v", body, ok)
	}
}

func TestActorHolder(t *testing.T) {
	ctx, holder := requestcontext.WithActorHolder(context.Background())
	if holder.Actor() != "" {
		t.Fatal("expected empty holder")
	}

	inner := requestcontext.WithActor(ctx, "alice")
	if got := holder.Actor(); got != "alice" {
		t.Errorf("holder.Actor = %q, want alice", got)
	}
	if got := requestcontext.Actor(inner); got != "alice" {
		t.Errorf("Actor = %q, want alice", got)
	}
	if requestcontext.Actor(ctx) != "" {
		t.Error("outer context must not carry the actor")
	}

	// WithActor without a holder is unaffected
	if got := requestcontext.Actor(requestcontext.WithActor(context.Background(), "bob")); got != "bob" {
		t.Errorf("Actor = %q, want bob", got)
	}
}
