// Package requestcontext holds request-scoped values set by HTTP middleware
// and read by handlers and services. It has no net/http dependency.
package requestcontext

import (
	"context"
	"sync"
)

type (
	actorKey       struct{}
	actorHolderKey struct{}
	requestIDKey   struct{}
	rawBodyKey     struct{}
)

// Actor returns the authenticated actor, or "" when the request is anonymous.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return ""
}

// WithActor injects the authenticated actor and reports it to the
// ActorHolder installed further out, if any.
func WithActor(ctx context.Context, actor string) context.Context {
	if h, ok := ctx.Value(actorHolderKey{}).(*ActorHolder); ok {
		h.set(actor)
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorHolder captures the actor that an inner handler authenticates so
// that outer middleware can read it after the handler returns.
type ActorHolder struct {
	mu    sync.Mutex
	actor string
}

// WithActorHolder installs an empty ActorHolder.
func WithActorHolder(ctx context.Context) (context.Context, *ActorHolder) {
	h := &ActorHolder{}
	return context.WithValue(ctx, actorHolderKey{}, h), h
}

// Actor returns the last actor set below the holder, or "".
func (h *ActorHolder) Actor() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actor
}

func (h *ActorHolder) set(actor string) {
	h.mu.Lock()
	h.actor = actor
	h.mu.Unlock()
}

// RequestID returns the request correlation ID, or "" when unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RawBody returns the buffered request body, if a body reader stored one.
func RawBody(ctx context.Context) ([]byte, bool) {
	body, ok := ctx.Value(rawBodyKey{}).([]byte)
	return body, ok
}

// WithRawBody stores the buffered request body.
func WithRawBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, rawBodyKey{}, body)
}
