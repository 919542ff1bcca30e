package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
	"github.com/jonny/hookaudit/pkg/apierror"
	"github.com/jonny/hookaudit/pkg/requestcontext"
)

// SourceConfig holds per-source configuration for the webhook endpoint.
type SourceConfig struct {
	// Disabled rejects deliveries from the source as unsupported.
	Disabled bool
	// Secret is used for signature validation (HMAC secret or bearer token).
	Secret string
	// ValidateSignature controls whether signature validation is enforced.
	ValidateSignature bool
	// Actor is attributed to deliveries that arrive without an authenticated actor.
	Actor string
}

// Handler is the HTTP handler for incoming webhook deliveries.
type Handler struct {
	registry inbound.ParserRegistry
	recorder inbound.AuditRecorderPort
	sources  map[string]SourceConfig
	logger   *slog.Logger
}

// NewHandler creates a new Handler with the given registry, recorder, and per-source configs.
func NewHandler(
	registry inbound.ParserRegistry,
	recorder inbound.AuditRecorderPort,
	sources map[string]SourceConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		recorder: recorder,
		sources:  sources,
		logger:   logger,
	}
}

// acceptedResponse is the body returned for stored deliveries.
type acceptedResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

// ServeHTTP handles an incoming webhook request:
//  1. Resolves the parser for the request.
//  2. Validates the signature when the source requires it.
//  3. Parses the payload into submissions.
//  4. Attributes an actor and records every submission.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.registry.Resolve(r)
	if err != nil {
		apierror.Write(w, apierror.BadRequest("unsupported webhook source"))
		return
	}
	source := p.Source()
	cfg := h.sources[source]
	if cfg.Disabled {
		apierror.Write(w, apierror.BadRequest("webhook source disabled: "+source))
		return
	}

	if cfg.ValidateSignature {
		if err := p.ValidateSignature(r, cfg.Secret); err != nil {
			h.logger.WarnContext(ctx, "webhook signature rejected",
				"source", source,
				"requestID", requestcontext.RequestID(ctx),
				"error", err,
			)
			apierror.Write(w, apierror.Unauthorized("signature validation failed"))
			return
		}
	}

	subs, err := p.Parse(ctx, r)
	if err != nil {
		h.logger.InfoContext(ctx, "webhook payload rejected", "source", source, "error", err)
		apierror.Write(w, apierror.WithDetail(http.StatusBadRequest, "failed to parse webhook payload", err.Error()))
		return
	}
	if len(subs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	actor := requestcontext.Actor(ctx)
	if actor == "" {
		actor = cfg.Actor
	}
	for i := range subs {
		if subs[i].Actor == "" {
			subs[i].Actor = actor
		}
	}

	recs, err := h.recorder.RecordAll(ctx, subs)
	if err != nil {
		h.logger.ErrorContext(ctx, "recording webhook delivery failed",
			"source", source,
			"stored", len(recs),
			"error", err,
		)
		apierror.Write(w, recordError(err))
		return
	}

	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: len(recs), IDs: recordIDs(recs)})
}

// recordError maps recorder failures to API errors.
func recordError(err error) *apierror.Error {
	switch {
	case errors.Is(err, model.ErrIncompleteRecord):
		e := apierror.Unprocessable("incomplete audit record")
		e.Detail = err.Error()
		return e
	case errors.Is(err, outbound.ErrDuplicateRecord):
		return apierror.Conflict("audit record already exists")
	case errors.Is(err, model.ErrUnknownKind):
		return apierror.WithDetail(http.StatusBadRequest, "unknown record kind", err.Error())
	default:
		return apierror.Internal("failed to record audit event")
	}
}

func recordIDs(recs []model.Record) []string {
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID()
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HealthHandler returns an http.HandlerFunc for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
