package webhook

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonny/hookaudit/internal/adapter/inbound/webhook/parser"
	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
	"github.com/jonny/hookaudit/pkg/apierror"
	"github.com/jonny/hookaudit/pkg/requestcontext"
)

const maxPageSize = 100

// APIHandler serves the authenticated audit API. Every route expects the
// actor to be present in the request context.
type APIHandler struct {
	recorder inbound.AuditRecorderPort
	query    inbound.AuditQueryPort
	events   *parser.GenericParser
	logger   *slog.Logger
}

// NewAPIHandler creates an APIHandler.
func NewAPIHandler(recorder inbound.AuditRecorderPort, query inbound.AuditQueryPort, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{
		recorder: recorder,
		query:    query,
		events:   parser.NewGenericParser(),
		logger:   logger,
	}
}

// Register mounts the audit endpoints on r.
func (h *APIHandler) Register(r chi.Router) {
	r.Post("/events", h.HandleSubmit)
	r.Get("/records", h.HandleList)
	r.Get("/records/{id}", h.HandleGet)
	r.Get("/kinds", h.HandleKinds)
}

type listResponse struct {
	Items []model.Record `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

// HandleSubmit handles POST /events. The body uses the generic submission
// shape; the authenticated actor is attributed to every record.
func (h *APIHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	if actor == "" {
		apierror.Write(w, apierror.Unauthorized("authentication required"))
		return
	}

	subs, err := h.events.Parse(ctx, r)
	if err != nil {
		apierror.Write(w, apierror.WithDetail(http.StatusBadRequest, "invalid submission", err.Error()))
		return
	}
	if len(subs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	for i := range subs {
		subs[i].Actor = actor
	}

	recs, err := h.recorder.RecordAll(ctx, subs)
	if err != nil {
		h.logger.ErrorContext(ctx, "recording api submission failed",
			"actor", actor,
			"requestID", requestcontext.RequestID(ctx),
			"error", err,
		)
		apierror.Write(w, recordError(err))
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: len(recs), IDs: recordIDs(recs)})
}

// HandleList handles GET /records.
func (h *APIHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, page, apiErr := parseListQuery(r)
	if apiErr != nil {
		apierror.Write(w, apiErr)
		return
	}

	res, err := h.query.List(r.Context(), filter, page)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing audit records failed", "error", err)
		apierror.Write(w, err)
		return
	}
	items := res.Items
	if items == nil {
		items = []model.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Total: res.TotalCount, Page: res.Page, Size: res.Size})
}

// HandleGet handles GET /records/{id}.
func (h *APIHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.query.Get(r.Context(), id)
	if errors.Is(err, outbound.ErrRecordNotFound) {
		apierror.Write(w, apierror.NotFound("audit record"))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "getting audit record failed", "id", id, "error", err)
		apierror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleKinds handles GET /kinds.
func (h *APIHandler) HandleKinds(w http.ResponseWriter, r *http.Request) {
	type kindInfo struct {
		Kind  model.Kind `json:"kind"`
		Label string     `json:"label"`
	}
	kinds := model.Kinds()
	out := make([]kindInfo, len(kinds))
	for i, k := range kinds {
		out[i] = kindInfo{Kind: k, Label: k.Label()}
	}
	writeJSON(w, http.StatusOK, out)
}

// parseListQuery reads filter and paging parameters from the query string.
func parseListQuery(r *http.Request) (outbound.AuditFilter, outbound.PageRequest, *apierror.Error) {
	q := r.URL.Query()
	var (
		filter outbound.AuditFilter
		page   outbound.PageRequest
	)

	filter.Actor = q.Get("actor")
	filter.Sender = q.Get("sender")
	filter.Repository = q.Get("repository")
	if raw := q.Get("kind"); raw != "" {
		kind, err := model.ParseKind(raw)
		if err != nil {
			return filter, page, apierror.BadRequest("unknown kind: " + raw)
		}
		filter.Kind = string(kind)
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, page, apierror.BadRequest(p.name + " must be an RFC 3339 timestamp")
		}
		*p.dst = &t
	}

	var err error
	if page.Page, err = intParam(q.Get("page"), 0); err != nil || page.Page < 0 {
		return filter, page, apierror.BadRequest("page must be a non-negative integer")
	}
	if page.Size, err = intParam(q.Get("size"), 20); err != nil || page.Size <= 0 {
		return filter, page, apierror.BadRequest("size must be a positive integer")
	}
	page.Size = min(page.Size, maxPageSize)

	page.OrderBy = q.Get("order")
	if page.OrderBy != "" && !outbound.IsOrderColumn(page.OrderBy) {
		return filter, page, apierror.BadRequest("unsupported order column: " + page.OrderBy)
	}
	if raw := q.Get("desc"); raw != "" {
		if page.Desc, err = strconv.ParseBool(raw); err != nil {
			return filter, page, apierror.BadRequest("desc must be a boolean")
		}
	}
	return filter, page, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
