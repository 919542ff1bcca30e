package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/inbound"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
	"github.com/jonny/hookaudit/internal/metrics"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// Recorder builds audit records from inbound submissions, persists them and
// forwards them to the configured notifier. It also serves read queries.
type Recorder struct {
	repo     outbound.AuditRepository
	notifier outbound.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRecorder creates a Recorder. notifier and m may be nil.
func NewRecorder(repo outbound.AuditRepository, notifier outbound.Notifier, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

var _ inbound.AuditRecorderPort = (*Recorder)(nil)
var _ inbound.AuditQueryPort = (*Recorder)(nil)

// Record builds, stores and announces one audit record.
func (r *Recorder) Record(ctx context.Context, sub inbound.Submission) (model.Record, error) {
	rec, err := build(sub)
	if err != nil {
		r.reject("build")
		return model.Record{}, fmt.Errorf("building %s record: %w", sub.Kind, err)
	}
	if r.metrics != nil {
		r.metrics.IncrementBuilt(string(rec.Kind()))
	}

	if degraded := rec.Degraded(); len(degraded) > 0 {
		r.logger.Info("audit record has missing fields",
			"id", rec.ID(),
			"kind", rec.Kind(),
			"fields", degraded,
		)
		if r.metrics != nil {
			r.metrics.ObserveDegraded(degraded)
		}
	}

	if _, err := r.repo.Save(ctx, rec); err != nil {
		switch {
		case errors.Is(err, model.ErrIncompleteRecord):
			r.reject("incomplete")
		case errors.Is(err, outbound.ErrDuplicateRecord):
			r.reject("duplicate")
		default:
			r.reject("storage")
		}
		return model.Record{}, fmt.Errorf("saving record %s: %w", rec.ID(), err)
	}
	if r.metrics != nil {
		r.metrics.IncrementPersisted(string(rec.Kind()))
	}
	r.logger.Debug("audit record stored", "id", rec.ID(), "kind", rec.Kind())

	r.notify(ctx, rec)
	return rec, nil
}

// RecordAll records each submission in order and stops at the first failure.
// Records stored before the failure are returned alongside the error.
func (r *Recorder) RecordAll(ctx context.Context, subs []inbound.Submission) ([]model.Record, error) {
	out := make([]model.Record, 0, len(subs))
	for i, sub := range subs {
		rec, err := r.Record(ctx, sub)
		if err != nil {
			return out, fmt.Errorf("submission %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns a stored record by ID.
func (r *Recorder) Get(ctx context.Context, id string) (model.Record, error) {
	return r.repo.GetByID(ctx, id)
}

// List returns a filtered page of records.
func (r *Recorder) List(ctx context.Context, filter outbound.AuditFilter, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return r.repo.List(ctx, filter, page)
}

// ByActor returns a page of records attributed to actor.
func (r *Recorder) ByActor(ctx context.Context, actor string, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return r.repo.FindByActor(ctx, actor, page)
}

// Recent returns up to limit records, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	limit = min(limit, maxRecentLimit)

	res, err := r.repo.FindAllSorted(ctx, outbound.PageRequest{Size: limit, Desc: true})
	if err != nil {
		return nil, fmt.Errorf("listing recent records: %w", err)
	}
	return res.Items, nil
}

// build runs the builder steps the submission has material for.
func build(sub inbound.Submission) (model.Record, error) {
	b, err := model.NewRecordBuilder(sub.Kind)
	if err != nil {
		return model.Record{}, err
	}
	if sub.Actor != "" {
		b.ByUser(sub.Actor)
	}
	if sub.Event != nil {
		b.FromSourceEvent(sub.Event)
	}
	if sub.Resource != nil {
		b.OnResource(sub.Resource)
	}
	if sub.Outcome != nil {
		b.WithResult(sub.Outcome)
	}
	return b.Seal()
}

func (r *Recorder) notify(ctx context.Context, rec model.Record) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.NotifyRecord(ctx, rec)
	if err == nil {
		return
	}
	r.logger.Warn("notification failed", "id", rec.ID(), "error", err)
	if r.metrics == nil {
		return
	}
	for _, sink := range failedSinks(err, r.notifier.Name()) {
		r.metrics.IncrementNotifyFailure(sink)
	}
}

func (r *Recorder) reject(reason string) {
	if r.metrics != nil {
		r.metrics.IncrementRejected(reason)
	}
}

// failedSinks names the sinks behind err, falling back to the notifier name
// when err does not carry a SinkError.
func failedSinks(err error, fallback string) []string {
	errs := []error{err}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	}
	names := make([]string, 0, len(errs))
	for _, e := range errs {
		var se *outbound.SinkError
		if errors.As(e, &se) {
			names = append(names, se.Sink)
			continue
		}
		names = append(names, fallback)
	}
	return names
}
