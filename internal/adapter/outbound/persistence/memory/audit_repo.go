package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// AuditRepo is an append-only, in-process outbound.AuditRepository. Used by
// tests and the "memory" database driver.
type AuditRepo struct {
	mu      sync.RWMutex
	records []model.Record
	byID    map[string]int
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{byID: make(map[string]int)}
}

func (r *AuditRepo) Save(_ context.Context, rec model.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[rec.ID()]; ok {
		return "", fmt.Errorf("%w: %s", outbound.ErrDuplicateRecord, rec.ID())
	}
	r.byID[rec.ID()] = len(r.records)
	r.records = append(r.records, rec)
	return rec.ID(), nil
}

func (r *AuditRepo) GetByID(_ context.Context, id string) (model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[id]
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", outbound.ErrRecordNotFound, id)
	}
	return r.records[idx], nil
}

func (r *AuditRepo) FindAllSorted(ctx context.Context, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return r.List(ctx, outbound.AuditFilter{}, page)
}

func (r *AuditRepo) FindByActor(ctx context.Context, actor string, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return r.List(ctx, outbound.AuditFilter{Actor: actor}, page)
}

// orderKeys maps the accepted ORDER BY names onto record fields.
var orderKeys = map[string]func(model.Record) string{
	"created_at": func(rec model.Record) string { return "" },
	"kind":       func(rec model.Record) string { return string(rec.Kind()) },
	"actor": func(rec model.Record) string {
		a, _ := rec.Actor()
		return a
	},
	"sender": func(rec model.Record) string {
		se, _ := rec.SourceEvent()
		return se.SenderIdentity
	},
	"repository": func(rec model.Record) string {
		tr, _ := rec.TargetResource()
		return tr.Repository.FullName.OrElse("")
	},
}

func (r *AuditRepo) List(_ context.Context, filter outbound.AuditFilter, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	orderCol := "created_at"
	if page.OrderBy != "" {
		if _, ok := orderKeys[page.OrderBy]; !ok {
			return outbound.PageResult[model.Record]{}, fmt.Errorf("invalid order column: %q", page.OrderBy)
		}
		orderCol = page.OrderBy
	}
	key := orderKeys[orderCol]

	r.mu.RLock()
	matched := make([]model.Record, 0, len(r.records))
	for _, rec := range r.records {
		if matches(rec, filter) {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(matched, func(a, b model.Record) int {
		c := cmp.Or(
			cmp.Compare(key(a), key(b)),
			a.Timestamp().Compare(b.Timestamp()),
			cmp.Compare(a.ID(), b.ID()),
		)
		if page.Desc {
			return -c
		}
		return c
	})

	size := page.Size
	if size <= 0 {
		size = 20
	}
	start := min(max(page.Page, 0)*size, len(matched))
	end := min(start+size, len(matched))

	return outbound.PageResult[model.Record]{
		Items:      matched[start:end],
		TotalCount: int64(len(matched)),
		Page:       page.Page,
		Size:       size,
	}, nil
}

func matches(rec model.Record, f outbound.AuditFilter) bool {
	if f.Kind != "" && string(rec.Kind()) != f.Kind {
		return false
	}
	if f.Actor != "" {
		if a, _ := rec.Actor(); a != f.Actor {
			return false
		}
	}
	if f.Sender != "" {
		se, ok := rec.SourceEvent()
		if !ok || se.SenderIdentity != f.Sender {
			return false
		}
	}
	if f.Repository != "" {
		tr, ok := rec.TargetResource()
		if !ok || tr.Repository.FullName.OrElse("") != f.Repository {
			return false
		}
	}
	if f.Since != nil && rec.Timestamp().Before(*f.Since) {
		return false
	}
	if f.Until != nil && rec.Timestamp().After(*f.Until) {
		return false
	}
	return true
}
