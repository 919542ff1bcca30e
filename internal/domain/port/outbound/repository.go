package outbound

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/jonny/hookaudit/internal/domain/model"
)

var (
	ErrRecordNotFound  = errors.New("audit record not found")
	ErrDuplicateRecord = errors.New("audit record already exists")
)

// OrderColumns are the names every AuditRepository accepts in
// PageRequest.OrderBy. The empty name means created_at.
var OrderColumns = []string{"created_at", "kind", "actor", "sender", "repository"}

// IsOrderColumn reports whether name is one of OrderColumns.
func IsOrderColumn(name string) bool {
	return slices.Contains(OrderColumns, name)
}

type PageRequest struct {
	Page    int
	Size    int
	OrderBy string
	Desc    bool
}

type PageResult[T any] struct {
	Items      []T
	TotalCount int64
	Page       int
	Size       int
}

type AuditFilter struct {
	Kind       string
	Actor      string
	Sender     string
	Repository string
	Since      *time.Time
	Until      *time.Time
}

// AuditRepository stores sealed records. Records are write-once: Save
// rejects records that fail model.Record.Validate and records whose ID is
// already stored.
type AuditRepository interface {
	Save(ctx context.Context, rec model.Record) (string, error)
	GetByID(ctx context.Context, id string) (model.Record, error)
	FindAllSorted(ctx context.Context, page PageRequest) (PageResult[model.Record], error)
	FindByActor(ctx context.Context, actor string, page PageRequest) (PageResult[model.Record], error)
	List(ctx context.Context, filter AuditFilter, page PageRequest) (PageResult[model.Record], error)
}
