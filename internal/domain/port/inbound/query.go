package inbound

import (
	"context"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// AuditQueryPort reads persisted records for the HTTP API and chat commands.
type AuditQueryPort interface {
	Get(ctx context.Context, id string) (model.Record, error)
	List(ctx context.Context, filter outbound.AuditFilter, page outbound.PageRequest) (outbound.PageResult[model.Record], error)
	ByActor(ctx context.Context, actor string, page outbound.PageRequest) (outbound.PageResult[model.Record], error)
	Recent(ctx context.Context, limit int) ([]model.Record, error)
}
