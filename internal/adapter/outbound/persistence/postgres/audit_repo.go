package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation pq.ErrorCode = "23505"

// AuditRepo implements outbound.AuditRepository using PostgreSQL.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo backed by the given store.
func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{db: store.DB}
}

const auditColumns = `id, kind, actor, created_at, raw_source_event, raw_target_resource, raw_outcome`

// Save inserts a sealed record. Incomplete records and reused IDs are rejected.
func (r *AuditRepo) Save(ctx context.Context, rec model.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", err
	}
	snap := rec.Snapshot()

	rawEvent, err := json.Marshal(snap.RawSourceEvent)
	if err != nil {
		return "", fmt.Errorf("marshaling raw source event: %w", err)
	}
	rawResource, err := json.Marshal(snap.RawTargetResource)
	if err != nil {
		return "", fmt.Errorf("marshaling raw target resource: %w", err)
	}
	rawOutcome, err := json.Marshal(snap.RawOutcome)
	if err != nil {
		return "", fmt.Errorf("marshaling raw outcome: %w", err)
	}

	var sender, action, repository string
	if se, ok := rec.SourceEvent(); ok {
		sender = se.SenderIdentity
		action = se.Action.OrElse("")
	}
	if tr, ok := rec.TargetResource(); ok {
		repository = tr.Repository.FullName.OrElse("")
	}

	const q = `INSERT INTO audit_records
		(id, kind, actor, sender, action, repository, created_at, raw_source_event, raw_target_resource, raw_outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8::jsonb,$9::jsonb,$10::jsonb)`

	_, err = r.db.ExecContext(ctx, q,
		snap.ID, string(snap.Kind), snap.Actor,
		sender, action, repository,
		snap.Timestamp.UTC(),
		string(rawEvent), string(rawResource), string(rawOutcome),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", fmt.Errorf("%w: %s", outbound.ErrDuplicateRecord, snap.ID)
		}
		return "", fmt.Errorf("inserting audit record: %w", err)
	}
	return snap.ID, nil
}

// GetByID returns the record with the given ID.
func (r *AuditRepo) GetByID(ctx context.Context, id string) (model.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, fmt.Errorf("%w: %s", outbound.ErrRecordNotFound, id)
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("getting audit record: %w", err)
	}
	return rec, nil
}

// FindAllSorted returns every record ordered by creation time.
func (r *AuditRepo) FindAllSorted(ctx context.Context, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return r.List(ctx, outbound.AuditFilter{}, page)
}

// FindByActor returns the records attributed to actor ordered by creation time.
func (r *AuditRepo) FindByActor(ctx context.Context, actor string, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	return r.List(ctx, outbound.AuditFilter{Actor: actor}, page)
}

// List returns a paginated, filtered list of audit records.
func (r *AuditRepo) List(ctx context.Context, filter outbound.AuditFilter, page outbound.PageRequest) (outbound.PageResult[model.Record], error) {
	orderCol := "created_at"
	if page.OrderBy != "" {
		if !outbound.IsOrderColumn(page.OrderBy) {
			return outbound.PageResult[model.Record]{}, fmt.Errorf("invalid order column: %q", page.OrderBy)
		}
		orderCol = page.OrderBy
	}

	where, args := buildWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records"+where, args...).Scan(&total); err != nil {
		return outbound.PageResult[model.Record]{}, fmt.Errorf("counting audit records: %w", err)
	}

	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}
	size := page.Size
	if size <= 0 {
		size = 20
	}
	offset := max(page.Page, 0) * size

	n := len(args)
	dataQ := fmt.Sprintf(`SELECT %s FROM audit_records%s ORDER BY %s %s, created_at %s, id %s LIMIT $%d OFFSET $%d`,
		auditColumns, where, orderCol, dir, dir, dir, n+1, n+2)

	rows, err := r.db.QueryContext(ctx, dataQ, append(args, size, offset)...)
	if err != nil {
		return outbound.PageResult[model.Record]{}, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var items []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return outbound.PageResult[model.Record]{}, fmt.Errorf("scanning audit record: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return outbound.PageResult[model.Record]{}, fmt.Errorf("iterating audit records: %w", err)
	}

	return outbound.PageResult[model.Record]{
		Items:      items,
		TotalCount: total,
		Page:       page.Page,
		Size:       size,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (model.Record, error) {
	var (
		snap                             model.Snapshot
		kind                             string
		createdAt                        time.Time
		rawEvent, rawResource, rawResult []byte
	)
	if err := s.Scan(&snap.ID, &kind, &snap.Actor, &createdAt, &rawEvent, &rawResource, &rawResult); err != nil {
		return model.Record{}, err
	}
	snap.Kind = model.Kind(kind)
	snap.Timestamp = createdAt

	var err error
	if snap.RawSourceEvent, err = model.DecodeStoredPayload(rawEvent); err != nil {
		return model.Record{}, fmt.Errorf("decoding raw source event: %w", err)
	}
	if snap.RawTargetResource, err = model.DecodeStoredPayload(rawResource); err != nil {
		return model.Record{}, fmt.Errorf("decoding raw target resource: %w", err)
	}
	if len(rawResult) > 0 {
		if snap.RawOutcome, err = model.DecodeDocument(rawResult); err != nil {
			return model.Record{}, fmt.Errorf("decoding raw outcome: %w", err)
		}
	}
	return model.Restore(snap)
}

func buildWhere(f outbound.AuditFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(expr string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(expr, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Sender != "" {
		add("sender = $%d", f.Sender)
	}
	if f.Repository != "" {
		add("repository = $%d", f.Repository)
	}
	if f.Since != nil {
		add("created_at >= $%d", f.Since.UTC())
	}
	if f.Until != nil {
		add("created_at <= $%d", f.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
