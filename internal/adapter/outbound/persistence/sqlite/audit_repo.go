package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/jonny/hookaudit/internal/domain/model"
	"github.com/jonny/hookaudit/internal/domain/port/outbound"
)

// AuditRepo implements outbound.AuditRepository using SQLite.
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

	sender, action, repository := indexedFields(rec)

	const q = `INSERT INTO audit_records
		(id, kind, actor, sender, action, repository, created_at, raw_source_event, raw_target_resource, raw_outcome)
		VALUES (?,?,?,?,?,?,?,?,?,?)`

	_, err = r.db.ExecContext(ctx, q,
		snap.ID, string(snap.Kind), snap.Actor,
		sender, action, repository,
		snap.Timestamp.UTC(),
		string(rawEvent), string(rawResource), string(rawOutcome),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return "", fmt.Errorf("%w: %s", outbound.ErrDuplicateRecord, snap.ID)
		}
		return "", fmt.Errorf("inserting audit record: %w", err)
	}
	return snap.ID, nil
}

// GetByID returns the record with the given ID.
func (r *AuditRepo) GetByID(ctx context.Context, id string) (model.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_records WHERE id = ?`, id)
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
	where, args := buildAuditWhere(filter)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records"+where, args...).Scan(&total); err != nil {
		return outbound.PageResult[model.Record]{}, fmt.Errorf("counting audit records: %w", err)
	}

	orderCol := "created_at"
	if page.OrderBy != "" {
		// Only whitelisted names reach the ORDER BY clause.
		if !outbound.IsOrderColumn(page.OrderBy) {
			return outbound.PageResult[model.Record]{}, fmt.Errorf("invalid order column: %q", page.OrderBy)
		}
		orderCol = page.OrderBy
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

	// created_at and id break ties so paging is stable.
	dataQ := fmt.Sprintf(`SELECT %s FROM audit_records%s ORDER BY %s %s, created_at %s, id %s LIMIT ? OFFSET ?`,
		auditColumns, where, orderCol, dir, dir, dir)

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

// --- helpers ---

type auditScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s auditScanner) (model.Record, error) {
	var (
		snap                             model.Snapshot
		kind                             string
		createdAt                        time.Time
		rawEvent, rawResource, rawResult string
	)
	err := s.Scan(&snap.ID, &kind, &snap.Actor, &createdAt, &rawEvent, &rawResource, &rawResult)
	if err != nil {
		return model.Record{}, err
	}
	snap.Kind = model.Kind(kind)
	snap.Timestamp = createdAt

	if snap.RawSourceEvent, err = model.DecodeStoredPayload([]byte(rawEvent)); err != nil {
		return model.Record{}, fmt.Errorf("decoding raw source event: %w", err)
	}
	if snap.RawTargetResource, err = model.DecodeStoredPayload([]byte(rawResource)); err != nil {
		return model.Record{}, fmt.Errorf("decoding raw target resource: %w", err)
	}
	if snap.RawOutcome, err = model.DecodeDocument([]byte(rawResult)); err != nil {
		return model.Record{}, fmt.Errorf("decoding raw outcome: %w", err)
	}
	return model.Restore(snap)
}

// indexedFields returns the denormalized columns used for filtering.
func indexedFields(rec model.Record) (sender, action, repository string) {
	if se, ok := rec.SourceEvent(); ok {
		sender = se.SenderIdentity
		action = se.Action.OrElse("")
	}
	if tr, ok := rec.TargetResource(); ok {
		repository = tr.Repository.FullName.OrElse("")
	}
	return sender, action, repository
}

func buildAuditWhere(f outbound.AuditFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.Actor != "" {
		clauses = append(clauses, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Sender != "" {
		clauses = append(clauses, "sender = ?")
		args = append(args, f.Sender)
	}
	if f.Repository != "" {
		clauses = append(clauses, "repository = ?")
		args = append(args, f.Repository)
	}
	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, f.Until.UTC())
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
