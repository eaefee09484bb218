package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/recordkit/recordkit/internal/domain"
)

// ObjectRef is the resolved identity of a record: its internal row ID plus
// the type and status needed for policy checks, without the property payload.
type ObjectRef struct {
	RowID    int64
	ObjectID string
	TypeID   string
	TypeName string
	Status   domain.RecordStatus
}

// ObjectStore persists the core object rows. Property payloads live in the
// ValueStore; callers compose the two.
type ObjectStore interface {
	Insert(ctx context.Context, tenant, typeID, objectID, name, ownerID, ts string) (int64, error)
	Resolve(ctx context.Context, tenant, objectID string) (*ObjectRef, error)
	Get(ctx context.Context, tenant, objectID string) (*domain.Record, error)
	List(ctx context.Context, tenant, typeID string, limit int, after string, includeArchived bool) (*domain.RecordPage, []int64, error)
	UpdateCore(ctx context.Context, rowID int64, name, ownerID *string, ts string) error
	SetStatus(ctx context.Context, rowID int64, status domain.RecordStatus, ts string) error
	Search(ctx context.Context, tenant string, schema *domain.Schema, req *domain.SearchRequest) (*domain.SearchResult, []int64, error)
}

// SQLiteObjectStore implements ObjectStore backed by SQLite.
type SQLiteObjectStore struct {
	q DBTX
}

// NewSQLiteObjectStore creates a new SQLiteObjectStore.
func NewSQLiteObjectStore(q DBTX) *SQLiteObjectStore {
	return &SQLiteObjectStore{q: q}
}

const (
	maxSearchLimit = 200
	maxListLimit   = 100
)

// Insert adds the core row for a new record and returns its internal row ID.
func (s *SQLiteObjectStore) Insert(ctx context.Context, tenant, typeID, objectID, name, ownerID, ts string) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO objects (tenant_id, object_id, object_type_id, name, owner_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'active', ?, ?)`,
		tenant, objectID, typeID, nullString(name), nullString(ownerID), ts, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("insert object: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return rowID, nil
}

// Resolve maps a public record ID to its internal identity.
func (s *SQLiteObjectStore) Resolve(ctx context.Context, tenant, objectID string) (*ObjectRef, error) {
	var ref ObjectRef
	var status string
	err := s.q.QueryRowContext(ctx,
		`SELECT o.id, o.object_id, o.object_type_id, ot.internal_name, o.status
		 FROM objects o JOIN object_types ot ON ot.id = o.object_type_id
		 WHERE o.tenant_id = ? AND o.object_id = ?`,
		tenant, objectID,
	).Scan(&ref.RowID, &ref.ObjectID, &ref.TypeID, &ref.TypeName, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "record", ID: objectID}
		}
		return nil, fmt.Errorf("resolve object %s: %w", objectID, err)
	}
	ref.Status = domain.RecordStatus(status)
	return &ref, nil
}

const recordCols = `o.object_id, ot.internal_name, o.name, o.owner_id, o.status,
	o.created_at, o.updated_at, o.archived_at, o.deleted_at`

func scanRecord(row interface{ Scan(...any) error }) (*domain.Record, error) {
	var r domain.Record
	var name, owner, archivedAt, deletedAt sql.NullString
	var status string
	err := row.Scan(&r.ID, &r.Type, &name, &owner, &status,
		&r.CreatedAt, &r.UpdatedAt, &archivedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	r.Name = fromNull(name)
	r.OwnerID = fromNull(owner)
	r.Status = domain.RecordStatus(status)
	r.ArchivedAt = fromNull(archivedAt)
	r.DeletedAt = fromNull(deletedAt)
	return &r, nil
}

// Get reads the core record row. Properties are not populated.
func (s *SQLiteObjectStore) Get(ctx context.Context, tenant, objectID string) (*domain.Record, error) {
	r, err := scanRecord(s.q.QueryRowContext(ctx,
		`SELECT `+recordCols+` FROM objects o
		 JOIN object_types ot ON ot.id = o.object_type_id
		 WHERE o.tenant_id = ? AND o.object_id = ?`,
		tenant, objectID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "record", ID: objectID}
		}
		return nil, fmt.Errorf("get object %s: %w", objectID, err)
	}
	return r, nil
}

// List returns records of one type, paginated by internal row order. The
// cursor is the internal row ID of the last record on the previous page. The
// second return value carries the internal row IDs for property hydration.
func (s *SQLiteObjectStore) List(ctx context.Context, tenant, typeID string, limit int, after string, includeArchived bool) (*domain.RecordPage, []int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT o.id, ` + recordCols + ` FROM objects o
		 JOIN object_types ot ON ot.id = o.object_type_id
		 WHERE o.tenant_id = ? AND o.object_type_id = ? AND o.status != 'deleted'`
	args := []any{tenant, typeID}

	if !includeArchived {
		query += ` AND o.status = 'active'`
	}
	if after != "" {
		cursor, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return nil, nil, &domain.ValidationError{Message: "invalid after cursor"}
		}
		query += ` AND o.id > ?`
		args = append(args, cursor)
	}

	// Fetch one extra to determine if there is a next page.
	query += ` ORDER BY o.id ASC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &domain.RecordPage{}
	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		var r domain.Record
		var name, owner, archivedAt, deletedAt sql.NullString
		var status string
		if err := rows.Scan(&rowID, &r.ID, &r.Type, &name, &owner, &status,
			&r.CreatedAt, &r.UpdatedAt, &archivedAt, &deletedAt); err != nil {
			return nil, nil, fmt.Errorf("scan object: %w", err)
		}
		r.Name = fromNull(name)
		r.OwnerID = fromNull(owner)
		r.Status = domain.RecordStatus(status)
		r.ArchivedAt = fromNull(archivedAt)
		r.DeletedAt = fromNull(deletedAt)
		page.Results = append(page.Results, &r)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows iteration: %w", err)
	}

	if len(page.Results) > limit {
		page.HasMore = true
		page.After = strconv.FormatInt(rowIDs[limit-1], 10)
		page.Results = page.Results[:limit]
		rowIDs = rowIDs[:limit]
	}
	return page, rowIDs, nil
}

// UpdateCore patches the record's name and owner. Nil pointers leave the
// column untouched.
func (s *SQLiteObjectStore) UpdateCore(ctx context.Context, rowID int64, name, ownerID *string, ts string) error {
	sets := []string{"updated_at = ?"}
	args := []any{ts}
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, nullString(*name))
	}
	if ownerID != nil {
		sets = append(sets, "owner_id = ?")
		args = append(args, nullString(*ownerID))
	}
	args = append(args, rowID)

	_, err := s.q.ExecContext(ctx,
		`UPDATE objects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("update object: %w", err)
	}
	return nil
}

// SetStatus moves the record between active, archived and deleted, keeping
// the archived_at/deleted_at timestamps in step.
func (s *SQLiteObjectStore) SetStatus(ctx context.Context, rowID int64, status domain.RecordStatus, ts string) error {
	var query string
	switch status {
	case domain.StatusActive:
		query = `UPDATE objects SET status = 'active', archived_at = NULL, deleted_at = NULL, updated_at = ? WHERE id = ?`
	case domain.StatusArchived:
		query = `UPDATE objects SET status = 'archived', archived_at = ?, updated_at = ? WHERE id = ?`
	case domain.StatusDeleted:
		query = `UPDATE objects SET status = 'deleted', deleted_at = ?, updated_at = ? WHERE id = ?`
	default:
		return &domain.ValidationError{Message: fmt.Sprintf("unknown status %q", status)}
	}

	var err error
	if status == domain.StatusActive {
		_, err = s.q.ExecContext(ctx, query, ts, rowID)
	} else {
		_, err = s.q.ExecContext(ctx, query, ts, ts, rowID)
	}
	if err != nil {
		return fmt.Errorf("set object status: %w", err)
	}
	return nil
}

// Search filters records of one type. All filters AND together; each becomes
// an EXISTS probe against the property's typed slot. It returns the matching
// page plus the internal row IDs for property hydration.
func (s *SQLiteObjectStore) Search(ctx context.Context, tenant string, schema *domain.Schema, req *domain.SearchRequest) (*domain.SearchResult, []int64, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	offset := 0
	if req.After != "" {
		parsed, err := strconv.Atoi(req.After)
		if err != nil || parsed < 0 {
			return nil, nil, &domain.ValidationError{Message: "invalid after cursor"}
		}
		offset = parsed
	}

	where := []string{"o.tenant_id = ?", "o.object_type_id = ?", "o.status != 'deleted'"}
	args := []any{tenant, schema.Type.ID}
	if !req.IncludeArchived {
		where = append(where, "o.status = 'active'")
	}

	for i := range req.Filters {
		clause, filterArgs, err := filterClause(schema, &req.Filters[i])
		if err != nil {
			return nil, nil, err
		}
		where = append(where, clause)
		args = append(args, filterArgs...)
	}

	base := ` FROM objects o WHERE ` + strings.Join(where, " AND ")

	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*)`+base, args...).Scan(&total); err != nil {
		return nil, nil, fmt.Errorf("search count: %w", err)
	}

	query := `SELECT o.id, ` + recordCols + strings.Replace(base, " FROM objects o",
		" FROM objects o JOIN object_types ot ON ot.id = o.object_type_id", 1) +
		` ORDER BY o.id ASC LIMIT ? OFFSET ?`
	queryArgs := append(append([]any{}, args...), limit, offset)

	rows, err := s.q.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, nil, fmt.Errorf("search query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := &domain.SearchResult{Total: total, Results: []*domain.Record{}}
	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		var r domain.Record
		var name, owner, archivedAt, deletedAt sql.NullString
		var status string
		if err := rows.Scan(&rowID, &r.ID, &r.Type, &name, &owner, &status,
			&r.CreatedAt, &r.UpdatedAt, &archivedAt, &deletedAt); err != nil {
			return nil, nil, fmt.Errorf("scan search result: %w", err)
		}
		r.Name = fromNull(name)
		r.OwnerID = fromNull(owner)
		r.Status = domain.RecordStatus(status)
		r.ArchivedAt = fromNull(archivedAt)
		r.DeletedAt = fromNull(deletedAt)
		result.Results = append(result.Results, &r)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("search rows: %w", err)
	}

	if offset+len(result.Results) < total {
		result.HasMore = true
		result.After = strconv.Itoa(offset + limit)
	}
	return result, rowIDs, nil
}

// filterClause renders one search filter as an EXISTS probe on the typed
// slot column of the property.
func filterClause(schema *domain.Schema, f *domain.Filter) (string, []any, error) {
	def := schema.Property(f.Property)
	if def == nil {
		return "", nil, &domain.UnknownPropertyError{Property: f.Property}
	}
	if !domain.ValidFilterOperator(f.Operator) {
		return "", nil, &domain.ValidationError{Message: fmt.Sprintf("unknown operator %q", f.Operator)}
	}

	col := slotColumn(def.DataType)
	probe := `SELECT 1 FROM property_values pv WHERE pv.object_id = o.id AND pv.property_definition_id = ?`

	encode := func(raw any) (any, error) {
		v, err := domain.Coerce(def, raw)
		if err != nil {
			return nil, err
		}
		return encodeSlot(def, v)
	}

	switch f.Operator {
	case domain.FilterEq, domain.FilterNe:
		slot, err := encode(f.Value)
		if err != nil {
			return "", nil, err
		}
		clause := `EXISTS (` + probe + ` AND pv.` + col + ` = ?)`
		if f.Operator == domain.FilterNe {
			clause = `NOT ` + clause
		}
		return clause, []any{def.ID, slot}, nil

	case domain.FilterContains:
		needle, ok := f.Value.(string)
		if !ok {
			return "", nil, &domain.ValidationError{Message: fmt.Sprintf("contains filter on %q requires a string value", f.Property)}
		}
		switch def.DataType {
		case domain.TypeString, domain.TypeSelect:
			return `EXISTS (` + probe + ` AND pv.value_text LIKE ? ESCAPE '\')`,
				[]any{def.ID, "%" + escapeLike(needle) + "%"}, nil
		case domain.TypeMultiSelect:
			// Match a whole element inside the JSON array.
			return `EXISTS (` + probe + ` AND pv.value_json LIKE ? ESCAPE '\')`,
				[]any{def.ID, `%"` + escapeLike(needle) + `"%`}, nil
		}
		return "", nil, &domain.ValidationError{Message: fmt.Sprintf("contains is not supported for %s properties", def.DataType)}

	case domain.FilterGt, domain.FilterLt:
		if def.DataType != domain.TypeNumber && def.DataType != domain.TypeDate {
			return "", nil, &domain.ValidationError{Message: fmt.Sprintf("%s is not supported for %s properties", f.Operator, def.DataType)}
		}
		slot, err := encode(f.Value)
		if err != nil {
			return "", nil, err
		}
		op := ">"
		if f.Operator == domain.FilterLt {
			op = "<"
		}
		return `EXISTS (` + probe + ` AND pv.` + col + ` ` + op + ` ?)`, []any{def.ID, slot}, nil

	case domain.FilterIn:
		if len(f.Values) == 0 {
			return "", nil, &domain.ValidationError{Message: fmt.Sprintf("in filter on %q requires values", f.Property)}
		}
		args := []any{def.ID}
		placeholders := make([]string, 0, len(f.Values))
		for _, raw := range f.Values {
			slot, err := encode(raw)
			if err != nil {
				return "", nil, err
			}
			placeholders = append(placeholders, "?")
			args = append(args, slot)
		}
		return `EXISTS (` + probe + ` AND pv.` + col + ` IN (` + strings.Join(placeholders, ",") + `))`, args, nil
	}
	return "", nil, &domain.ValidationError{Message: fmt.Sprintf("unknown operator %q", f.Operator)}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
