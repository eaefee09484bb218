package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
)

// RelationshipStore persists typed links between records. Rows reference
// public object IDs without foreign keys, so links outlive soft-deleted
// records until explicitly removed.
type RelationshipStore interface {
	Insert(ctx context.Context, tenant string, rel *domain.Relationship) (*domain.Relationship, error)
	Delete(ctx context.Context, tenant, sourceID, targetID, name string) (bool, error)
	Exists(ctx context.Context, tenant, sourceID, targetID, name string) (bool, error)
	HasAny(ctx context.Context, tenant, sourceID, name string) (bool, error)
	ListFrom(ctx context.Context, tenant, sourceID, name string) ([]*domain.Relationship, error)
	ListTo(ctx context.Context, tenant, targetID, inverseName string) ([]*domain.Relationship, error)
}

// SQLiteRelationshipStore implements RelationshipStore backed by SQLite.
type SQLiteRelationshipStore struct {
	q DBTX
}

// NewSQLiteRelationshipStore creates a new SQLiteRelationshipStore.
func NewSQLiteRelationshipStore(q DBTX) *SQLiteRelationshipStore {
	return &SQLiteRelationshipStore{q: q}
}

// Insert adds one relationship row. The autoincrement ID fixes the traversal
// order.
func (s *SQLiteRelationshipStore) Insert(ctx context.Context, tenant string, rel *domain.Relationship) (*domain.Relationship, error) {
	ts := now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO relationships (tenant_id, source_id, target_id, name, inverse_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tenant, rel.SourceID, rel.TargetID, rel.Name, nullString(rel.InverseName), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	out := *rel
	out.ID = id
	out.CreatedAt = ts
	return &out, nil
}

// Delete removes the named link between two records. It reports whether a row
// was actually removed, making repeat calls a no-op.
func (s *SQLiteRelationshipStore) Delete(ctx context.Context, tenant, sourceID, targetID, name string) (bool, error) {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM relationships WHERE tenant_id = ? AND source_id = ? AND target_id = ? AND name = ?`,
		tenant, sourceID, targetID, name,
	)
	if err != nil {
		return false, fmt.Errorf("delete relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether the exact (source, target, name) link is present.
func (s *SQLiteRelationshipStore) Exists(ctx context.Context, tenant, sourceID, targetID, name string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM relationships WHERE tenant_id = ? AND source_id = ? AND target_id = ? AND name = ?`,
		tenant, sourceID, targetID, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check relationship: %w", err)
	}
	return true, nil
}

// HasAny reports whether the source has any link of the given name, for
// single-cardinality association checks.
func (s *SQLiteRelationshipStore) HasAny(ctx context.Context, tenant, sourceID, name string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM relationships WHERE tenant_id = ? AND source_id = ? AND name = ? LIMIT 1`,
		tenant, sourceID, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check relationship name: %w", err)
	}
	return true, nil
}

func (s *SQLiteRelationshipStore) list(ctx context.Context, query string, args ...any) ([]*domain.Relationship, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rels []*domain.Relationship
	for rows.Next() {
		var r domain.Relationship
		var inverse sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Name, &inverse, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.InverseName = fromNull(inverse)
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

// ListFrom returns the source's links of the given name in insertion order.
func (s *SQLiteRelationshipStore) ListFrom(ctx context.Context, tenant, sourceID, name string) ([]*domain.Relationship, error) {
	return s.list(ctx,
		`SELECT id, source_id, target_id, name, inverse_name, created_at
		 FROM relationships WHERE tenant_id = ? AND source_id = ? AND name = ? ORDER BY id ASC`,
		tenant, sourceID, name,
	)
}

// ListTo returns links pointing at the target whose inverse name matches, in
// insertion order, for symmetric traversal.
func (s *SQLiteRelationshipStore) ListTo(ctx context.Context, tenant, targetID, inverseName string) ([]*domain.Relationship, error) {
	return s.list(ctx,
		`SELECT id, source_id, target_id, name, inverse_name, created_at
		 FROM relationships WHERE tenant_id = ? AND target_id = ? AND inverse_name = ? ORDER BY id ASC`,
		tenant, targetID, inverseName,
	)
}
