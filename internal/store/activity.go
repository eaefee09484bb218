package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
)

// ActivityStore is the append-only audit trail. Append is the only write;
// entries are never updated or deleted.
type ActivityStore interface {
	Append(ctx context.Context, tenant string, e *domain.ActivityEntry) (*domain.ActivityEntry, error)
	Query(ctx context.Context, tenant, objectID string, since int64, limit int) (*domain.ActivityPage, error)
}

// SQLiteActivityStore implements ActivityStore backed by SQLite.
type SQLiteActivityStore struct {
	q DBTX
}

// NewSQLiteActivityStore creates a new SQLiteActivityStore.
func NewSQLiteActivityStore(q DBTX) *SQLiteActivityStore {
	return &SQLiteActivityStore{q: q}
}

const maxActivityLimit = 200

// Append inserts one entry and returns it with its assigned ID and timestamp.
// The autoincrement ID totals-orders entries per object.
func (s *SQLiteActivityStore) Append(ctx context.Context, tenant string, e *domain.ActivityEntry) (*domain.ActivityEntry, error) {
	changes, err := marshalJSON(e.Changes)
	if err != nil {
		return nil, err
	}

	ts := now()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO activity_entries (tenant_id, object_id, object_type, activity_type, changes,
			reason, actor_id, automation_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant, e.ObjectID, e.ObjectType, string(e.Type), changes,
		nullString(e.Reason), nullString(e.ActorID), nullString(e.AutomationID), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("append activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	out := *e
	out.ID = id
	out.CreatedAt = ts
	return &out, nil
}

// Query pages through an object's history oldest-first. since is the ID of
// the last entry already seen; zero starts from the beginning.
func (s *SQLiteActivityStore) Query(ctx context.Context, tenant, objectID string, since int64, limit int) (*domain.ActivityPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	// Fetch one extra to determine if there is a next page.
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, object_id, object_type, activity_type, changes, reason, actor_id, automation_id, created_at
		 FROM activity_entries
		 WHERE tenant_id = ? AND object_id = ? AND id > ?
		 ORDER BY id ASC LIMIT ?`,
		tenant, objectID, since, limit+1,
	)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := &domain.ActivityPage{Cursor: since}
	for rows.Next() {
		var e domain.ActivityEntry
		var activityType string
		var changes, reason, actor, automation sql.NullString
		if err := rows.Scan(&e.ID, &e.ObjectID, &e.ObjectType, &activityType, &changes,
			&reason, &actor, &automation, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		e.Type = domain.ActivityType(activityType)
		e.Reason = fromNull(reason)
		e.ActorID = fromNull(actor)
		e.AutomationID = fromNull(automation)
		if err := unmarshalJSON(changes, &e.Changes); err != nil {
			return nil, err
		}
		page.Entries = append(page.Entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity rows: %w", err)
	}

	if len(page.Entries) > limit {
		page.HasMore = true
		page.Entries = page.Entries[:limit]
	}
	if n := len(page.Entries); n > 0 {
		page.Cursor = page.Entries[n-1].ID
	}
	return page, nil
}
