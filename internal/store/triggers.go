package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/recordkit/recordkit/internal/domain"
)

// TriggerStore persists workflow trigger definitions and their run log.
type TriggerStore interface {
	Create(ctx context.Context, tenant string, t *domain.Trigger) (*domain.Trigger, error)
	Get(ctx context.Context, tenant, id string) (*domain.Trigger, error)
	List(ctx context.Context, tenant string) ([]*domain.Trigger, error)
	Match(ctx context.Context, tenant, objectType, property string) ([]*domain.Trigger, error)
	SetEnabled(ctx context.Context, tenant, id string, enabled bool) error
	Delete(ctx context.Context, tenant, id string) error
	InsertRun(ctx context.Context, tenant string, run *domain.TriggerRun) (*domain.TriggerRun, error)
	UpdateRun(ctx context.Context, id string, status domain.RunStatus, attempts int, errMsg string) error
	ListRuns(ctx context.Context, tenant, triggerID string, limit int) ([]*domain.TriggerRun, error)
}

// SQLiteTriggerStore implements TriggerStore backed by SQLite.
type SQLiteTriggerStore struct {
	q DBTX
}

// NewSQLiteTriggerStore creates a new SQLiteTriggerStore.
func NewSQLiteTriggerStore(q DBTX) *SQLiteTriggerStore {
	return &SQLiteTriggerStore{q: q}
}

// Create validates and stores a trigger definition.
func (s *SQLiteTriggerStore) Create(ctx context.Context, tenant string, t *domain.Trigger) (*domain.Trigger, error) {
	if t.ObjectType == "" {
		return nil, &domain.ValidationError{Message: "trigger objectType is required"}
	}
	if t.Property == "" {
		return nil, &domain.ValidationError{Message: "trigger property is required"}
	}
	if !domain.ValidTriggerCondition(t.Condition) {
		return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown trigger condition %q", t.Condition)}
	}
	if len(t.Actions) == 0 {
		return nil, &domain.ValidationError{Message: "trigger requires at least one action"}
	}
	for _, a := range t.Actions {
		switch a.Type {
		case domain.ActionWebhook, domain.ActionCreateTask, domain.ActionSendNotification:
		default:
			return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown action type %q", a.Type)}
		}
	}

	actions, err := marshalJSON(t.Actions)
	if err != nil {
		return nil, err
	}

	ts := now()
	id := uuid.NewString()
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO workflow_triggers (id, tenant_id, name, object_type, property, trigger_on,
			trigger_value, actions, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenant, nullString(t.Name), t.ObjectType, t.Property, string(t.Condition),
		nullString(t.Value), actions, t.Enabled, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert trigger: %w", err)
	}

	return s.Get(ctx, tenant, id)
}

const triggerCols = `id, name, object_type, property, trigger_on, trigger_value, actions, enabled, created_at, updated_at`

func scanTrigger(row interface{ Scan(...any) error }) (*domain.Trigger, error) {
	var t domain.Trigger
	var name, value, actions sql.NullString
	var condition string
	err := row.Scan(&t.ID, &name, &t.ObjectType, &t.Property, &condition, &value,
		&actions, &t.Enabled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Name = fromNull(name)
	t.Condition = domain.TriggerCondition(condition)
	t.Value = fromNull(value)
	if err := unmarshalJSON(actions, &t.Actions); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get fetches one trigger by ID.
func (s *SQLiteTriggerStore) Get(ctx context.Context, tenant, id string) (*domain.Trigger, error) {
	t, err := scanTrigger(s.q.QueryRowContext(ctx,
		`SELECT `+triggerCols+` FROM workflow_triggers WHERE tenant_id = ? AND id = ?`, tenant, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "trigger", ID: id}
		}
		return nil, fmt.Errorf("get trigger: %w", err)
	}
	return t, nil
}

func (s *SQLiteTriggerStore) listQuery(ctx context.Context, query string, args ...any) ([]*domain.Trigger, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var triggers []*domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

// List returns all triggers of the tenant.
func (s *SQLiteTriggerStore) List(ctx context.Context, tenant string) ([]*domain.Trigger, error) {
	return s.listQuery(ctx,
		`SELECT `+triggerCols+` FROM workflow_triggers WHERE tenant_id = ? ORDER BY created_at, id`,
		tenant,
	)
}

// Match returns the enabled triggers watching the given type and property.
func (s *SQLiteTriggerStore) Match(ctx context.Context, tenant, objectType, property string) ([]*domain.Trigger, error) {
	return s.listQuery(ctx,
		`SELECT `+triggerCols+` FROM workflow_triggers
		 WHERE tenant_id = ? AND object_type = ? AND property = ? AND enabled = TRUE
		 ORDER BY created_at, id`,
		tenant, objectType, property,
	)
}

// SetEnabled switches a trigger on or off.
func (s *SQLiteTriggerStore) SetEnabled(ctx context.Context, tenant, id string, enabled bool) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE workflow_triggers SET enabled = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		enabled, now(), tenant, id,
	)
	if err != nil {
		return fmt.Errorf("update trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "trigger", ID: id}
	}
	return nil
}

// Delete removes a trigger definition. Its run log stays.
func (s *SQLiteTriggerStore) Delete(ctx context.Context, tenant, id string) error {
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM workflow_triggers WHERE tenant_id = ? AND id = ?`, tenant, id,
	)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "trigger", ID: id}
	}
	return nil
}

// InsertRun records a new dispatch attempt in pending state.
func (s *SQLiteTriggerStore) InsertRun(ctx context.Context, tenant string, run *domain.TriggerRun) (*domain.TriggerRun, error) {
	ts := now()
	id := uuid.NewString()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, tenant_id, trigger_id, object_id, activity_id, action,
			status, attempts, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?)`,
		id, tenant, run.TriggerID, run.ObjectID, run.ActivityID, string(run.Action), ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workflow run: %w", err)
	}

	out := *run
	out.ID = id
	out.Status = domain.RunPending
	out.CreatedAt = ts
	out.UpdatedAt = ts
	return &out, nil
}

// UpdateRun records the outcome of a dispatch attempt.
func (s *SQLiteTriggerStore) UpdateRun(ctx context.Context, id string, status domain.RunStatus, attempts int, errMsg string) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE workflow_runs SET status = ?, attempts = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), attempts, nullString(errMsg), now(), id,
	)
	if err != nil {
		return fmt.Errorf("update workflow run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs of a trigger, newest first.
func (s *SQLiteTriggerStore) ListRuns(ctx context.Context, tenant, triggerID string, limit int) ([]*domain.TriggerRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, trigger_id, object_id, activity_id, action, status, attempts, error, created_at, updated_at
		 FROM workflow_runs WHERE tenant_id = ? AND trigger_id = ?
		 ORDER BY created_at DESC, id LIMIT ?`,
		tenant, triggerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list workflow runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*domain.TriggerRun
	for rows.Next() {
		var r domain.TriggerRun
		var action, status string
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.TriggerID, &r.ObjectID, &r.ActivityID, &action,
			&status, &r.Attempts, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow run: %w", err)
		}
		r.Action = domain.ActionType(action)
		r.Status = domain.RunStatus(status)
		r.Error = fromNull(errMsg)
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}
