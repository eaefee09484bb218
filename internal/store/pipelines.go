package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/recordkit/recordkit/internal/domain"
)

// PipelineStore persists pipeline definitions and their stages.
type PipelineStore interface {
	Create(ctx context.Context, tenant string, p *domain.Pipeline) (*domain.Pipeline, error)
	Get(ctx context.Context, tenant, name string) (*domain.Pipeline, error)
	GetForType(ctx context.Context, tenant, objectType string) (*domain.Pipeline, error)
	List(ctx context.Context, tenant string) ([]*domain.Pipeline, error)
	SetSkipGates(ctx context.Context, tenant, name string, enforce bool) error
}

// SQLitePipelineStore implements PipelineStore backed by SQLite.
type SQLitePipelineStore struct {
	q DBTX
}

// NewSQLitePipelineStore creates a new SQLitePipelineStore.
func NewSQLitePipelineStore(q DBTX) *SQLitePipelineStore {
	return &SQLitePipelineStore{q: q}
}

// Create validates and inserts a pipeline with its stages. Stage order is
// normalized by position before validation.
func (s *SQLitePipelineStore) Create(ctx context.Context, tenant string, p *domain.Pipeline) (*domain.Pipeline, error) {
	sort.Slice(p.Stages, func(i, j int) bool { return p.Stages[i].Position < p.Stages[j].Position })
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var exists int
	err := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM pipelines WHERE tenant_id = ? AND name = ?`, tenant, p.Name,
	).Scan(&exists)
	if err == nil {
		return nil, &domain.ConflictError{Message: fmt.Sprintf("pipeline %q already exists", p.Name)}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check pipeline exists: %w", err)
	}

	ts := now()
	id := uuid.NewString()
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO pipelines (id, tenant_id, name, label, object_type, enforce_skip_gates, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenant, p.Name, p.Label, p.ObjectType, p.EnforceSkipGates, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pipeline: %w", err)
	}

	for i := range p.Stages {
		st := &p.Stages[i]
		required, err := marshalJSON(st.RequiredFields)
		if err != nil {
			return nil, err
		}
		_, err = s.q.ExecContext(ctx,
			`INSERT INTO pipeline_stages (id, pipeline_id, name, label, position, probability,
				stage_type, required_fields, target_days, max_days)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), id, st.Name, st.Label, st.Position, st.Probability,
			string(st.Type), required, st.TargetDays, st.MaxDays,
		)
		if err != nil {
			return nil, fmt.Errorf("insert stage %q: %w", st.Name, err)
		}
	}

	return s.Get(ctx, tenant, p.Name)
}

func (s *SQLitePipelineStore) loadStages(ctx context.Context, pipelineID string) ([]domain.Stage, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, label, position, probability, stage_type, required_fields, target_days, max_days
		 FROM pipeline_stages WHERE pipeline_id = ? ORDER BY position ASC`,
		pipelineID,
	)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []domain.Stage
	for rows.Next() {
		var st domain.Stage
		var stageType string
		var required sql.NullString
		if err := rows.Scan(&st.ID, &st.Name, &st.Label, &st.Position, &st.Probability,
			&stageType, &required, &st.TargetDays, &st.MaxDays); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Type = domain.StageType(stageType)
		if err := unmarshalJSON(required, &st.RequiredFields); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

const pipelineCols = `id, name, label, object_type, enforce_skip_gates, created_at, updated_at`

func (s *SQLitePipelineStore) scanPipeline(ctx context.Context, row *sql.Row) (*domain.Pipeline, error) {
	var p domain.Pipeline
	if err := row.Scan(&p.ID, &p.Name, &p.Label, &p.ObjectType, &p.EnforceSkipGates,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	stages, err := s.loadStages(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Stages = stages
	return &p, nil
}

// Get fetches a pipeline with its stages by name or ID.
func (s *SQLitePipelineStore) Get(ctx context.Context, tenant, name string) (*domain.Pipeline, error) {
	p, err := s.scanPipeline(ctx, s.q.QueryRowContext(ctx,
		`SELECT `+pipelineCols+` FROM pipelines WHERE tenant_id = ? AND (name = ? OR id = ?)`,
		tenant, name, name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "pipeline", ID: name}
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	return p, nil
}

// GetForType returns the pipeline records of the given object type move
// through. The earliest-defined pipeline wins when a type has several.
func (s *SQLitePipelineStore) GetForType(ctx context.Context, tenant, objectType string) (*domain.Pipeline, error) {
	p, err := s.scanPipeline(ctx, s.q.QueryRowContext(ctx,
		`SELECT `+pipelineCols+` FROM pipelines WHERE tenant_id = ? AND object_type = ?
		 ORDER BY created_at ASC LIMIT 1`,
		tenant, objectType,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Kind: "pipeline", ID: objectType}
		}
		return nil, fmt.Errorf("get pipeline for type: %w", err)
	}
	return p, nil
}

// List returns all pipelines of the tenant with stages loaded.
func (s *SQLitePipelineStore) List(ctx context.Context, tenant string) ([]*domain.Pipeline, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+pipelineCols+` FROM pipelines WHERE tenant_id = ? ORDER BY created_at, name`,
		tenant,
	)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pipelines []*domain.Pipeline
	for rows.Next() {
		var p domain.Pipeline
		if err := rows.Scan(&p.ID, &p.Name, &p.Label, &p.ObjectType, &p.EnforceSkipGates,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		pipelines = append(pipelines, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline rows: %w", err)
	}

	for _, p := range pipelines {
		stages, err := s.loadStages(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Stages = stages
	}
	return pipelines, nil
}

// SetSkipGates flips the skip-gate enforcement flag on a pipeline.
func (s *SQLitePipelineStore) SetSkipGates(ctx context.Context, tenant, name string, enforce bool) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE pipelines SET enforce_skip_gates = ?, updated_at = ? WHERE tenant_id = ? AND (name = ? OR id = ?)`,
		enforce, now(), tenant, name, name,
	)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.NotFoundError{Kind: "pipeline", ID: name}
	}
	return nil
}
