package engine

import (
	"context"
	"fmt"

	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/store"
)

// DefinePipeline creates a pipeline for an existing object type.
func (e *Engine) DefinePipeline(ctx context.Context, tenant string, p *domain.Pipeline) (*domain.Pipeline, error) {
	if _, err := e.store.Registry.GetType(ctx, tenant, p.ObjectType); err != nil {
		return nil, domain.Internal("define pipeline", err)
	}
	created, err := e.store.Pipelines.Create(ctx, tenant, p)
	if err != nil {
		return nil, domain.Internal("define pipeline", err)
	}
	return created, nil
}

// GetPipeline looks up a pipeline by name.
func (e *Engine) GetPipeline(ctx context.Context, tenant, name string) (*domain.Pipeline, error) {
	p, err := e.store.Pipelines.Get(ctx, tenant, name)
	if err != nil {
		return nil, domain.Internal("get pipeline", err)
	}
	return p, nil
}

// ListPipelines returns all pipelines of the tenant.
func (e *Engine) ListPipelines(ctx context.Context, tenant string) ([]*domain.Pipeline, error) {
	ps, err := e.store.Pipelines.List(ctx, tenant)
	if err != nil {
		return nil, domain.Internal("list pipelines", err)
	}
	return ps, nil
}

// SetSkipGates toggles skip-gate enforcement on a pipeline: when on, forward
// transitions must also satisfy the required fields of every skipped stage.
func (e *Engine) SetSkipGates(ctx context.Context, tenant, name string, enforce bool) error {
	if err := e.store.Pipelines.SetSkipGates(ctx, tenant, name, enforce); err != nil {
		return domain.Internal("set skip gates", err)
	}
	return nil
}

// TransitionOptions carry the caller's overrides for a stage transition.
type TransitionOptions struct {
	// Probability overrides the target stage's configured probability.
	Probability *float64
	// Reason replaces the derived progressed/moved-back change reason.
	Reason string
}

// Transition moves a record to another stage of its type's pipeline. The
// target stage's required fields must be set on the record; with skip-gate
// enforcement on, a forward transition also checks every skipped open stage.
// Probability is set from the stage unless overridden. Reaching a won or lost
// stage appends the matching deal_won/deal_lost entry; a terminal current
// stage rejects all further transitions until the record is reopened.
func (e *Engine) Transition(ctx context.Context, tenant, actor, objectID, stage string, opts *TransitionOptions) (*domain.Record, error) {
	if opts == nil {
		opts = &TransitionOptions{}
	}

	unlock := e.locks.lock(lockKey(tenant, objectID))
	defer unlock()

	ref, err := e.resolveLive(ctx, tenant, objectID)
	if err != nil {
		return nil, err
	}
	pipeline, err := e.store.Pipelines.GetForType(ctx, tenant, ref.TypeName)
	if err != nil {
		return nil, domain.Internal("transition record", err)
	}
	target := pipeline.StageByName(stage)
	if target == nil {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("pipeline %q has no stage %q", pipeline.Name, stage),
		}
	}

	schema, stageDef, probDef, err := e.pipelineSchema(ctx, tenant, ref.TypeName)
	if err != nil {
		return nil, err
	}

	currentName, cur, err := e.currentStage(ctx, ref, pipeline, stageDef)
	if err != nil {
		return nil, err
	}
	if cur != nil && cur.Terminal() {
		return nil, &domain.StageGateError{Stage: cur.Name, Terminal: true}
	}
	if cur != nil && cur.Name == target.Name {
		return e.GetRecord(ctx, tenant, objectID)
	}

	forward := cur == nil || target.Position > cur.Position
	gates := []*domain.Stage{target}
	if forward && pipeline.EnforceSkipGates && cur != nil {
		gates = append(pipeline.StagesBetween(cur, target), target)
	}
	if missing, err := e.missingFields(ctx, ref, schema, gates); err != nil {
		return nil, domain.Internal("transition record", err)
	} else if len(missing) > 0 {
		return nil, &domain.StageGateError{Stage: target.Name, Missing: missing}
	}

	probability := target.Probability
	if opts.Probability != nil {
		probability = *opts.Probability
		if probability < 0 || probability > 100 {
			return nil, &domain.ValidationError{Message: "probability must be between 0 and 100"}
		}
	}

	reason := opts.Reason
	if reason == "" {
		reason = "Deal progressed"
		if !forward {
			reason = "Deal moved back"
		}
	}

	entries, err := e.writeStage(ctx, tenant, actor, ref, stageWrite{
		stageDef:    stageDef,
		probDef:     probDef,
		oldStage:    currentName,
		target:      target,
		probability: probability,
		entryType:   domain.ActivityStageChanged,
		reason:      reason,
	})
	if err != nil {
		return nil, domain.Internal("transition record", err)
	}

	e.invalidateRecord(tenant, objectID)
	e.announce(ctx, tenant, ref.TypeName, entries)
	return e.GetRecord(ctx, tenant, objectID)
}

// Reopen moves a record out of a terminal stage back into an open one: the
// named stage, or the pipeline's first open stage if none is given. Stage
// gates do not apply; reopening is the explicit escape hatch.
func (e *Engine) Reopen(ctx context.Context, tenant, actor, objectID, stage string) (*domain.Record, error) {
	unlock := e.locks.lock(lockKey(tenant, objectID))
	defer unlock()

	ref, err := e.resolveLive(ctx, tenant, objectID)
	if err != nil {
		return nil, err
	}
	pipeline, err := e.store.Pipelines.GetForType(ctx, tenant, ref.TypeName)
	if err != nil {
		return nil, domain.Internal("reopen record", err)
	}
	_, stageDef, probDef, err := e.pipelineSchema(ctx, tenant, ref.TypeName)
	if err != nil {
		return nil, err
	}

	currentName, cur, err := e.currentStage(ctx, ref, pipeline, stageDef)
	if err != nil {
		return nil, err
	}
	if cur == nil || !cur.Terminal() {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("record %s is not in a terminal stage", objectID),
		}
	}

	var target *domain.Stage
	if stage == "" {
		target = pipeline.FirstOpenStage()
		if target == nil {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("pipeline %q has no open stage to reopen into", pipeline.Name),
			}
		}
	} else {
		target = pipeline.StageByName(stage)
		if target == nil {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("pipeline %q has no stage %q", pipeline.Name, stage),
			}
		}
		if target.Terminal() {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("cannot reopen into terminal stage %q", target.Name),
			}
		}
	}

	entries, err := e.writeStage(ctx, tenant, actor, ref, stageWrite{
		stageDef:    stageDef,
		probDef:     probDef,
		oldStage:    currentName,
		target:      target,
		probability: target.Probability,
		entryType:   domain.ActivityDealReopened,
		reason:      "Deal reopened",
	})
	if err != nil {
		return nil, domain.Internal("reopen record", err)
	}

	e.invalidateRecord(tenant, objectID)
	e.announce(ctx, tenant, ref.TypeName, entries)
	return e.GetRecord(ctx, tenant, objectID)
}

// pipelineSchema resolves the schema plus the stage and probability
// definitions pipeline writes go through. A type without a stage property
// cannot run a pipeline; probability is optional.
func (e *Engine) pipelineSchema(ctx context.Context, tenant, typeName string) (*domain.Schema, *domain.PropertyDefinition, *domain.PropertyDefinition, error) {
	schema, err := e.GetSchema(ctx, tenant, typeName)
	if err != nil {
		return nil, nil, nil, err
	}
	stageDef := schema.Property(domain.PropStage)
	if stageDef == nil {
		return nil, nil, nil, &domain.ValidationError{
			Message: fmt.Sprintf("type %q has no %q property", typeName, domain.PropStage),
		}
	}
	return schema, stageDef, schema.Property(domain.PropProbability), nil
}

// currentStage reads the record's stage value and maps it to the pipeline's
// stage. A value the pipeline no longer knows is treated as unset.
func (e *Engine) currentStage(ctx context.Context, ref *store.ObjectRef, pipeline *domain.Pipeline, stageDef *domain.PropertyDefinition) (string, *domain.Stage, error) {
	v, err := e.store.Values.Get(ctx, ref.RowID, stageDef)
	if err != nil {
		return "", nil, domain.Internal("read stage", err)
	}
	name, _ := v.(string)
	if name == "" {
		return "", nil, nil
	}
	return name, pipeline.StageByName(name), nil
}

// missingFields collects the required fields of the gate stages that are not
// set on the record, first-gate-first without duplicates. A required field
// with no matching property definition counts as missing.
func (e *Engine) missingFields(ctx context.Context, ref *store.ObjectRef, schema *domain.Schema, gates []*domain.Stage) ([]string, error) {
	var missing []string
	seen := make(map[string]bool)
	for _, stage := range gates {
		for _, field := range stage.RequiredFields {
			if seen[field] {
				continue
			}
			seen[field] = true
			def := schema.Property(field)
			if def == nil {
				missing = append(missing, field)
				continue
			}
			v, err := e.store.Values.Get(ctx, ref.RowID, def)
			if err != nil {
				return nil, err
			}
			if v == nil {
				missing = append(missing, field)
			}
		}
	}
	return missing, nil
}

type stageWrite struct {
	stageDef    *domain.PropertyDefinition
	probDef     *domain.PropertyDefinition
	oldStage    string
	target      *domain.Stage
	probability float64
	entryType   domain.ActivityType
	reason      string
}

// writeStage commits a stage move: the stage and probability values, the
// stage-change entry and, for terminal targets, the deal_won/deal_lost entry,
// all in one transaction. The stage name is written as the pipeline defines
// it; the pipeline, not the select options, is authoritative here.
func (e *Engine) writeStage(ctx context.Context, tenant, actor string, ref *store.ObjectRef, w stageWrite) ([]*domain.ActivityEntry, error) {
	ts := now()
	var entries []*domain.ActivityEntry

	err := e.store.InTx(ctx, func(tx *store.Store) error {
		entries = entries[:0]

		if err := tx.Values.Set(ctx, ref.RowID, w.stageDef, w.target.Name, ts); err != nil {
			return err
		}
		var oldStage any
		if w.oldStage != "" {
			oldStage = w.oldStage
		}
		changes := []domain.PropertyChange{
			{Property: domain.PropStage, Old: oldStage, New: w.target.Name},
		}

		if w.probDef != nil {
			oldProb, err := tx.Values.Get(ctx, ref.RowID, w.probDef)
			if err != nil {
				return err
			}
			if !domain.ValueEqual(oldProb, w.probability) {
				if err := tx.Values.Set(ctx, ref.RowID, w.probDef, w.probability, ts); err != nil {
					return err
				}
				changes = append(changes, domain.PropertyChange{
					Property: domain.PropProbability, Old: oldProb, New: w.probability,
				})
			}
		}

		if err := tx.Objects.UpdateCore(ctx, ref.RowID, nil, nil, ts); err != nil {
			return err
		}

		entry, err := tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
			ObjectID:   ref.ObjectID,
			ObjectType: ref.TypeName,
			Type:       w.entryType,
			Changes:    changes,
			Reason:     w.reason,
			ActorID:    actor,
		})
		if err != nil {
			return err
		}
		entries = append(entries, entry)

		var outcome domain.ActivityType
		switch w.target.Type {
		case domain.StageWon:
			outcome = domain.ActivityDealWon
		case domain.StageLost:
			outcome = domain.ActivityDealLost
		default:
			return nil
		}
		terminal, err := tx.Activity.Append(ctx, tenant, &domain.ActivityEntry{
			ObjectID:   ref.ObjectID,
			ObjectType: ref.TypeName,
			Type:       outcome,
			Changes:    []domain.PropertyChange{{Property: domain.PropStage, Old: oldStage, New: w.target.Name}},
			ActorID:    actor,
		})
		if err != nil {
			return err
		}
		entries = append(entries, terminal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
