package engine

import (
	"context"
	"log/slog"

	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/events"
)

// RegisterTrigger validates a workflow trigger against the type's schema and
// stores it enabled. value_increases only makes sense on number properties.
func (e *Engine) RegisterTrigger(ctx context.Context, tenant string, t *domain.Trigger) (*domain.Trigger, error) {
	schema, err := e.GetSchema(ctx, tenant, t.ObjectType)
	if err != nil {
		return nil, err
	}
	def := schema.Property(t.Property)
	if def == nil {
		return nil, &domain.UnknownPropertyError{Property: t.Property}
	}
	if t.Condition == domain.TriggerValueIncreases && def.DataType != domain.TypeNumber {
		return nil, &domain.ValidationError{
			Message: "value_increases triggers require a number property",
		}
	}
	if t.Condition == domain.TriggerValueEquals && t.Value == "" {
		return nil, &domain.ValidationError{
			Message: "value_equals triggers require a trigger value",
		}
	}

	created, err := e.store.Triggers.Create(ctx, tenant, t)
	if err != nil {
		return nil, domain.Internal("register trigger", err)
	}
	return created, nil
}

// GetTrigger looks up a trigger by ID.
func (e *Engine) GetTrigger(ctx context.Context, tenant, id string) (*domain.Trigger, error) {
	t, err := e.store.Triggers.Get(ctx, tenant, id)
	if err != nil {
		return nil, domain.Internal("get trigger", err)
	}
	return t, nil
}

// ListTriggers returns all triggers of the tenant.
func (e *Engine) ListTriggers(ctx context.Context, tenant string) ([]*domain.Trigger, error) {
	ts, err := e.store.Triggers.List(ctx, tenant)
	if err != nil {
		return nil, domain.Internal("list triggers", err)
	}
	return ts, nil
}

// EnableTrigger turns a trigger on or off without deleting its run history.
func (e *Engine) EnableTrigger(ctx context.Context, tenant, id string, enabled bool) error {
	if err := e.store.Triggers.SetEnabled(ctx, tenant, id, enabled); err != nil {
		return domain.Internal("enable trigger", err)
	}
	return nil
}

// DeleteTrigger removes a trigger and its run history.
func (e *Engine) DeleteTrigger(ctx context.Context, tenant, id string) error {
	if err := e.store.Triggers.Delete(ctx, tenant, id); err != nil {
		return domain.Internal("delete trigger", err)
	}
	return nil
}

// ListRuns returns the most recent runs of a trigger, newest first.
func (e *Engine) ListRuns(ctx context.Context, tenant, triggerID string, limit int) ([]*domain.TriggerRun, error) {
	runs, err := e.store.Triggers.ListRuns(ctx, tenant, triggerID, limit)
	if err != nil {
		return nil, domain.Internal("list trigger runs", err)
	}
	return runs, nil
}

// GetActivity pages through a record's activity history, oldest first.
func (e *Engine) GetActivity(ctx context.Context, tenant, objectID string, since int64, limit int) (*domain.ActivityPage, error) {
	if _, err := e.store.Objects.Resolve(ctx, tenant, objectID); err != nil {
		return nil, domain.Internal("get activity", err)
	}
	page, err := e.store.Activity.Query(ctx, tenant, objectID, since, limit)
	if err != nil {
		return nil, domain.Internal("get activity", err)
	}
	return page, nil
}

// announce fans freshly committed activity entries out: each becomes an
// outbound event, and property-change shaped entries are evaluated against
// the tenant's workflow triggers. Runs insert synchronously so the audit
// trail exists before the action executes; the actions themselves run on the
// dispatcher. Announce never fails the originating write.
func (e *Engine) announce(ctx context.Context, tenant, typeName string, entries []*domain.ActivityEntry) {
	// The write has committed; losing the request context must not lose
	// trigger runs.
	ctx = context.WithoutCancel(ctx)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		e.dispatcher.Enqueue(&Task{Tenant: tenant, Event: activityEvent(tenant, typeName, entry)})
		e.evaluateTriggers(ctx, tenant, typeName, entry)
	}
}

func activityEvent(tenant, typeName string, entry *domain.ActivityEntry) *events.Event {
	payload := map[string]any{
		"activityId": entry.ID,
	}
	if len(entry.Changes) > 0 {
		payload["changes"] = entry.Changes
	}
	if entry.Reason != "" {
		payload["reason"] = entry.Reason
	}
	if entry.ActorID != "" {
		payload["actor"] = entry.ActorID
	}
	if entry.AutomationID != "" {
		payload["automationId"] = entry.AutomationID
	}
	return events.New(tenant, string(entry.Type), entry.ObjectID, typeName, payload)
}

// evaluateTriggers matches one entry's property changes against the enabled
// triggers for the type. Only entries that carry real property transitions
// participate; lifecycle entries (created, archived, won, ...) do not.
func (e *Engine) evaluateTriggers(ctx context.Context, tenant, typeName string, entry *domain.ActivityEntry) {
	switch entry.Type {
	case domain.ActivityPropertyChanged, domain.ActivityStageChanged, domain.ActivityDealReopened:
	default:
		return
	}

	for _, change := range entry.Changes {
		triggers, err := e.store.Triggers.Match(ctx, tenant, typeName, change.Property)
		if err != nil {
			e.logger.Error("trigger match failed",
				slog.String("tenant", tenant),
				slog.String("property", change.Property),
				slog.Any("error", err),
			)
			continue
		}
		for _, trg := range triggers {
			if !trg.Matches(change) {
				continue
			}
			e.fire(ctx, tenant, typeName, trg, entry, change)
		}
	}
}

// fire records one run per action and hands the actions to the dispatcher.
func (e *Engine) fire(ctx context.Context, tenant, typeName string, trg *domain.Trigger, entry *domain.ActivityEntry, change domain.PropertyChange) {
	for _, action := range trg.Actions {
		run, err := e.store.Triggers.InsertRun(ctx, tenant, &domain.TriggerRun{
			TriggerID:  trg.ID,
			ObjectID:   entry.ObjectID,
			ActivityID: entry.ID,
			Action:     action.Type,
		})
		if err != nil {
			e.logger.Error("workflow run insert failed",
				slog.String("trigger", trg.Name),
				slog.String("object_id", entry.ObjectID),
				slog.Any("error", err),
			)
			continue
		}

		task := &Task{
			Tenant:  tenant,
			Trigger: trg,
			Action:  action,
			RunID:   run.ID,
			Event: events.New(tenant, "workflow_triggered", entry.ObjectID, typeName, map[string]any{
				"trigger":    trg.Name,
				"triggerId":  trg.ID,
				"activityId": entry.ID,
				"property":   change.Property,
				"old":        change.Old,
				"new":        change.New,
				"action":     string(action.Type),
				"params":     action.Params,
			}),
		}
		if !e.dispatcher.Enqueue(task) {
			if err := e.store.Triggers.UpdateRun(ctx, run.ID, domain.RunFailed, 0, "dispatch queue saturated"); err != nil {
				e.logger.Error("workflow run update failed",
					slog.String("run_id", run.ID),
					slog.Any("error", err),
				)
			}
		}
	}
}
