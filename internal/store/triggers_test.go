package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/recordkit/recordkit/internal/database"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/store"
	"github.com/recordkit/recordkit/internal/testhelpers"
)

var _ store.TriggerStore = (*store.SQLiteTriggerStore)(nil)

func setupTriggerTest(t *testing.T) (context.Context, *store.Store) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return ctx, store.New(db)
}

func wonTrigger() *domain.Trigger {
	return &domain.Trigger{
		Name:       "notify-deal-won",
		ObjectType: "deal",
		Property:   "stage",
		Condition:  domain.TriggerValueEquals,
		Value:      "closed_won",
		Actions: []domain.Action{
			{Type: domain.ActionWebhook, Params: map[string]string{"url": "https://example.com/hooks/won"}},
			{Type: domain.ActionSendNotification, Params: map[string]string{"channel": "sales"}},
		},
	}
}

func TestTriggers_CreateAndGet(t *testing.T) {
	ctx, s := setupTriggerTest(t)

	created, err := s.Triggers.Create(ctx, testTenant, wonTrigger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Error("expected trigger ID")
	}
	if !created.Enabled {
		t.Error("expected new triggers to start enabled")
	}

	got, err := s.Triggers.Get(ctx, testTenant, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Condition != domain.TriggerValueEquals || got.Value != "closed_won" {
		t.Errorf("unexpected condition: %+v", got)
	}
	if len(got.Actions) != 2 || got.Actions[0].Params["url"] == "" {
		t.Errorf("expected actions with params, got %+v", got.Actions)
	}
}

func TestTriggers_CreateValidation(t *testing.T) {
	ctx, s := setupTriggerTest(t)
	var ve *domain.ValidationError

	bad := wonTrigger()
	bad.Condition = "on_full_moon"
	if _, err := s.Triggers.Create(ctx, testTenant, bad); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for bad condition, got %v", err)
	}

	bad = wonTrigger()
	bad.Actions = nil
	if _, err := s.Triggers.Create(ctx, testTenant, bad); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing actions, got %v", err)
	}

	bad = wonTrigger()
	bad.Actions[0].Type = "launch_rocket"
	if _, err := s.Triggers.Create(ctx, testTenant, bad); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for bad action type, got %v", err)
	}
}

func TestTriggers_MatchFiltersByPropertyAndEnabled(t *testing.T) {
	ctx, s := setupTriggerTest(t)

	won, err := s.Triggers.Create(ctx, testTenant, wonTrigger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	amount := wonTrigger()
	amount.Name = "big-deal-alert"
	amount.Property = "amount"
	amount.Condition = domain.TriggerValueIncreases
	amount.Value = "10000"
	if _, err := s.Triggers.Create(ctx, testTenant, amount); err != nil {
		t.Fatalf("Create: %v", err)
	}

	matches, err := s.Triggers.Match(ctx, testTenant, "deal", "stage")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "notify-deal-won" {
		t.Errorf("expected only the stage trigger, got %+v", matches)
	}

	// Disabled triggers drop out of matching.
	if err := s.Triggers.SetEnabled(ctx, testTenant, won.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	matches, err = s.Triggers.Match(ctx, testTenant, "deal", "stage")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches after disable, got %+v", matches)
	}
}

func TestTriggers_Delete(t *testing.T) {
	ctx, s := setupTriggerTest(t)

	created, err := s.Triggers.Create(ctx, testTenant, wonTrigger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Triggers.Delete(ctx, testTenant, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	var notFound *domain.NotFoundError
	if _, err := s.Triggers.Get(ctx, testTenant, created.ID); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError after delete, got %v", err)
	}
	if err := s.Triggers.Delete(ctx, testTenant, created.ID); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError on double delete, got %v", err)
	}
}

func TestTriggers_RunLifecycle(t *testing.T) {
	ctx, s := setupTriggerTest(t)

	created, err := s.Triggers.Create(ctx, testTenant, wonTrigger())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	run, err := s.Triggers.InsertRun(ctx, testTenant, &domain.TriggerRun{
		TriggerID: created.ID, ObjectID: "DEAL-1", ActivityID: 7, Action: domain.ActionWebhook,
	})
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if run.ID == "" || run.Status != domain.RunPending {
		t.Errorf("expected pending run with ID, got %+v", run)
	}

	if err := s.Triggers.UpdateRun(ctx, run.ID, domain.RunFailed, 1, "connection refused"); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}
	if err := s.Triggers.UpdateRun(ctx, run.ID, domain.RunSucceeded, 2, ""); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	runs, err := s.Triggers.ListRuns(ctx, testTenant, created.ID, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Status != domain.RunSucceeded || runs[0].Attempts != 2 || runs[0].Error != "" {
		t.Errorf("unexpected final run state: %+v", runs[0])
	}
	if runs[0].ActivityID != 7 {
		t.Errorf("expected activity linkage, got %+v", runs[0])
	}
}
