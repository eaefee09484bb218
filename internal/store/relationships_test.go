package store_test

import (
	"context"
	"testing"

	"github.com/recordkit/recordkit/internal/database"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/store"
	"github.com/recordkit/recordkit/internal/testhelpers"
)

var _ store.RelationshipStore = (*store.SQLiteRelationshipStore)(nil)

func setupRelationshipTest(t *testing.T) (context.Context, *store.Store) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return ctx, store.New(db)
}

func TestRelationships_InsertAndList(t *testing.T) {
	ctx, s := setupRelationshipTest(t)

	first, err := s.Relationships.Insert(ctx, testTenant, &domain.Relationship{
		SourceID: "DEAL-1", TargetID: "CONTACT-1", Name: "deal_to_contact", InverseName: "contact_to_deal",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.ID == 0 || first.CreatedAt == "" {
		t.Errorf("expected assigned ID and timestamp, got %+v", first)
	}
	second, err := s.Relationships.Insert(ctx, testTenant, &domain.Relationship{
		SourceID: "DEAL-1", TargetID: "CONTACT-2", Name: "deal_to_contact", InverseName: "contact_to_deal",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("expected monotonically increasing IDs, got %d then %d", first.ID, second.ID)
	}

	// Forward traversal in insertion order.
	rels, err := s.Relationships.ListFrom(ctx, testTenant, "DEAL-1", "deal_to_contact")
	if err != nil {
		t.Fatalf("ListFrom: %v", err)
	}
	if len(rels) != 2 || rels[0].TargetID != "CONTACT-1" || rels[1].TargetID != "CONTACT-2" {
		t.Errorf("unexpected forward traversal: %+v", rels)
	}

	// Reverse traversal walks the inverse name.
	rels, err = s.Relationships.ListTo(ctx, testTenant, "CONTACT-1", "contact_to_deal")
	if err != nil {
		t.Fatalf("ListTo: %v", err)
	}
	if len(rels) != 1 || rels[0].SourceID != "DEAL-1" {
		t.Errorf("unexpected reverse traversal: %+v", rels)
	}
}

func TestRelationships_ExistsAndHasAny(t *testing.T) {
	ctx, s := setupRelationshipTest(t)

	if _, err := s.Relationships.Insert(ctx, testTenant, &domain.Relationship{
		SourceID: "CONTACT-1", TargetID: "COMP-1", Name: "works_at", InverseName: "employs",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	exists, err := s.Relationships.Exists(ctx, testTenant, "CONTACT-1", "COMP-1", "works_at")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("expected relationship to exist")
	}
	exists, err = s.Relationships.Exists(ctx, testTenant, "CONTACT-1", "COMP-2", "works_at")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("expected no relationship to COMP-2")
	}

	// HasAny checks cardinality regardless of target.
	has, err := s.Relationships.HasAny(ctx, testTenant, "CONTACT-1", "works_at")
	if err != nil {
		t.Fatalf("HasAny: %v", err)
	}
	if !has {
		t.Error("expected HasAny to see the relationship")
	}
	has, err = s.Relationships.HasAny(ctx, testTenant, "CONTACT-2", "works_at")
	if err != nil {
		t.Fatalf("HasAny: %v", err)
	}
	if has {
		t.Error("expected no relationships for CONTACT-2")
	}
}

func TestRelationships_DeleteIsIdempotent(t *testing.T) {
	ctx, s := setupRelationshipTest(t)

	if _, err := s.Relationships.Insert(ctx, testTenant, &domain.Relationship{
		SourceID: "DEAL-1", TargetID: "CONTACT-1", Name: "deal_to_contact", InverseName: "contact_to_deal",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := s.Relationships.Delete(ctx, testTenant, "DEAL-1", "CONTACT-1", "deal_to_contact")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Error("expected first delete to remove the relationship")
	}

	removed, err = s.Relationships.Delete(ctx, testTenant, "DEAL-1", "CONTACT-1", "deal_to_contact")
	if err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if removed {
		t.Error("expected second delete to be a no-op")
	}

	rels, err := s.Relationships.ListFrom(ctx, testTenant, "DEAL-1", "deal_to_contact")
	if err != nil {
		t.Fatalf("ListFrom: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("expected no relationships left, got %+v", rels)
	}
}

func TestRelationships_TenantIsolation(t *testing.T) {
	ctx, s := setupRelationshipTest(t)

	if _, err := s.Relationships.Insert(ctx, testTenant, &domain.Relationship{
		SourceID: "DEAL-1", TargetID: "CONTACT-1", Name: "deal_to_contact", InverseName: "contact_to_deal",
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	rels, err := s.Relationships.ListFrom(ctx, "other", "DEAL-1", "deal_to_contact")
	if err != nil {
		t.Fatalf("ListFrom: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("expected no cross-tenant visibility, got %+v", rels)
	}
}
