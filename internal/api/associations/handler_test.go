package associations_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/api/associations"
	"github.com/recordkit/recordkit/internal/database"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
	"github.com/recordkit/recordkit/internal/store"
	"github.com/recordkit/recordkit/internal/testhelpers"
)

// setupTestServer builds the mux plus one deal and one company to link. The
// deal type allows a single "company" association; its inverse is "deals".
func setupTestServer(t *testing.T) (*http.ServeMux, *domain.Record, *domain.Record) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	eng := engine.New(store.New(db), engine.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	eng.Start()
	t.Cleanup(eng.Stop)

	_, err := eng.DefineObjectType(ctx, domain.DefaultTenant, &domain.ObjectType{
		InternalName: "company",
		Label:        "Company",
		RecordPrefix: "COMP",
		AllowedAssociations: []domain.AllowedAssociation{
			{Name: "deals", TargetType: "deal", InverseName: "company", Multiple: true},
		},
	})
	if err != nil {
		t.Fatalf("define company type: %v", err)
	}
	_, err = eng.DefineObjectType(ctx, domain.DefaultTenant, &domain.ObjectType{
		InternalName: "deal",
		Label:        "Deal",
		RecordPrefix: "DEAL",
		AllowedAssociations: []domain.AllowedAssociation{
			{Name: "company", TargetType: "company", InverseName: "deals", Multiple: false},
		},
	})
	if err != nil {
		t.Fatalf("define deal type: %v", err)
	}

	deal, err := eng.CreateRecord(ctx, domain.DefaultTenant, "system", &domain.CreateInput{
		Type: "deal", Name: "Acme deal", Properties: map[string]any{},
	})
	if err != nil {
		t.Fatalf("create deal: %v", err)
	}
	company, err := eng.CreateRecord(ctx, domain.DefaultTenant, "system", &domain.CreateInput{
		Type: "company", Name: "Acme Inc", Properties: map[string]any{},
	})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	mux := http.NewServeMux()
	associations.RegisterRoutes(mux, eng)
	return mux, deal, company
}

func decode(t *testing.T, data []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func associate(t *testing.T, mux *http.ServeMux, sourceID, name, targetID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("PUT", "/v1/records/"+sourceID+"/associations/"+name+"/"+targetID, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAssociate(t *testing.T) {
	mux, deal, company := setupTestServer(t)

	w := associate(t, mux, deal.ID, "company", company.ID)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rel domain.Relationship
	decode(t, w.Body.Bytes(), &rel)
	if rel.SourceID != deal.ID || rel.TargetID != company.ID {
		t.Errorf("relationship %s -> %s, want %s -> %s", rel.SourceID, rel.TargetID, deal.ID, company.ID)
	}
	if rel.Name != "company" {
		t.Errorf("name = %q, want company", rel.Name)
	}
	if rel.InverseName != "deals" {
		t.Errorf("inverseName = %q, want deals", rel.InverseName)
	}
}

func TestAssociate_NameNotAllowed(t *testing.T) {
	mux, deal, company := setupTestServer(t)

	w := associate(t, mux, deal.ID, "sponsor", company.ID)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	var apiErr api.Error
	decode(t, w.Body.Bytes(), &apiErr)
	if apiErr.SubCategory != domain.CodeInvalidAssociation {
		t.Errorf("subCategory = %q, want %q", apiErr.SubCategory, domain.CodeInvalidAssociation)
	}
}

func TestAssociate_WrongTargetType(t *testing.T) {
	mux, deal, _ := setupTestServer(t)

	// The "company" association cannot point at another deal.
	w := associate(t, mux, deal.ID, "company", deal.ID)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAssociate_DuplicateConflicts(t *testing.T) {
	mux, deal, company := setupTestServer(t)

	if w := associate(t, mux, deal.ID, "company", company.ID); w.Code != http.StatusCreated {
		t.Fatalf("first associate: %d: %s", w.Code, w.Body.String())
	}
	w := associate(t, mux, deal.ID, "company", company.ID)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListRelated_BothDirections(t *testing.T) {
	mux, deal, company := setupTestServer(t)

	if w := associate(t, mux, deal.ID, "company", company.ID); w.Code != http.StatusCreated {
		t.Fatalf("associate: %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest("GET", "/v1/records/"+deal.ID+"/associations/company", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.CollectionResponse
	decode(t, w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("forward results = %d, want 1", len(resp.Results))
	}

	// The company sees the same link under the inverse name.
	req = httptest.NewRequest("GET", "/v1/records/"+company.ID+"/associations/deals", http.NoBody)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("inverse: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 {
		t.Fatalf("inverse results = %d, want 1", len(resp.Results))
	}
}

func TestDissociate_Idempotent(t *testing.T) {
	mux, deal, company := setupTestServer(t)

	if w := associate(t, mux, deal.ID, "company", company.ID); w.Code != http.StatusCreated {
		t.Fatalf("associate: %d: %s", w.Code, w.Body.String())
	}

	req := httptest.NewRequest("DELETE", "/v1/records/"+deal.ID+"/associations/company/"+company.ID, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// Removing the same link again is still a 204.
	req = httptest.NewRequest("DELETE", "/v1/records/"+deal.ID+"/associations/company/"+company.ID, http.NoBody)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("repeat dissociate: expected 204, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/v1/records/"+deal.ID+"/associations/company", http.NoBody)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var resp api.CollectionResponse
	decode(t, w.Body.Bytes(), &resp)
	if len(resp.Results) != 0 {
		t.Errorf("results after dissociate = %d, want 0", len(resp.Results))
	}
}

func TestAssociate_MissingTarget(t *testing.T) {
	mux, deal, _ := setupTestServer(t)

	w := associate(t, mux, deal.ID, "company", "COMP-999")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
