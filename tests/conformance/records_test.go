package conformance_test

import (
	"fmt"
	"net/http"
	"testing"
)

// setupCarTenant provisions a fresh tenant with a simple audited car type.
func setupCarTenant(t *testing.T) string {
	t.Helper()
	tenant := newTenant()
	defineType(t, tenant, map[string]any{
		"internalName": "car",
		"label":        "Car",
		"recordPrefix": "CAR",
		"features":     map[string]any{"audit": true},
	})
	for _, p := range []map[string]any{
		{"name": "model", "label": "Model", "dataType": "string", "required": true},
		{"name": "price", "label": "Price", "dataType": "number"},
		{"name": "electric", "label": "Electric", "dataType": "boolean"},
		{"name": "tags", "label": "Tags", "dataType": "multiselect", "options": []map[string]any{
			{"value": "vintage"}, {"value": "sport"}, {"value": "family"},
		}},
	} {
		defineProperty(t, tenant, "car", p)
	}
	return tenant
}

// TestRecord_Create verifies record creation with typed properties and the
// prefixed public ID.
func TestRecord_Create(t *testing.T) {
	tenant := setupCarTenant(t)

	body := createRecord(t, tenant, "car", map[string]any{
		"model":    "Roadster",
		"price":    49999.5,
		"electric": true,
		"tags":     []string{"sport"},
	})

	assertRecordShape(t, body)
	assertStringField(t, body, "type", "car")
	assertStringField(t, body, "status", "active")

	id := assertIsString(t, body, "id")
	if len(id) < 5 || id[:4] != "CAR-" {
		t.Errorf("expected CAR- prefixed id, got %q", id)
	}

	props := assertIsObject(t, body, "properties")
	if props["model"] != "Roadster" {
		t.Errorf("model = %v", props["model"])
	}
	if props["price"] != 49999.5 {
		t.Errorf("price = %v", props["price"])
	}
	if props["electric"] != true {
		t.Errorf("electric = %v", props["electric"])
	}
}

// TestRecord_CreateMissingRequired verifies that omitting a required property
// fails the create.
func TestRecord_CreateMissingRequired(t *testing.T) {
	tenant := setupCarTenant(t)

	resp := doRequest(t, http.MethodPost, "/v1/types/car/records", tenant,
		map[string]any{"properties": map[string]any{"price": 100}})
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
	assertStringField(t, body, "subCategory", "validation_error")
}

// TestRecord_CreateTypeMismatchIsAtomic verifies that one bad value rejects
// the whole create: nothing is stored.
func TestRecord_CreateTypeMismatchIsAtomic(t *testing.T) {
	tenant := setupCarTenant(t)

	resp := doRequest(t, http.MethodPost, "/v1/types/car/records", tenant,
		map[string]any{"properties": map[string]any{
			"model": "Roadster",
			"price": "not-a-number",
		}})
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
	assertStringField(t, body, "subCategory", "type_mismatch")

	resp = doRequest(t, http.MethodGet, "/v1/types/car/records", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	list := readJSON(t, resp)
	if results := assertIsArray(t, list, "results"); len(results) != 0 {
		t.Errorf("expected no records after failed create, got %d", len(results))
	}
}

// TestRecord_GetAndUpdate verifies fetch by ID and partial updates, including
// clearing a property with null.
func TestRecord_GetAndUpdate(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Wagon", "price": 15000})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodGet, "/v1/records/"+id, tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)
	assertStringField(t, body, "id", id)

	resp = doRequest(t, http.MethodPatch, "/v1/records/"+id, tenant, map[string]any{
		"properties": map[string]any{"price": 14000, "electric": nil},
	})
	mustStatus(t, resp, http.StatusOK)
	body = readJSON(t, resp)
	props := assertIsObject(t, body, "properties")
	if props["price"] != 14000.0 {
		t.Errorf("price = %v, want 14000", props["price"])
	}
	// Untouched property survives the patch.
	if props["model"] != "Wagon" {
		t.Errorf("model = %v, want Wagon", props["model"])
	}
}

// TestRecord_UpdateFailureLeavesRecordUnchanged verifies that a patch with one
// bad value applies none of its changes.
func TestRecord_UpdateFailureLeavesRecordUnchanged(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Wagon", "price": 15000})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodPatch, "/v1/records/"+id, tenant, map[string]any{
		"properties": map[string]any{"price": 9000, "electric": "maybe"},
	})
	mustStatus(t, resp, http.StatusBadRequest)
	assertAPIError(t, readJSON(t, resp), "VALIDATION_ERROR")

	resp = doRequest(t, http.MethodGet, "/v1/records/"+id, tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	props := assertIsObject(t, readJSON(t, resp), "properties")
	if props["price"] != 15000.0 {
		t.Errorf("price = %v, want 15000 (failed patch must not apply)", props["price"])
	}
}

// TestRecord_ListPagination verifies cursor pagination over the type's records.
func TestRecord_ListPagination(t *testing.T) {
	tenant := setupCarTenant(t)
	for i := 1; i <= 5; i++ {
		createRecord(t, tenant, "car", map[string]any{"model": fmt.Sprintf("Model %d", i)})
	}

	resp := doRequest(t, http.MethodGet, "/v1/types/car/records?limit=2", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	page := readJSON(t, resp)
	results := assertIsArray(t, page, "results")
	if len(results) != 2 {
		t.Fatalf("first page: expected 2 results, got %d", len(results))
	}
	paging := assertIsObject(t, page, "paging")
	next := assertIsObject(t, paging, "next")
	after := assertIsString(t, next, "after")

	seen := map[string]bool{}
	for _, r := range results {
		seen[assertIsString(t, toObject(t, r), "id")] = true
	}

	total := len(results)
	for after != "" {
		resp = doRequest(t, http.MethodGet, "/v1/types/car/records?limit=2&after="+after, tenant, nil)
		mustStatus(t, resp, http.StatusOK)
		page = readJSON(t, resp)
		results = assertIsArray(t, page, "results")
		for _, r := range results {
			id := assertIsString(t, toObject(t, r), "id")
			if seen[id] {
				t.Errorf("record %s appeared on two pages", id)
			}
			seen[id] = true
		}
		total += len(results)

		after = ""
		if p, ok := page["paging"].(map[string]any); ok {
			if n, ok := p["next"].(map[string]any); ok {
				after, _ = n["after"].(string)
			}
		}
	}
	if total != 5 {
		t.Errorf("walked %d records, want 5", total)
	}
}

// TestRecord_ArchiveRestoreFiltering verifies that archived records drop out
// of the default listing and come back on restore.
func TestRecord_ArchiveRestoreFiltering(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Parked"})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodPost, "/v1/records/"+id+"/archive", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)
	assertStringField(t, body, "status", "archived")
	assertISOTimestamp(t, assertIsString(t, body, "archivedAt"))

	resp = doRequest(t, http.MethodGet, "/v1/types/car/records", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	if results := assertIsArray(t, readJSON(t, resp), "results"); len(results) != 0 {
		t.Errorf("default listing should hide archived records, got %d", len(results))
	}

	resp = doRequest(t, http.MethodGet, "/v1/types/car/records?archived=true", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	if results := assertIsArray(t, readJSON(t, resp), "results"); len(results) != 1 {
		t.Errorf("archived listing should show the record, got %d", len(results))
	}

	resp = doRequest(t, http.MethodPost, "/v1/records/"+id+"/restore", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	assertStringField(t, readJSON(t, resp), "status", "active")
}

// TestRecord_DeleteLeavesAuditTrail verifies that deletion hides the record
// but keeps its activity history readable.
func TestRecord_DeleteLeavesAuditTrail(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Short-lived"})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodDelete, "/v1/records/"+id, tenant, nil)
	mustStatus(t, resp, http.StatusNoContent)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/v1/records/"+id, tenant, nil)
	mustStatus(t, resp, http.StatusNotFound)
	assertAPIError(t, readJSON(t, resp), "OBJECT_NOT_FOUND")

	resp = doRequest(t, http.MethodPatch, "/v1/records/"+id, tenant, map[string]any{
		"properties": map[string]any{"price": 1},
	})
	mustStatus(t, resp, http.StatusNotFound)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodGet, "/v1/records/"+id+"/activity", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	page := readJSON(t, resp)
	entries := assertIsArray(t, page, "entries")
	if len(entries) == 0 {
		t.Fatal("expected activity entries to outlive the record")
	}
	last := toObject(t, entries[len(entries)-1])
	assertStringField(t, last, "type", "record_deleted")
}

// TestRecord_PropertyEndpoints verifies the single-property get and set routes.
func TestRecord_PropertyEndpoints(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Tuner"})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodPut, "/v1/records/"+id+"/properties/price", tenant,
		map[string]any{"value": 32000, "reason": "listed price"})
	mustStatus(t, resp, http.StatusOK)
	_ = readJSON(t, resp)

	resp = doRequest(t, http.MethodGet, "/v1/records/"+id+"/properties/price", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)
	assertStringField(t, body, "name", "price")
	if body["value"] != 32000.0 {
		t.Errorf("value = %v, want 32000", body["value"])
	}

	resp = doRequest(t, http.MethodGet, "/v1/records/"+id+"/properties", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	props := readJSON(t, resp)
	if props["model"] != "Tuner" || props["price"] != 32000.0 {
		t.Errorf("unexpected property map: %v", props)
	}
}

// TestRecord_SetUnknownProperty verifies writing an undefined property fails.
func TestRecord_SetUnknownProperty(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Plain"})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodPut, "/v1/records/"+id+"/properties/warp_drive", tenant,
		map[string]any{"value": "engaged"})
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
	assertStringField(t, body, "subCategory", "unknown_property")
}

// TestRecord_ActivityFeed verifies the ordered activity history with change
// payloads and the actor header.
func TestRecord_ActivityFeed(t *testing.T) {
	tenant := setupCarTenant(t)
	created := createRecord(t, tenant, "car", map[string]any{"model": "Logbook"})
	id := assertIsString(t, created, "id")

	resp := doRequest(t, http.MethodPut, "/v1/records/"+id+"/properties/price", tenant,
		map[string]any{"value": 500, "reason": "initial estimate"})
	mustStatus(t, resp, http.StatusOK)
	_ = readJSON(t, resp)

	resp = doRequest(t, http.MethodGet, "/v1/records/"+id+"/activity", tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	page := readJSON(t, resp)
	entries := assertIsArray(t, page, "entries")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := toObject(t, entries[0])
	assertStringField(t, first, "type", "record_created")
	assertStringField(t, first, "objectId", id)

	second := toObject(t, entries[1])
	assertStringField(t, second, "type", "property_changed")
	assertStringField(t, second, "reason", "initial estimate")
	changes := assertIsArray(t, second, "changes")
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	change := toObject(t, changes[0])
	assertStringField(t, change, "property", "price")
	if change["new"] != 500.0 {
		t.Errorf("change new = %v, want 500", change["new"])
	}
}
