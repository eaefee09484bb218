package conformance_test

import (
	"fmt"
	"net/http"
	"testing"
)

// setupOrgTenant provisions a tenant with contact and company types. Contacts
// may link to one employer company (inverse "employees") and to any number of
// mentor contacts.
func setupOrgTenant(t *testing.T) string {
	t.Helper()
	tenant := newTenant()

	defineType(t, tenant, map[string]any{
		"internalName": "company",
		"label":        "Company",
		"pluralLabel":  "Companies",
		"recordPrefix": "COMP",
	})
	defineType(t, tenant, map[string]any{
		"internalName": "contact",
		"label":        "Contact",
		"pluralLabel":  "Contacts",
		"recordPrefix": "CONT",
		"allowedAssociations": []map[string]any{
			{"name": "employer", "targetType": "company", "inverseName": "employees", "multiple": false},
			{"name": "mentors", "targetType": "contact", "multiple": true},
		},
	})
	defineProperty(t, tenant, "company", map[string]any{"name": "companyname", "dataType": "string"})
	defineProperty(t, tenant, "contact", map[string]any{"name": "fullname", "dataType": "string"})
	return tenant
}

func createContact(t *testing.T, tenant, fullname string) string {
	t.Helper()
	rec := createRecord(t, tenant, "contact", map[string]any{"fullname": fullname})
	return assertIsString(t, rec, "id")
}

func createCompany(t *testing.T, tenant, name string) string {
	t.Helper()
	rec := createRecord(t, tenant, "company", map[string]any{"companyname": name})
	return assertIsString(t, rec, "id")
}

func associationPath(src, name, tgt string) string {
	return fmt.Sprintf("/v1/records/%s/associations/%s/%s", src, name, tgt)
}

func listAssociations(t *testing.T, tenant, objectID, name string) []any {
	t.Helper()
	resp := doRequest(t, http.MethodGet,
		fmt.Sprintf("/v1/records/%s/associations/%s", objectID, name), tenant, nil)
	mustStatus(t, resp, http.StatusOK)
	body := readJSON(t, resp)
	return assertIsArray(t, body, "results")
}

func TestAssociation_CreateAndList(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Ada Lovelace")
	companyID := createCompany(t, tenant, "Analytical Engines Ltd")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "employer", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusCreated)
	rel := readJSON(t, resp)

	assertStringField(t, rel, "sourceId", contactID)
	assertStringField(t, rel, "targetId", companyID)
	assertStringField(t, rel, "name", "employer")
	assertStringField(t, rel, "inverseName", "employees")
	assertISOTimestamp(t, assertIsString(t, rel, "createdAt"))

	// The link is traversable from the source side.
	results := listAssociations(t, tenant, contactID, "employer")
	if len(results) != 1 {
		t.Fatalf("expected 1 related record, got %d", len(results))
	}
	company := toObject(t, results[0])
	assertRecordShape(t, company)
	assertStringField(t, company, "id", companyID)

	// And from the target side under the inverse name, as a full record.
	results = listAssociations(t, tenant, companyID, "employees")
	if len(results) != 1 {
		t.Fatalf("expected 1 employee, got %d", len(results))
	}
	contact := toObject(t, results[0])
	assertStringField(t, contact, "id", contactID)
	props := assertIsObject(t, contact, "properties")
	assertStringField(t, props, "fullname", "Ada Lovelace")
}

func TestAssociation_NameNotAllowed(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "No Sponsor")
	companyID := createCompany(t, tenant, "Sponsorless Inc")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "sponsor", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
	assertStringField(t, body, "subCategory", "invalid_association")
}

func TestAssociation_WrongTargetType(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Misfiled")
	otherContact := createContact(t, tenant, "Not A Company")

	// employer must point at a company record.
	resp := doRequest(t, http.MethodPut, associationPath(contactID, "employer", otherContact), tenant, nil)
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
	assertStringField(t, body, "subCategory", "invalid_association")
}

func TestAssociation_DuplicateLink(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Twice Linked")
	companyID := createCompany(t, tenant, "Once Is Enough Co")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "employer", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodPut, associationPath(contactID, "employer", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusConflict)
	body := readJSON(t, resp)
	assertAPIError(t, body, "CONFLICT")
}

func TestAssociation_SingleCardinality(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "One Employer")
	first := createCompany(t, tenant, "First Employer")
	second := createCompany(t, tenant, "Second Employer")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "employer", first), tenant, nil)
	mustStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()

	// employer is single-valued, so a second company is rejected.
	resp = doRequest(t, http.MethodPut, associationPath(contactID, "employer", second), tenant, nil)
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
	assertStringField(t, body, "subCategory", "invalid_association")
}

func TestAssociation_MultipleAllowed(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Well Mentored")
	mentorA := createContact(t, tenant, "Mentor A")
	mentorB := createContact(t, tenant, "Mentor B")

	for _, mentor := range []string{mentorA, mentorB} {
		resp := doRequest(t, http.MethodPut, associationPath(contactID, "mentors", mentor), tenant, nil)
		mustStatus(t, resp, http.StatusCreated)
		_ = resp.Body.Close()
	}

	results := listAssociations(t, tenant, contactID, "mentors")
	if len(results) != 2 {
		t.Fatalf("expected 2 mentors, got %d", len(results))
	}
}

func TestAssociation_DissociateIsIdempotent(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Soon Unlinked")
	companyID := createCompany(t, tenant, "Former Employer")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "employer", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, associationPath(contactID, "employer", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusNoContent)
	_ = resp.Body.Close()

	results := listAssociations(t, tenant, contactID, "employer")
	if len(results) != 0 {
		t.Fatalf("expected 0 related records after dissociate, got %d", len(results))
	}

	// Removing an absent link converges on the same state.
	resp = doRequest(t, http.MethodDelete, associationPath(contactID, "employer", companyID), tenant, nil)
	mustStatus(t, resp, http.StatusNoContent)
	_ = resp.Body.Close()
}

func TestAssociation_MissingTarget(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Linking Nowhere")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "employer", "COMP-999"), tenant, nil)
	mustStatus(t, resp, http.StatusNotFound)
	body := readJSON(t, resp)
	assertAPIError(t, body, "OBJECT_NOT_FOUND")
}

func TestAssociation_SelfLink(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Own Mentor")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "mentors", contactID), tenant, nil)
	mustStatus(t, resp, http.StatusBadRequest)
	body := readJSON(t, resp)
	assertAPIError(t, body, "VALIDATION_ERROR")
}

func TestAssociation_DeletedRecordDropsOut(t *testing.T) {
	tenant := setupOrgTenant(t)
	contactID := createContact(t, tenant, "Outlives Mentor")
	mentorID := createContact(t, tenant, "Short Lived")

	resp := doRequest(t, http.MethodPut, associationPath(contactID, "mentors", mentorID), tenant, nil)
	mustStatus(t, resp, http.StatusCreated)
	_ = resp.Body.Close()

	resp = doRequest(t, http.MethodDelete, "/v1/records/"+mentorID, tenant, nil)
	mustStatus(t, resp, http.StatusNoContent)
	_ = resp.Body.Close()

	// Links never keep a deleted record visible.
	results := listAssociations(t, tenant, contactID, "mentors")
	if len(results) != 0 {
		t.Fatalf("expected deleted mentor to drop out, got %d results", len(results))
	}
}
