package conformance_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

var tenantSeq int64

// newTenant returns a tenant ID no other test has used. The server creates
// tenants implicitly on first write, so a fresh ID is a blank workspace and
// tests never see each other's data.
func newTenant() string {
	return fmt.Sprintf("conf-tenant-%04d", atomic.AddInt64(&tenantSeq, 1))
}

// doRequest makes an HTTP request to the test server scoped to tenant and
// returns the response. The caller is responsible for closing the body.
func doRequest(t *testing.T, method, path, tenant string, body any) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, serverURL+path, bodyReader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	if tenant != "" {
		req.Header.Set("X-Tenant-Id", tenant)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// readJSON reads the response body and unmarshals it into a map.
func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("unmarshal response (status %d): body=%s err=%v", resp.StatusCode, string(b), err)
	}
	return result
}

// mustStatus asserts the HTTP response has the expected status code.
func mustStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d; body=%s", expected, resp.StatusCode, string(b))
	}
}

// assertAPIError validates the response matches the standard error envelope.
func assertAPIError(t *testing.T, body map[string]any, expectedCategory string) {
	t.Helper()
	assertStringField(t, body, "status", "error")
	assertFieldPresent(t, body, "message")
	assertFieldPresent(t, body, "correlationId")
	if expectedCategory != "" {
		assertStringField(t, body, "category", expectedCategory)
	}
}

// assertFieldPresent checks that a key exists in the map.
func assertFieldPresent(t *testing.T, m map[string]any, key string) {
	t.Helper()
	if _, ok := m[key]; !ok {
		t.Errorf("expected field %q to be present, got keys: %v", key, mapKeys(m))
	}
}

// assertStringField checks that a key exists and has the expected string value.
func assertStringField(t *testing.T, m map[string]any, key, expected string) {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present", key)
		return
	}
	s, ok := v.(string)
	if !ok {
		t.Errorf("expected field %q to be string, got %T", key, v)
		return
	}
	if s != expected {
		t.Errorf("field %q: expected %q, got %q", key, expected, s)
	}
}

// assertIsString checks that a field is a string and returns its value.
func assertIsString(t *testing.T, m map[string]any, key string) string {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present", key)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		t.Errorf("expected field %q to be string, got %T", key, v)
		return ""
	}
	return s
}

// assertIsArray checks that a field is a JSON array and returns it.
func assertIsArray(t *testing.T, m map[string]any, key string) []any {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present", key)
		return nil
	}
	a, ok := v.([]any)
	if !ok {
		t.Errorf("expected field %q to be array, got %T", key, v)
		return nil
	}
	return a
}

// assertIsObject checks that a field is a JSON object and returns it.
func assertIsObject(t *testing.T, m map[string]any, key string) map[string]any {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present", key)
		return nil
	}
	o, ok := v.(map[string]any)
	if !ok {
		t.Errorf("expected field %q to be object, got %T", key, v)
		return nil
	}
	return o
}

// assertISOTimestamp checks that a string value is a valid ISO 8601 timestamp.
func assertISOTimestamp(t *testing.T, value string) {
	t.Helper()
	if value == "" {
		t.Error("expected non-empty ISO timestamp")
		return
	}
	formats := []string{
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		time.RFC3339Nano,
	}
	for _, f := range formats {
		if _, err := time.Parse(f, value); err == nil {
			return
		}
	}
	t.Errorf("value %q is not a valid ISO 8601 timestamp", value)
}

// assertRecordShape validates the core fields every record response carries.
func assertRecordShape(t *testing.T, obj map[string]any) {
	t.Helper()
	assertIsString(t, obj, "id")
	assertIsString(t, obj, "type")
	assertIsObject(t, obj, "properties")
	assertISOTimestamp(t, assertIsString(t, obj, "createdAt"))
	assertISOTimestamp(t, assertIsString(t, obj, "updatedAt"))
}

// toObject converts a slice element to a map.
func toObject(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}
	return m
}

// mapKeys returns the keys of a map for diagnostic output.
func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// defineType creates an object type in the tenant and returns the response body.
func defineType(t *testing.T, tenant string, spec map[string]any) map[string]any {
	t.Helper()
	resp := doRequest(t, http.MethodPost, "/v1/types", tenant, spec)
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("define type: status=%d body=%s", resp.StatusCode, string(b))
	}
	return readJSON(t, resp)
}

// defineProperty adds a property to a type in the tenant.
func defineProperty(t *testing.T, tenant, typeName string, def map[string]any) map[string]any {
	t.Helper()
	resp := doRequest(t, http.MethodPost, "/v1/types/"+typeName+"/properties", tenant, def)
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("define property: status=%d body=%s", resp.StatusCode, string(b))
	}
	return readJSON(t, resp)
}

// createRecord creates a record of the given type and returns the response body.
func createRecord(t *testing.T, tenant, typeName string, props map[string]any) map[string]any {
	t.Helper()
	body := map[string]any{"properties": props}
	resp := doRequest(t, http.MethodPost, "/v1/types/"+typeName+"/records", tenant, body)
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("create %s record: status=%d body=%s", typeName, resp.StatusCode, string(b))
	}
	return readJSON(t, resp)
}

// setupDealTenant provisions a fresh tenant with a deal type, its stage
// machinery and a sales pipeline: qualified (20) -> proposal_sent (60,
// requires amount and close_date) -> closed_won (100) / closed_lost (0).
func setupDealTenant(t *testing.T) string {
	t.Helper()
	tenant := newTenant()

	defineType(t, tenant, map[string]any{
		"internalName": "deal",
		"label":        "Deal",
		"pluralLabel":  "Deals",
		"recordPrefix": "DEAL",
		"features":     map[string]any{"audit": true, "pipelines": true, "workflows": true},
	})
	props := []map[string]any{
		{"name": "dealname", "label": "Deal Name", "dataType": "string", "required": true},
		{"name": "amount", "label": "Amount", "dataType": "number"},
		{"name": "close_date", "label": "Close Date", "dataType": "date"},
		{"name": "stage", "label": "Stage", "dataType": "select", "options": []map[string]any{
			{"value": "qualified"}, {"value": "proposal_sent"}, {"value": "closed_won"}, {"value": "closed_lost"},
		}},
		{"name": "probability", "label": "Probability", "dataType": "number"},
	}
	for _, p := range props {
		defineProperty(t, tenant, "deal", p)
	}

	resp := doRequest(t, http.MethodPost, "/v1/pipelines", tenant, map[string]any{
		"name":       "sales",
		"label":      "Sales",
		"objectType": "deal",
		"stages": []map[string]any{
			{"name": "qualified", "label": "Qualified", "position": 1, "probability": 20, "type": "open"},
			{"name": "proposal_sent", "label": "Proposal Sent", "position": 2, "probability": 60, "type": "open",
				"requiredFields": []string{"amount", "close_date"}},
			{"name": "closed_won", "label": "Closed Won", "position": 3, "probability": 100, "type": "won"},
			{"name": "closed_lost", "label": "Closed Lost", "position": 4, "probability": 0, "type": "lost"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("define sales pipeline: status=%d body=%s", resp.StatusCode, string(b))
	}
	_ = resp.Body.Close()

	return tenant
}

// waitFor polls cond until it returns true or the timeout expires. Workflow
// actions run on the server's dispatcher, so run rows appear asynchronously.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
