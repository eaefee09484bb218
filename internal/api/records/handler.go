package records

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

// Handler serves record CRUD, property access and the activity feed.
type Handler struct {
	engine *engine.Engine
}

// Create handles POST /v1/types/{typeName}/records.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Name       string         `json:"name"`
		OwnerID    string         `json:"ownerId"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}
	if body.Properties == nil {
		body.Properties = map[string]any{}
	}

	rec, err := h.engine.CreateRecord(ctx, api.TenantID(ctx), api.ActorID(ctx), &domain.CreateInput{
		Type:       r.PathValue("typeName"),
		Name:       body.Name,
		OwnerID:    body.OwnerID,
		Properties: body.Properties,
	})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, rec)
}

// Get handles GET /v1/records/{objectId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.engine.GetRecord(ctx, api.TenantID(ctx), r.PathValue("objectId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// List handles GET /v1/types/{typeName}/records.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	archived := r.URL.Query().Get("archived") == "true"

	page, err := h.engine.ListRecords(ctx, api.TenantID(ctx), r.PathValue("typeName"),
		limit, r.URL.Query().Get("after"), archived)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.Collection(page.Results, page.After))
}

// Update handles PATCH /v1/records/{objectId}. Properties present with a null
// value are cleared; absent properties stay untouched.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in domain.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	rec, err := h.engine.UpdateRecord(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId"), &in)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /v1/records/{objectId}. The record becomes a
// read-only stub; its activity log stays queryable.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.engine.DeleteRecord(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Archive handles POST /v1/records/{objectId}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.engine.ArchiveRecord(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// Restore handles POST /v1/records/{objectId}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.engine.RestoreRecord(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// Properties handles GET /v1/records/{objectId}/properties.
func (h *Handler) Properties(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	props, err := h.engine.GetProperties(ctx, api.TenantID(ctx), r.PathValue("objectId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, props)
}

// GetProperty handles GET /v1/records/{objectId}/properties/{propertyName}.
func (h *Handler) GetProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("propertyName")

	props, err := h.engine.GetProperties(ctx, api.TenantID(ctx), r.PathValue("objectId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"name": name, "value": props[name]})
}

// SetProperty handles PUT /v1/records/{objectId}/properties/{propertyName}.
// A null value clears the property.
func (h *Handler) SetProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Value  any    `json:"value"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	rec, err := h.engine.SetProperties(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId"),
		map[string]any{r.PathValue("propertyName"): body.Value}, body.Reason)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// Activity handles GET /v1/records/{objectId}/activity. It works on deleted
// records too: the log outlives the record.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	page, err := h.engine.GetActivity(ctx, api.TenantID(ctx), r.PathValue("objectId"), since, limit)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, page)
}
