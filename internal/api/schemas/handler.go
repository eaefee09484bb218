package schemas

import (
	"encoding/json"
	"net/http"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

// Handler serves the type registry: object types, property definitions and
// the merged schema view.
type Handler struct {
	engine *engine.Engine
}

// Create handles POST /v1/types.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var t domain.ObjectType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	created, err := h.engine.DefineObjectType(ctx, api.TenantID(ctx), &t)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// List handles GET /v1/types.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	types, err := h.engine.ListObjectTypes(ctx, api.TenantID(ctx))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.Collection(types, ""))
}

// Get handles GET /v1/types/{typeName}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.engine.GetObjectType(ctx, api.TenantID(ctx), r.PathValue("typeName"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, t)
}

// Update handles PATCH /v1/types/{typeName}. The internal name and record
// prefix are fixed at creation; the body's values for them are ignored.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var t domain.ObjectType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}
	t.InternalName = r.PathValue("typeName")

	updated, err := h.engine.UpdateObjectType(ctx, api.TenantID(ctx), &t)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, updated)
}

// CreateProperty handles POST /v1/types/{typeName}/properties and
// POST /v1/properties. The latter defines a global property that applies to
// every type in the tenant.
func (h *Handler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var def domain.PropertyDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}
	def.ObjectType = r.PathValue("typeName")

	created, err := h.engine.DefineProperty(ctx, api.TenantID(ctx), &def)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// Schema handles GET /v1/types/{typeName}/schema: the type plus its effective
// property definitions, global definitions included.
func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, err := h.engine.GetSchema(ctx, api.TenantID(ctx), r.PathValue("typeName"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, s)
}
