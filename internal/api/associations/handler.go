package associations

import (
	"net/http"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/engine"
)

// Handler serves the relationship graph: creating, removing and traversing
// named links between records.
type Handler struct {
	engine *engine.Engine
}

// Associate handles PUT /v1/records/{objectId}/associations/{name}/{targetId}.
// The link name must be allowed by the source record's type, and the target
// must match the configured target type.
func (h *Handler) Associate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rel, err := h.engine.Associate(ctx, api.TenantID(ctx), api.ActorID(ctx),
		r.PathValue("objectId"), r.PathValue("targetId"), r.PathValue("name"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, rel)
}

// Dissociate handles DELETE /v1/records/{objectId}/associations/{name}/{targetId}.
// Removing a link that does not exist is a no-op.
func (h *Handler) Dissociate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.engine.Dissociate(ctx, api.TenantID(ctx), api.ActorID(ctx),
		r.PathValue("objectId"), r.PathValue("targetId"), r.PathValue("name"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRelated handles GET /v1/records/{objectId}/associations/{name}. It
// returns the full records on the other side of the link, both directions
// merged.
func (h *Handler) ListRelated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	related, err := h.engine.GetRelated(ctx, api.TenantID(ctx), r.PathValue("objectId"), r.PathValue("name"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.Collection(related, ""))
}
