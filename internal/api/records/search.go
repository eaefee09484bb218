package records

import (
	"encoding/json"
	"net/http"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/domain"
)

// Search handles POST /v1/types/{typeName}/records/search. Filters are ANDed;
// the object type comes from the path and overrides anything in the body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}
	req.Type = r.PathValue("typeName")

	result, err := h.engine.Search(ctx, api.TenantID(ctx), &req)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, result)
}
