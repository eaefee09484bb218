package workflows

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

// Handler serves workflow trigger registration and the run log.
type Handler struct {
	engine *engine.Engine
}

// Create handles POST /v1/workflows/triggers. New triggers start enabled
// unless the body says otherwise.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var t domain.Trigger
	t.Enabled = true
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	created, err := h.engine.RegisterTrigger(ctx, api.TenantID(ctx), &t)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// List handles GET /v1/workflows/triggers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	triggers, err := h.engine.ListTriggers(ctx, api.TenantID(ctx))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.Collection(triggers, ""))
}

// Get handles GET /v1/workflows/triggers/{triggerId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := h.engine.GetTrigger(ctx, api.TenantID(ctx), r.PathValue("triggerId"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, t)
}

// SetEnabled handles PUT /v1/workflows/triggers/{triggerId}/enabled.
func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	if err := h.engine.EnableTrigger(ctx, api.TenantID(ctx), r.PathValue("triggerId"), body.Enabled); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /v1/workflows/triggers/{triggerId}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.engine.DeleteTrigger(ctx, api.TenantID(ctx), r.PathValue("triggerId")); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRuns handles GET /v1/workflows/triggers/{triggerId}/runs: the dispatch
// audit trail for one trigger, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.engine.ListRuns(ctx, api.TenantID(ctx), r.PathValue("triggerId"), limit)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.Collection(runs, ""))
}
