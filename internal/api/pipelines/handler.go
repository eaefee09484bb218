package pipelines

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/recordkit/recordkit/internal/api"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/engine"
)

// Handler serves pipeline definitions and the stage operations on records.
type Handler struct {
	engine *engine.Engine
}

// Create handles POST /v1/pipelines.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var p domain.Pipeline
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	created, err := h.engine.DefinePipeline(ctx, api.TenantID(ctx), &p)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, created)
}

// List handles GET /v1/pipelines.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pipelines, err := h.engine.ListPipelines(ctx, api.TenantID(ctx))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.Collection(pipelines, ""))
}

// Get handles GET /v1/pipelines/{pipelineName}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.engine.GetPipeline(ctx, api.TenantID(ctx), r.PathValue("pipelineName"))
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// SetSkipGates handles PUT /v1/pipelines/{pipelineName}/skip-gates. When
// enforcement is on, a forward transition must also satisfy the required
// fields of every skipped open stage.
func (h *Handler) SetSkipGates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Enforce bool `json:"enforce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	if err := h.engine.SetSkipGates(ctx, api.TenantID(ctx), r.PathValue("pipelineName"), body.Enforce); err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transition handles POST /v1/records/{objectId}/transition, moving the
// record to the named stage after its gates pass.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Stage       string   `json:"stage"`
		Probability *float64 `json:"probability"`
		Reason      string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}
	if body.Stage == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("stage is required", api.CorrelationID(ctx), nil))
		return
	}

	rec, err := h.engine.Transition(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId"), body.Stage,
		&engine.TransitionOptions{Probability: body.Probability, Reason: body.Reason})
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}

// Reopen handles POST /v1/records/{objectId}/reopen, moving a record out of a
// terminal stage. An empty body, or one without a stage, lands the record in
// the pipeline's first open stage.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Stage string `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		api.WriteError(w, http.StatusBadRequest, api.NewValidationError("Invalid input JSON", api.CorrelationID(ctx), nil))
		return
	}

	rec, err := h.engine.Reopen(ctx, api.TenantID(ctx), api.ActorID(ctx), r.PathValue("objectId"), body.Stage)
	if err != nil {
		api.WriteDomainError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, rec)
}
