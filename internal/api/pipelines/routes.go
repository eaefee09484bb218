package pipelines

import (
	"net/http"

	"github.com/recordkit/recordkit/internal/engine"
)

// RegisterRoutes registers pipeline definition routes plus the two
// record-scoped stage operations.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine) {
	h := &Handler{engine: eng}
	mux.HandleFunc("POST /v1/pipelines", h.Create)
	mux.HandleFunc("GET /v1/pipelines", h.List)
	mux.HandleFunc("GET /v1/pipelines/{pipelineName}", h.Get)
	mux.HandleFunc("PUT /v1/pipelines/{pipelineName}/skip-gates", h.SetSkipGates)
	mux.HandleFunc("POST /v1/records/{objectId}/transition", h.Transition)
	mux.HandleFunc("POST /v1/records/{objectId}/reopen", h.Reopen)
}
