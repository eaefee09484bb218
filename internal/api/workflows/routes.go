package workflows

import (
	"net/http"

	"github.com/recordkit/recordkit/internal/engine"
)

// RegisterRoutes registers workflow trigger routes on the mux.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine) {
	h := &Handler{engine: eng}
	mux.HandleFunc("POST /v1/workflows/triggers", h.Create)
	mux.HandleFunc("GET /v1/workflows/triggers", h.List)
	mux.HandleFunc("GET /v1/workflows/triggers/{triggerId}", h.Get)
	mux.HandleFunc("PUT /v1/workflows/triggers/{triggerId}/enabled", h.SetEnabled)
	mux.HandleFunc("DELETE /v1/workflows/triggers/{triggerId}", h.Delete)
	mux.HandleFunc("GET /v1/workflows/triggers/{triggerId}/runs", h.ListRuns)
}
