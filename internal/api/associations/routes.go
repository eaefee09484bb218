package associations

import (
	"net/http"

	"github.com/recordkit/recordkit/internal/engine"
)

// RegisterRoutes registers relationship routes on the mux.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine) {
	h := &Handler{engine: eng}
	mux.HandleFunc("PUT /v1/records/{objectId}/associations/{name}/{targetId}", h.Associate)
	mux.HandleFunc("DELETE /v1/records/{objectId}/associations/{name}/{targetId}", h.Dissociate)
	mux.HandleFunc("GET /v1/records/{objectId}/associations/{name}", h.ListRelated)
}
