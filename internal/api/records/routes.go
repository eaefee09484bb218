package records

import (
	"net/http"

	"github.com/recordkit/recordkit/internal/engine"
)

// RegisterRoutes registers record routes on the mux. Collections hang off the
// owning type; individual records are addressed by their public ID alone.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine) {
	h := &Handler{engine: eng}
	mux.HandleFunc("POST /v1/types/{typeName}/records", h.Create)
	mux.HandleFunc("GET /v1/types/{typeName}/records", h.List)
	mux.HandleFunc("POST /v1/types/{typeName}/records/search", h.Search)
	mux.HandleFunc("GET /v1/records/{objectId}", h.Get)
	mux.HandleFunc("PATCH /v1/records/{objectId}", h.Update)
	mux.HandleFunc("DELETE /v1/records/{objectId}", h.Delete)
	mux.HandleFunc("POST /v1/records/{objectId}/archive", h.Archive)
	mux.HandleFunc("POST /v1/records/{objectId}/restore", h.Restore)
	mux.HandleFunc("GET /v1/records/{objectId}/properties", h.Properties)
	mux.HandleFunc("GET /v1/records/{objectId}/properties/{propertyName}", h.GetProperty)
	mux.HandleFunc("PUT /v1/records/{objectId}/properties/{propertyName}", h.SetProperty)
	mux.HandleFunc("GET /v1/records/{objectId}/activity", h.Activity)
}
