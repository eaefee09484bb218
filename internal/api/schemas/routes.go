package schemas

import (
	"net/http"

	"github.com/recordkit/recordkit/internal/engine"
)

// RegisterRoutes registers object type and property definition routes.
func RegisterRoutes(mux *http.ServeMux, eng *engine.Engine) {
	h := &Handler{engine: eng}
	mux.HandleFunc("POST /v1/types", h.Create)
	mux.HandleFunc("GET /v1/types", h.List)
	mux.HandleFunc("GET /v1/types/{typeName}", h.Get)
	mux.HandleFunc("PATCH /v1/types/{typeName}", h.Update)
	mux.HandleFunc("POST /v1/types/{typeName}/properties", h.CreateProperty)
	mux.HandleFunc("POST /v1/properties", h.CreateProperty)
	mux.HandleFunc("GET /v1/types/{typeName}/schema", h.Schema)
}
