package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// Paging represents cursor-based pagination info in collection responses.
type Paging struct {
	Next *PagingNext `json:"next,omitempty"`
}

// PagingNext holds the cursor for the next page.
type PagingNext struct {
	After string `json:"after"`
}

// CollectionResponse is a generic paginated list response.
type CollectionResponse struct {
	Results []any   `json:"results"`
	Paging  *Paging `json:"paging,omitempty"`
}

// Collection wraps items in a CollectionResponse, attaching a paging cursor
// when after is non-empty.
func Collection[T any](items []T, after string) *CollectionResponse {
	results := make([]any, len(items))
	for i, item := range items {
		results[i] = item
	}
	resp := &CollectionResponse{Results: results}
	if after != "" {
		resp.Paging = &Paging{Next: &PagingNext{After: after}}
	}
	return resp
}
