package engine

import (
	"context"
	"errors"

	"github.com/recordkit/recordkit/internal/domain"
)

// Search filters records of one type. Filters AND together; each operator is
// evaluated against the property's declared data type. A cancelled context
// aborts the query and discards any partially collected results.
func (e *Engine) Search(ctx context.Context, tenant string, req *domain.SearchRequest) (*domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.CancelledError{Op: "search"}
	}

	schema, err := e.GetSchema(ctx, tenant, req.Type)
	if err != nil {
		return nil, err
	}

	result, rowIDs, err := e.store.Objects.Search(ctx, tenant, schema, req)
	if err != nil {
		return nil, searchErr(err)
	}
	for i, rowID := range rowIDs {
		props, err := e.store.Values.GetAll(ctx, rowID)
		if err != nil {
			return nil, searchErr(err)
		}
		result.Results[i].Properties = props
	}
	return result, nil
}

func searchErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.CancelledError{Op: "search"}
	}
	return domain.Internal("search records", err)
}
