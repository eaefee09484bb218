package domain

// FilterOperator is a comparison operator in a search filter.
type FilterOperator string

const (
	FilterEq       FilterOperator = "eq"
	FilterNe       FilterOperator = "ne"
	FilterContains FilterOperator = "contains"
	FilterGt       FilterOperator = "gt"
	FilterLt       FilterOperator = "lt"
	FilterIn       FilterOperator = "in"
)

// ValidFilterOperator reports whether op is supported.
func ValidFilterOperator(op FilterOperator) bool {
	switch op {
	case FilterEq, FilterNe, FilterContains, FilterGt, FilterLt, FilterIn:
		return true
	}
	return false
}

// Filter is one (property, operator, value) predicate. Values is used by the
// "in" operator; Value by everything else.
type Filter struct {
	Property string         `json:"property"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value,omitempty"`
	Values   []string       `json:"values,omitempty"`
}

// SearchRequest filters records of one type. Filters are ANDed together.
type SearchRequest struct {
	Type            string   `json:"type"`
	Filters         []Filter `json:"filters"`
	Limit           int      `json:"limit,omitempty"`
	After           string   `json:"after,omitempty"`
	IncludeArchived bool     `json:"includeArchived,omitempty"`
}

// SearchResult is one page of matching records.
type SearchResult struct {
	Total   int       `json:"total"`
	Results []*Record `json:"results"`
	After   string    `json:"after,omitempty"`
	HasMore bool      `json:"hasMore"`
}
