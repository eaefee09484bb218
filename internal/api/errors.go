package api

import (
	"errors"
	"net/http"

	"github.com/recordkit/recordkit/internal/domain"
)

// Error categories carried in the error envelope.
const (
	CategoryValidationError = "VALIDATION_ERROR"
	CategoryObjectNotFound  = "OBJECT_NOT_FOUND"
	CategoryConflict        = "CONFLICT"
	CategoryRateLimits      = "RATE_LIMITS"
	CategoryTimeout         = "TIMEOUT"
	CategoryInternalError   = "INTERNAL_ERROR"
)

// Error is the JSON error envelope returned by every endpoint.
type Error struct {
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	CorrelationID string        `json:"correlationId"`
	Category      string        `json:"category"`
	SubCategory   string        `json:"subCategory,omitempty"`
	Errors        []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail represents a single error within an Error.
type ErrorDetail struct {
	Message     string              `json:"message"`
	Code        string              `json:"code,omitempty"`
	In          string              `json:"in,omitempty"`
	Context     map[string][]string `json:"context,omitempty"`
	SubCategory string              `json:"subCategory,omitempty"`
}

// NewValidationError creates a 400 error with the VALIDATION_ERROR category.
func NewValidationError(message, correlationID string, details []ErrorDetail) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryValidationError,
		Errors:        details,
	}
}

// NewNotFoundError creates a 404 error with the OBJECT_NOT_FOUND category.
func NewNotFoundError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryObjectNotFound,
	}
}

// WriteError writes an Error as a JSON response with the given HTTP status code.
func WriteError(w http.ResponseWriter, statusCode int, apiErr *Error) {
	WriteJSON(w, statusCode, apiErr)
}

// WriteDomainError translates a core error into its HTTP status and envelope.
// The taxonomy code travels in subCategory so callers can branch on it without
// parsing messages.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)

	apiErr := &Error{
		Status:        "error",
		Message:       err.Error(),
		CorrelationID: CorrelationID(r.Context()),
		SubCategory:   code,
	}

	var status int
	switch code {
	case domain.CodeValidation, domain.CodeUnknownProperty, domain.CodeTypeMismatch,
		domain.CodeDanglingReference, domain.CodeInvalidAssociation:
		status = http.StatusBadRequest
		apiErr.Category = CategoryValidationError
	case domain.CodeUnknownType, domain.CodeNotFound:
		status = http.StatusNotFound
		apiErr.Category = CategoryObjectNotFound
	case domain.CodeConflict:
		status = http.StatusConflict
		apiErr.Category = CategoryConflict
	case domain.CodeStageGate:
		status = http.StatusConflict
		apiErr.Category = CategoryConflict
		var gate *domain.StageGateError
		if errors.As(err, &gate) && len(gate.Missing) > 0 {
			apiErr.Errors = []ErrorDetail{{
				Message: "required stage fields are not set",
				Code:    domain.CodeStageGate,
				Context: map[string][]string{"missingFields": gate.Missing},
			}}
		}
	case domain.CodeCancelled:
		status = http.StatusRequestTimeout
		apiErr.Category = CategoryTimeout
	default:
		status = http.StatusInternalServerError
		apiErr.Category = CategoryInternalError
	}

	WriteError(w, status, apiErr)
}
