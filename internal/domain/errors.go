package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Stable machine-readable error codes. API responses carry these verbatim so
// callers can branch on them without parsing messages.
const (
	CodeValidation         = "validation_error"
	CodeConflict           = "conflict"
	CodeUnknownType        = "unknown_type"
	CodeUnknownProperty    = "unknown_property"
	CodeTypeMismatch       = "type_mismatch"
	CodeDanglingReference  = "dangling_reference"
	CodeStageGate          = "stage_gate"
	CodeInvalidAssociation = "invalid_association"
	CodeNotFound           = "not_found"
	CodeCancelled          = "cancelled"
	CodeInternal           = "internal_error"
)

// ValidationError reports input that is structurally wrong: bad enum values,
// malformed definitions, rule violations.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a uniqueness or duplicate violation.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UnknownTypeError reports a schema lookup miss for an object type.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("object type %q not found", e.Name)
}

// UnknownPropertyError reports a schema lookup miss for a property.
type UnknownPropertyError struct {
	Property string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("property %q not found", e.Property)
}

// TypeMismatchError reports a raw value that cannot be coerced to the
// property's declared data type.
type TypeMismatchError struct {
	Property string
	DataType DataType
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("property %q: value %v is not a valid %s", e.Property, e.Value, e.DataType)
}

// DanglingReferenceError reports a reference (schema- or value-level) whose
// target does not exist or is of the wrong type.
type DanglingReferenceError struct {
	Property string
	Target   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("property %q: referenced object %q does not exist or has the wrong type", e.Property, e.Target)
}

// StageGateError reports a pipeline transition precondition failure: required
// fields missing on the record, or the record sitting in a terminal stage.
type StageGateError struct {
	Stage    string
	Missing  []string
	Terminal bool
}

func (e *StageGateError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("stage %q is terminal; reopen the record before transitioning", e.Stage)
	}
	return fmt.Sprintf("stage %q requires fields that are not set: %s", e.Stage, strings.Join(e.Missing, ", "))
}

// InvalidAssociationError reports a relationship that the source type's
// association policy does not permit.
type InvalidAssociationError struct {
	Message string
}

func (e *InvalidAssociationError) Error() string { return e.Message }

// NotFoundError reports a missing record (or other non-schema entity).
type NotFoundError struct {
	Kind string // "record", "pipeline", "trigger", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// CancelledError reports a caller-initiated abort; partially collected results
// are discarded, never returned.
type CancelledError struct {
	Op string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s cancelled", e.Op)
}

// InternalError wraps storage and cache failures. Its message is deliberately
// generic; the cause stays reachable through Unwrap for logging only.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: internal error", e.Op)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal wraps err as an InternalError unless it already belongs to the
// taxonomy (or is already wrapped), in which case it passes through unchanged.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return err
	}
	if ErrorCode(err) != CodeInternal {
		return err
	}
	return &InternalError{Op: op, Err: err}
}

// ErrorCode returns the stable code for err, unwrapping as needed, or
// CodeInternal when err is not part of the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.As(err, new(*ValidationError)):
		return CodeValidation
	case errors.As(err, new(*ConflictError)):
		return CodeConflict
	case errors.As(err, new(*UnknownTypeError)):
		return CodeUnknownType
	case errors.As(err, new(*UnknownPropertyError)):
		return CodeUnknownProperty
	case errors.As(err, new(*TypeMismatchError)):
		return CodeTypeMismatch
	case errors.As(err, new(*DanglingReferenceError)):
		return CodeDanglingReference
	case errors.As(err, new(*StageGateError)):
		return CodeStageGate
	case errors.As(err, new(*InvalidAssociationError)):
		return CodeInvalidAssociation
	case errors.As(err, new(*NotFoundError)):
		return CodeNotFound
	case errors.As(err, new(*CancelledError)):
		return CodeCancelled
	default:
		return CodeInternal
	}
}
