package analysis

import (
	"errors"
	"fmt"
)

// ErrSchemaMismatch is returned when an LLM response matches neither known
// response schema. It is fatal for the analysis request; the caller must
// surface it rather than guess a shape.
var ErrSchemaMismatch = errors.New("response matches neither analysis schema")

// ValidationError reports a missing or mistyped field in a recognized
// schema. Field is the JSON path of the offending field; Index is the
// position within allComments/bugs when the field belongs to an array
// element, -1 otherwise.
type ValidationError struct {
	Field string
	Index int
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("analysis validation: missing or invalid field %s (element %d)", e.Field, e.Index)
	}
	return fmt.Sprintf("analysis validation: missing or invalid field %s", e.Field)
}

func newValidationError(field string) *ValidationError {
	return &ValidationError{Field: field, Index: -1}
}

func newElementValidationError(field string, index int) *ValidationError {
	return &ValidationError{Field: field, Index: index}
}
