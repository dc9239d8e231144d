// Package errors provides the named error conditions of the inventory core.
package errors

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrValidationFailed     = errors.New("validation failed")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrPersistedDataCorrupt = errors.New("persisted data corrupt")
)

// ValidationError lists the rejected input fields, keyed by field name,
// with the rule each one failed on. It matches ErrValidationFailed.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: "failed on rule: " + rule}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %s", k, e.Fields[k])
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
