package service

import (
	"fmt"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/store"
)

// ErrNotFound and ErrConflict surface storage-level outcomes unchanged so
// handlers can map them to 404 and 409.
var (
	ErrNotFound = store.ErrNotFound
	ErrConflict = store.ErrConflict
)

// ValidationError reports input rejected before any state change or network
// call was attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
