// Package domain defines core types, interfaces, and errors for the external
// table catalog.
package domain

import "fmt"

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// SchemaError indicates that declared fields are incompatible with a format,
// or that fields could not be inferred from the external data.
type SchemaError struct {
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *SchemaError) Unwrap() error { return e.Err }

// TableNotFoundError indicates a table name absent from the catalog.
type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Name)
}

// Unwrap lets callers match the generic NotFoundError.
func (e *TableNotFoundError) Unwrap() error {
	return &NotFoundError{Message: e.Error()}
}

// DuplicateTableError indicates a CREATE of a table name already in use.
type DuplicateTableError struct {
	Name string
}

func (e *DuplicateTableError) Error() string {
	return fmt.Sprintf("table %q already exists", e.Name)
}

// Unwrap lets callers match the generic ConflictError.
func (e *DuplicateTableError) Unwrap() error {
	return &ConflictError{Message: e.Error()}
}

// UnknownConnectorError indicates a TYPE that no registered connector serves.
type UnknownConnectorError struct {
	Type string
}

func (e *UnknownConnectorError) Error() string {
	return fmt.Sprintf("unknown connector type %q", e.Type)
}

// InvalidTableError wraps any resolution or construction failure raised
// while validating a table definition.
type InvalidTableError struct {
	Name string
	Err  error
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid table definition for %q: %v", e.Name, e.Err)
}

func (e *InvalidTableError) Unwrap() error { return e.Err }

// ResourceError indicates an unreachable external location. It is never
// retried by the catalog.
type ResourceError struct {
	Location string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("access %q: %v", e.Location, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrResource wraps an I/O failure against an external location.
func ErrResource(location string, err error) *ResourceError {
	return &ResourceError{Location: location, Err: err}
}
