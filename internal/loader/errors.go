package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation marks a file whose header or declared triple does
	// not match the workload schema.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrRowParse marks a row that could not be coerced or whose referenced
	// vertex could not be resolved.
	ErrRowParse = errors.New("row parse failure")
)

// SchemaViolationError reports why a file was rejected before any row was
// loaded. It matches ErrSchemaViolation with errors.Is.
type SchemaViolationError struct {
	File   string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.File, ErrSchemaViolation, e.Reason)
}

func (e *SchemaViolationError) Is(target error) bool { return target == ErrSchemaViolation }

func violation(file, format string, args ...any) error {
	return &SchemaViolationError{File: file, Reason: fmt.Sprintf(format, args...)}
}

// RowError reports the file and line of a failed row. It matches
// ErrRowParse with errors.Is and unwraps to the underlying cause.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *RowError) Is(target error) bool { return target == ErrRowParse }

func (e *RowError) Unwrap() error { return e.Err }
