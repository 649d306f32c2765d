package lineage

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the tracer.
var (
	// ErrColumnNotFound matches a *ColumnNotFoundError.
	ErrColumnNotFound = errors.New("column not found")
	// ErrTableNotFound is returned when the entry table has no project file.
	ErrTableNotFound = errors.New("table not found")
)

// ColumnNotFoundError reports an entry column that no branch of the entry
// table's query projects.
type ColumnNotFoundError struct {
	Table  string
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found in %s", e.Column, e.Table)
}

// Is makes errors.Is(err, ErrColumnNotFound) match.
func (e *ColumnNotFoundError) Is(target error) bool {
	return target == ErrColumnNotFound
}

// ErrorKind classifies an *ErrorNode.
type ErrorKind string

// Error kinds recorded in lineage trees.
const (
	ErrorColumnNotFound         ErrorKind = "column_not_found"
	ErrorAmbiguousReference     ErrorKind = "ambiguous_reference"
	ErrorCircularReference      ErrorKind = "circular_reference"
	ErrorFileLoad               ErrorKind = "file_load_error"
	ErrorParse                  ErrorKind = "parse_error"
	ErrorRecursionLimitExceeded ErrorKind = "recursion_limit_exceeded"
	ErrorStepBudgetExceeded     ErrorKind = "step_budget_exceeded"
)
