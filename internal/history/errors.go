package history

import "github.com/pkg/errors"

// Common errors for history operations.
var (
	// ErrIllegalOperation is returned when an operation is executed or undone
	// in the wrong state. It indicates a caller bug.
	ErrIllegalOperation = errors.New("illegal operation")

	// ErrNoMoreOperations is returned when there is nothing left to undo or redo.
	ErrNoMoreOperations = errors.New("no more operations")

	// ErrAggregationOpen is returned when undo or redo is requested while an
	// aggregation scope is still open.
	ErrAggregationOpen = errors.New("aggregation scope is open")
)
