package document

import "errors"

// Errors for document edits.
var (
	// ErrInvalidPath is returned for empty or query-syntax paths.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidJSON is returned when a raw value is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON")

	// ErrNotFound is returned when deleting a path that does not exist.
	ErrNotFound = errors.New("path not found")
)
