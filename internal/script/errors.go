package script

import "errors"

// Errors for script execution.
var (
	// ErrClosed is returned when running a script on a closed engine.
	ErrClosed = errors.New("script engine is closed")

	// ErrTimeout is returned when a script exceeds its time limit.
	ErrTimeout = errors.New("script timed out")

	// ErrSyntax is returned when a chunk fails to compile.
	ErrSyntax = errors.New("script syntax error")
)
