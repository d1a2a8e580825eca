package session

import "errors"

// ErrNoOpenScope is returned by End when no scope was opened with Begin.
var ErrNoOpenScope = errors.New("no open aggregation scope")
