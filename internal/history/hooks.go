package history

// Hooks receives history events that are not visible through change
// notifications, such as truncation and eviction. Used for metrics.
type Hooks interface {
	// Recorded is called after an operation is appended to a log.
	Recorded(log string)

	// Undone is called after the manager undoes one root entry.
	Undone(log string)

	// Redone is called after the manager redoes one root entry.
	Redone(log string)

	// Truncated is called when recording discards redoable entries.
	Truncated(log string, dropped int)

	// Evicted is called when the oldest entries are dropped for capacity.
	Evicted(log string, evicted int)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) Recorded(string)       {}
func (NopHooks) Undone(string)         {}
func (NopHooks) Redone(string)         {}
func (NopHooks) Truncated(string, int) {}
func (NopHooks) Evicted(string, int)   {}
