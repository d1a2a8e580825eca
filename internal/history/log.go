package history

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/pkg/errors"
)

// Log is a linear log of reversible operations.
//
// Entries at or below the cursor have been applied (StateUndoable); entries
// above it are waiting to be redone (StateExecutable).
type Log struct {
	name string
	ops  []*Operation

	// cursor is the index of the last applied operation, -1 when none.
	cursor int

	// capacity is the maximum number of entries, 0 for unbounded.
	capacity int

	// sentinel is the command ID reported when the cursor points at nothing.
	sentinel CommandID

	logger *slog.Logger
	hooks  Hooks
}

// EntryInfo provides read-only info about a log entry.
type EntryInfo struct {
	Index   int
	ID      CommandID
	Label   string
	State   State
	Current bool // entry is at the cursor
}

// NewLog creates an empty log.
func NewLog(name string, opts ...Option) *Log {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return newLog(name, o)
}

func newLog(name string, o options) *Log {
	return &Log{
		name:     name,
		cursor:   -1,
		capacity: o.capacity,
		sentinel: nextID(),
		logger:   o.logger,
		hooks:    o.hooks,
	}
}

// String returns a short description for diagnostics.
func (l *Log) String() string {
	return fmt.Sprintf("Log(name=%s capacity=%d)", l.name, l.capacity)
}

// Name returns the log name.
func (l *Log) Name() string {
	return l.name
}

// Cursor returns the index of the last applied operation, or -1.
func (l *Log) Cursor() int {
	return l.cursor
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.ops)
}

// Capacity returns the maximum number of entries (0 for unbounded).
func (l *Log) Capacity() int {
	return l.capacity
}

// HasCommands returns true if the log holds any entry.
func (l *Log) HasCommands() bool {
	return len(l.ops) > 0
}

// CanUndo returns true if undo is available.
func (l *Log) CanUndo() bool {
	return l.cursor >= 0
}

// CanRedo returns true if redo is available.
func (l *Log) CanRedo() bool {
	return l.cursor < len(l.ops)-1
}

// CommandID returns the ID of the operation at the cursor, or the log's own
// stable ID when the cursor points at nothing.
func (l *Log) CommandID() CommandID {
	if l.cursor < 0 || l.cursor >= len(l.ops) {
		return l.sentinel
	}
	return l.ops[l.cursor].id
}

// Record appends an already-applied operation after the cursor.
// The forward action is not run. Any redoable entries are discarded.
func (l *Log) Record(forward, inverse Action) CommandID {
	return l.RecordLabeled("", forward, inverse)
}

// RecordLabeled is like Record but attaches a display label to the entry.
func (l *Log) RecordLabeled(label string, forward, inverse Action) CommandID {
	op := newLabeledOperation(label, forward, inverse)
	op.markApplied()
	l.add(op)
	return op.id
}

// add inserts op after the cursor.
func (l *Log) add(op *Operation) {
	// History must be contiguous in time, so later entries are lost.
	if l.CanRedo() {
		dropped := len(l.ops) - 1 - l.cursor
		latest := l.ops[len(l.ops)-1]
		l.ops = slices.Delete(l.ops, l.cursor+1, len(l.ops))

		l.logger.Info("discarded redo history",
			slog.String("log", l.name),
			slog.Int("dropped", dropped),
			slog.String("latest", latest.String()),
			slog.String("recorded", op.String()))
		l.hooks.Truncated(l.name, dropped)
	}

	l.ops = append(l.ops, op)
	l.cursor++
	l.hooks.Recorded(l.name)

	if l.capacity > 0 && len(l.ops) > l.capacity {
		l.evict(len(l.ops) - l.capacity)
	}
}

// evict drops the n oldest entries and shifts the cursor to match.
func (l *Log) evict(n int) {
	if n <= 0 {
		return
	}
	if n > len(l.ops) {
		n = len(l.ops)
	}

	l.ops = slices.Delete(l.ops, 0, n)
	l.cursor -= n
	if l.cursor < -1 {
		l.cursor = -1
	}

	l.logger.Debug("evicted oldest history entries",
		slog.String("log", l.name),
		slog.Int("evicted", n),
		slog.Int("capacity", l.capacity))
	l.hooks.Evicted(l.name, n)
}

// SetCapacity changes the maximum number of entries.
// If the log is larger, the oldest entries are removed.
func (l *Log) SetCapacity(n int) {
	if n < 0 {
		n = 0
	}
	l.capacity = n
	if n > 0 && len(l.ops) > n {
		l.evict(len(l.ops) - n)
	}
}

// Undo reverts the operation at the cursor and moves the cursor back.
// If the inverse action fails the cursor is restored.
func (l *Log) Undo() error {
	if !l.CanUndo() {
		return errors.Wrapf(ErrNoMoreOperations, "log %s: cannot undo", l.name)
	}

	op := l.ops[l.cursor]
	l.cursor--

	if err := op.Undo(); err != nil {
		l.cursor++
		return err
	}
	return nil
}

// Redo moves the cursor forward and re-applies the operation there.
// If the forward action fails the cursor is restored.
func (l *Log) Redo() error {
	if !l.CanRedo() {
		return errors.Wrapf(ErrNoMoreOperations, "log %s: cannot redo", l.name)
	}

	l.cursor++
	op := l.ops[l.cursor]

	if err := op.Execute(); err != nil {
		l.cursor--
		return err
	}
	return nil
}

// UndoAll undoes until nothing is left to undo.
func (l *Log) UndoAll() error {
	for l.CanUndo() {
		if err := l.Undo(); err != nil {
			return err
		}
	}
	return nil
}

// RedoAll redoes until nothing is left to redo.
func (l *Log) RedoAll() error {
	for l.CanRedo() {
		if err := l.Redo(); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns info about every entry, oldest first.
func (l *Log) Entries() []EntryInfo {
	result := make([]EntryInfo, len(l.ops))
	for i, op := range l.ops {
		result[i] = EntryInfo{
			Index:   i,
			ID:      op.id,
			Label:   op.label,
			State:   op.state,
			Current: i == l.cursor,
		}
	}
	return result
}
