package history

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Action is a zero-argument forward or inverse action.
type Action func() error

// CommandID identifies an operation (or an empty log position).
// IDs are only meaningful for equality comparison.
type CommandID uint64

// lastID is the most recently assigned CommandID.
var lastID atomic.Uint64

// nextID returns a fresh CommandID.
func nextID() CommandID {
	return CommandID(lastID.Add(1))
}

// State is the direction an operation can be run in next.
type State int

const (
	// StateExecutable means the forward action may run.
	StateExecutable State = iota

	// StateUndoable means the inverse action may run.
	StateUndoable
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateExecutable:
		return "executable"
	case StateUndoable:
		return "undoable"
	default:
		return "unknown"
	}
}

// Operation pairs a forward action with its exact inverse.
type Operation struct {
	id      CommandID
	label   string
	forward Action
	inverse Action
	state   State
}

// NewOperation creates an operation in StateExecutable.
// A nil action is treated as a no-op.
func NewOperation(forward, inverse Action) *Operation {
	return &Operation{
		id:      nextID(),
		forward: forward,
		inverse: inverse,
		state:   StateExecutable,
	}
}

// newLabeledOperation creates an operation carrying a display label.
func newLabeledOperation(label string, forward, inverse Action) *Operation {
	op := NewOperation(forward, inverse)
	op.label = label
	return op
}

// ID returns the operation's command ID.
func (op *Operation) ID() CommandID {
	return op.id
}

// Label returns the operation's display label, if any.
func (op *Operation) Label() string {
	return op.label
}

// State returns the operation's current state.
func (op *Operation) State() State {
	return op.state
}

// Execute runs the forward action.
// Returns ErrIllegalOperation unless the operation is executable.
// If the action fails the state is left unchanged.
func (op *Operation) Execute() error {
	if op.state != StateExecutable {
		return op.illegal("execute")
	}
	if op.forward != nil {
		if err := op.forward(); err != nil {
			return errors.Wrapf(err, "execute %s", op)
		}
	}
	op.state = StateUndoable
	return nil
}

// Undo runs the inverse action.
// Returns ErrIllegalOperation unless the operation is undoable.
// If the action fails the state is left unchanged.
func (op *Operation) Undo() error {
	if op.state != StateUndoable {
		return op.illegal("undo")
	}
	if op.inverse != nil {
		if err := op.inverse(); err != nil {
			return errors.Wrapf(err, "undo %s", op)
		}
	}
	op.state = StateExecutable
	return nil
}

// markApplied records that the caller already performed the forward effect.
func (op *Operation) markApplied() {
	op.state = StateUndoable
}

func (op *Operation) illegal(attempt string) error {
	return errors.Wrapf(ErrIllegalOperation, "cannot %s %s in %s state", attempt, op, op.state)
}

// String returns a short description for diagnostics.
func (op *Operation) String() string {
	if op.label != "" {
		return fmt.Sprintf("operation %d (%s)", op.id, op.label)
	}
	return fmt.Sprintf("operation %d", op.id)
}
