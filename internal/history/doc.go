// Package history provides the undo/redo command log for the node graph editor.
//
// The history system records reversible operations as pairs of forward and
// inverse actions. Recording never runs the forward action: the caller has
// already applied the effect and hands over the closures needed to replay or
// revert it. Key concepts:
//
// # Operations
//
// An Operation wraps a forward Action and its inverse. It alternates between
// StateExecutable and StateUndoable; calling Execute or Undo out of turn
// returns ErrIllegalOperation instead of running the action twice.
//
// # Command Log
//
// A Log is a linear, cursor-based list of operations (the undo and redo
// stacks folded into one slice):
//
//	log := history.NewLog("<main>", history.WithCapacity(200))
//	log.Record(redoFn, undoFn)
//	log.Undo()
//	log.Redo()
//
// Recording while the cursor is not at the end discards everything after the
// cursor; there is no redo tree. When the log grows past its capacity the
// oldest entry is evicted.
//
// # Manager
//
// The Manager owns the root log and is what editor components talk to:
//
//	m := history.NewManager()
//	m.Subscribe(func(c notify.Change) { markDirty(c.CommandID) })
//	m.Record(redoFn, undoFn)
//
// # Aggregation
//
// Several recorded operations can be folded into a single undo unit:
//
//	err := m.Aggregate("delete nodes", func() error {
//	    for _, n := range selected {
//	        deleteNode(n) // records one operation each
//	    }
//	    return nil
//	})
//
// or, with defer:
//
//	defer m.BeginAggregate("move").End()
//
// Subscribers see exactly one notification once the outermost scope closes.
//
// # Re-entrancy
//
// Undo and Redo replay collaborator code that would normally record
// operations of its own. Those nested Record calls are silently dropped while
// an undo or redo is in flight. Notifications raised while observers are
// being called are coalesced into the outer one.
//
// # Thread Safety
//
// Logs and Managers are not safe for concurrent use. They are driven from a
// single event loop.
package history
