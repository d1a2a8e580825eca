package history

import (
	"log/slog"

	"github.com/pkg/errors"

	"github.com/dshills/nodegraph/internal/notify"
)

// Manager owns the root command log of an editing session and the stack of
// open aggregation scopes.
type Manager struct {
	root    *Log
	current *Log

	// parents holds the logs that were active when each open scope began.
	parents []*Log

	logger   *slog.Logger
	hooks    Hooks
	notifier *notify.Notifier

	// replaying is held during undo/redo; Record calls are dropped meanwhile.
	replaying depthGuard
	// updating is held while observers run; nested notifications are dropped.
	updating depthGuard
}

// NewManager creates a manager with an empty root log.
func NewManager(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = notify.New(notify.WithLogger(o.logger))
	}

	root := newLog(o.name, o)
	return &Manager{
		root:     root,
		current:  root,
		logger:   o.logger,
		hooks:    o.hooks,
		notifier: o.notifier,
	}
}

// Root returns the root log.
func (m *Manager) Root() *Log {
	return m.root
}

// Current returns the active log: the root, or the innermost aggregation log.
func (m *Manager) Current() *Log {
	return m.current
}

// Name returns the name of the active log.
func (m *Manager) Name() string {
	return m.current.Name()
}

// Depth returns the number of open aggregation scopes.
func (m *Manager) Depth() int {
	return len(m.parents)
}

// CommandID returns the active log's command ID.
func (m *Manager) CommandID() CommandID {
	return m.current.CommandID()
}

// CanUndo returns true if the root log can undo.
func (m *Manager) CanUndo() bool {
	return m.root.CanUndo()
}

// CanRedo returns true if the root log can redo.
func (m *Manager) CanRedo() bool {
	return m.root.CanRedo()
}

// SetCapacity changes the root log capacity.
func (m *Manager) SetCapacity(n int) {
	m.root.SetCapacity(n)
}

// Subscribe registers an observer for change notifications.
// Call Unsubscribe on the returned subscription to stop receiving them.
func (m *Manager) Subscribe(observer notify.Observer) *notify.Subscription {
	return m.notifier.Subscribe(observer)
}

// Record adds an already-applied reversible operation to the active log.
// Calls made while an undo or redo is replaying are ignored.
func (m *Manager) Record(forward, inverse Action) {
	m.RecordLabeled("", forward, inverse)
}

// RecordLabeled is like Record but attaches a display label to the entry.
func (m *Manager) RecordLabeled(label string, forward, inverse Action) {
	if m.replaying.active() {
		m.logger.Debug("ignored record during replay",
			slog.String("log", m.current.Name()),
			slog.String("label", label))
		return
	}

	m.current.RecordLabeled(label, forward, inverse)
	m.changed(notify.KindRecord)
}

// Undo reverts the latest root entry.
func (m *Manager) Undo() error {
	if err := m.replay("undo", m.root.Undo); err != nil {
		return err
	}
	m.hooks.Undone(m.root.Name())
	m.changed(notify.KindUndo)
	return nil
}

// Redo re-applies the next root entry.
func (m *Manager) Redo() error {
	if err := m.replay("redo", m.root.Redo); err != nil {
		return err
	}
	m.hooks.Redone(m.root.Name())
	m.changed(notify.KindRedo)
	return nil
}

// replay runs fn with recording suppressed.
func (m *Manager) replay(what string, fn func() error) error {
	if len(m.parents) > 0 {
		return errors.Wrapf(ErrAggregationOpen, "cannot %s inside %s", what, m.current.Name())
	}

	defer m.replaying.enter()()
	return fn()
}

// changed publishes the current command ID unless a notification is already
// being delivered or an aggregation scope is still collecting operations.
func (m *Manager) changed(kind notify.Kind) {
	if m.updating.active() || len(m.parents) > 0 {
		return
	}

	defer m.updating.enter()()
	m.notifier.Notify(notify.Change{
		CommandID: uint64(m.CommandID()),
		Kind:      kind,
		Log:       m.current.Name(),
	})
}
