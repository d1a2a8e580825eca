// Package notify provides change notification for command log updates.
//
// The notify package implements an observer pattern that allows components
// to subscribe to history changes and receive a callback carrying the
// command ID that is current after the change.
package notify

import (
	"log/slog"
	"sync"
)

// Kind represents what kind of mutation produced a change.
type Kind int

const (
	// KindRecord indicates a new operation was recorded.
	KindRecord Kind = iota

	// KindUndo indicates an operation was undone.
	KindUndo

	// KindRedo indicates an operation was redone.
	KindRedo
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindUndo:
		return "undo"
	case KindRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// Change represents a command log update.
type Change struct {
	// CommandID identifies the log position after the change. It is only
	// meaningful for equality comparison.
	CommandID uint64

	// Kind is the mutation that triggered the change.
	Kind Kind

	// Log is the name of the log that was mutated.
	Log string
}

// Observer is called when the command log changes.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes this subscription.
// Safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.notifier == nil {
		return
	}
	s.notifier.unsubscribe(s.id)
	s.notifier = nil
}

// Notifier manages change subscriptions.
type Notifier struct {
	mu sync.RWMutex

	observers map[uint64]Observer
	order     []uint64

	nextID uint64
	closed bool

	logger *slog.Logger
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger used to report observer panics.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		observers: make(map[uint64]Observer),
		logger:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(n)
	}

	return n
}

// Subscribe registers an observer for all changes.
// Observers are called in subscription order.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers[id] = observer
	n.order = append(n.order, id)

	return &Subscription{
		id:       id,
		notifier: n,
	}
}

// unsubscribe removes an observer by ID.
func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.observers[id]; !ok {
		return
	}
	delete(n.observers, id)

	for i, oid := range n.order {
		if oid == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
}

// Notify delivers a change to every observer synchronously.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}

	// Copy so observers may subscribe or unsubscribe during delivery.
	observers := make([]Observer, 0, len(n.order))
	for _, id := range n.order {
		observers = append(observers, n.observers[id])
	}
	n.mu.RUnlock()

	for _, observer := range observers {
		n.safeCall(observer, change)
	}
}

// safeCall calls an observer with panic recovery.
func (n *Notifier) safeCall(observer Observer, change Change) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("change observer panicked",
				slog.Any("panic", r),
				slog.String("kind", change.Kind.String()),
				slog.String("log", change.Log))
		}
	}()
	observer(change)
}

// Count returns the number of active subscriptions.
func (n *Notifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Close drops all observers. Later notifications are ignored.
// Safe to call multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	n.observers = make(map[uint64]Observer)
	n.order = nil
}
