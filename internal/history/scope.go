package history

import "fmt"

// AggregateScope collects recorded operations into one undo unit.
// Usage:
//
//	func deleteSelection(m *history.Manager) {
//	    defer m.BeginAggregate("delete selection").End()
//	    // ... several Record calls ...
//	}
type AggregateScope struct {
	manager *Manager
	log     *Log
	ended   bool
}

// BeginAggregate opens a nested log named "<active>.<name>" and makes it the
// active log until End is called.
func (m *Manager) BeginAggregate(name string) *AggregateScope {
	// Nested logs are unbounded so a composite is never partially evicted.
	o := defaultOptions()
	o.capacity = 0
	o.logger = m.logger
	o.hooks = m.hooks

	nested := newLog(m.current.Name()+"."+name, o)
	m.parents = append(m.parents, m.current)
	m.current = nested

	return &AggregateScope{
		manager: m,
		log:     nested,
	}
}

// Log returns the scope's nested log.
func (s *AggregateScope) Log() *Log {
	return s.log
}

// End restores the previous log. If anything was recorded inside the scope,
// a single composite operation replaying the nested log is recorded on it.
// Safe to call multiple times; only the first call has effect.
// Scopes must end in reverse order of opening.
func (s *AggregateScope) End() {
	if s.ended {
		return
	}

	m := s.manager
	if m.current != s.log {
		panic(fmt.Sprintf("history: aggregation %s ended while %s is active", s.log.Name(), m.current.Name()))
	}
	s.ended = true

	last := len(m.parents) - 1
	m.current = m.parents[last]
	m.parents[last] = nil
	m.parents = m.parents[:last]

	if s.log.HasCommands() {
		m.RecordLabeled(s.log.Name(), s.log.RedoAll, s.log.UndoAll)
	}
}

// Aggregate runs fn inside an aggregation scope. The scope is closed on every
// exit path, including a panic in fn, and operations recorded before a
// failure are still folded into the parent log. fn's error is returned.
func (m *Manager) Aggregate(name string, fn func() error) error {
	scope := m.BeginAggregate(name)
	defer scope.End()
	return fn()
}
