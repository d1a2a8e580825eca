package history

import (
	"errors"
	"testing"

	"github.com/dshills/nodegraph/internal/notify"
)

// recordInto applies an addition to c and records it on m.
func recordInto(m *Manager, c *counter, n int, name string) {
	forward, inverse := c.add(n, name)
	c.value += n
	m.Record(forward, inverse)
}

// collect subscribes to m and returns a pointer to the received changes.
func collect(m *Manager) *[]notify.Change {
	var changes []notify.Change
	m.Subscribe(func(c notify.Change) {
		changes = append(changes, c)
	})
	return &changes
}

func TestNewManager(t *testing.T) {
	m := NewManager()

	if m.Name() != DefaultRootName {
		t.Errorf("Name() = %q, want %q", m.Name(), DefaultRootName)
	}
	if m.Root() != m.Current() {
		t.Error("root should be the active log")
	}
	if m.Depth() != 0 {
		t.Errorf("Depth() = %d", m.Depth())
	}
	if m.CanUndo() || m.CanRedo() {
		t.Error("new manager should have nothing to undo or redo")
	}
}

func TestManagerRecordNotifies(t *testing.T) {
	m := NewManager(WithName("doc"))
	changes := collect(m)
	c := &counter{}

	recordInto(m, c, 1, "a")

	if len(*changes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(*changes))
	}
	got := (*changes)[0]
	if got.CommandID != uint64(m.CommandID()) {
		t.Errorf("CommandID = %d, want %d", got.CommandID, m.CommandID())
	}
	if got.Kind != notify.KindRecord || got.Log != "doc" {
		t.Errorf("change = %+v", got)
	}
}

func TestManagerUndoRedo(t *testing.T) {
	m := NewManager()
	c := &counter{}
	recordInto(m, c, 1, "a")
	recordInto(m, c, 2, "b")

	changes := collect(m)

	if err := m.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if c.value != 1 {
		t.Errorf("after undo: value = %d, want 1", c.value)
	}
	if err := m.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if c.value != 3 {
		t.Errorf("after redo: value = %d, want 3", c.value)
	}

	if len(*changes) != 2 {
		t.Fatalf("got %d notifications, want 2", len(*changes))
	}
	if (*changes)[0].Kind != notify.KindUndo || (*changes)[1].Kind != notify.KindRedo {
		t.Errorf("kinds = %v, %v", (*changes)[0].Kind, (*changes)[1].Kind)
	}
}

func TestManagerUndoEmpty(t *testing.T) {
	m := NewManager()
	changes := collect(m)

	if err := m.Undo(); !errors.Is(err, ErrNoMoreOperations) {
		t.Errorf("Undo() error = %v, want ErrNoMoreOperations", err)
	}
	if err := m.Redo(); !errors.Is(err, ErrNoMoreOperations) {
		t.Errorf("Redo() error = %v, want ErrNoMoreOperations", err)
	}
	if len(*changes) != 0 {
		t.Errorf("failed undo/redo raised %d notifications", len(*changes))
	}
	if m.Root().Cursor() != -1 || m.Root().Len() != 0 {
		t.Error("failed undo/redo changed the log")
	}
}

func TestManagerRecordSuppressedDuringReplay(t *testing.T) {
	m := NewManager()
	value := 0

	// set mimics collaborator code that records whenever it runs.
	var set func(v int) error
	set = func(v int) error {
		old := value
		value = v
		m.Record(func() error { return set(v) }, func() error { return set(old) })
		return nil
	}

	_ = set(1)
	_ = set(2)

	if m.Root().Len() != 2 {
		t.Fatalf("Len() = %d, want 2", m.Root().Len())
	}

	if err := m.Undo(); err != nil {
		t.Fatal(err)
	}
	if value != 1 {
		t.Errorf("value = %d, want 1", value)
	}
	if err := m.Redo(); err != nil {
		t.Fatal(err)
	}
	if value != 2 {
		t.Errorf("value = %d, want 2", value)
	}

	if m.Root().Len() != 2 {
		t.Errorf("replay recorded new entries: Len() = %d, want 2", m.Root().Len())
	}
	if m.CanRedo() {
		t.Error("replay truncated or extended the log")
	}
}

func TestManagerAggregateRoundTrip(t *testing.T) {
	m := NewManager()
	c := &counter{}

	err := m.Aggregate("batch", func() error {
		recordInto(m, c, 1, "a")
		recordInto(m, c, 10, "b")
		recordInto(m, c, 100, "c")
		return nil
	})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if m.Root().Len() != 1 {
		t.Fatalf("root Len() = %d, want 1", m.Root().Len())
	}
	if m.Current() != m.Root() {
		t.Error("root not restored after scope")
	}
	if label := m.Root().Entries()[0].Label; label != "<root>.batch" {
		t.Errorf("composite label = %q, want %q", label, "<root>.batch")
	}

	c.trail = nil
	if err := m.Undo(); err != nil {
		t.Fatalf("Undo() error = %v", err)
	}
	if c.value != 0 {
		t.Errorf("after undo: value = %d, want 0", c.value)
	}
	if err := m.Redo(); err != nil {
		t.Fatalf("Redo() error = %v", err)
	}
	if c.value != 111 {
		t.Errorf("after redo: value = %d, want 111", c.value)
	}

	want := []string{"-c", "-b", "-a", "+a", "+b", "+c"}
	if len(c.trail) != len(want) {
		t.Fatalf("trail = %v, want %v", c.trail, want)
	}
	for i := range want {
		if c.trail[i] != want[i] {
			t.Fatalf("trail = %v, want %v", c.trail, want)
		}
	}
}

func TestManagerAggregateNotifiesOnce(t *testing.T) {
	m := NewManager()
	changes := collect(m)
	c := &counter{}

	_ = m.Aggregate("batch", func() error {
		recordInto(m, c, 1, "a")
		recordInto(m, c, 1, "b")
		recordInto(m, c, 1, "c")
		if len(*changes) != 0 {
			t.Errorf("notified %d times inside scope", len(*changes))
		}
		return nil
	})

	if len(*changes) != 1 {
		t.Fatalf("got %d notifications, want 1", len(*changes))
	}
	if (*changes)[0].CommandID != uint64(m.CommandID()) {
		t.Error("notification does not carry the composite's command ID")
	}
}

func TestManagerAggregateEmpty(t *testing.T) {
	m := NewManager()
	changes := collect(m)
	before := m.CommandID()

	_ = m.Aggregate("nothing", func() error { return nil })

	if m.Root().Len() != 0 {
		t.Errorf("empty scope added %d entries", m.Root().Len())
	}
	if len(*changes) != 0 {
		t.Errorf("empty scope raised %d notifications", len(*changes))
	}
	if m.CommandID() != before {
		t.Error("empty scope changed the command ID")
	}
}

func TestManagerAggregateNested(t *testing.T) {
	m := NewManager()
	changes := collect(m)
	c := &counter{}

	_ = m.Aggregate("outer", func() error {
		recordInto(m, c, 1, "a")
		return m.Aggregate("inner", func() error {
			if m.Name() != "<root>.outer.inner" {
				t.Errorf("nested name = %q", m.Name())
			}
			if m.Depth() != 2 {
				t.Errorf("Depth() = %d, want 2", m.Depth())
			}
			recordInto(m, c, 10, "b")
			recordInto(m, c, 100, "c")
			return nil
		})
	})

	if m.Root().Len() != 1 {
		t.Fatalf("root Len() = %d, want 1", m.Root().Len())
	}
	if len(*changes) != 1 {
		t.Errorf("got %d notifications, want 1", len(*changes))
	}

	if err := m.Undo(); err != nil {
		t.Fatal(err)
	}
	if c.value != 0 {
		t.Errorf("after undo: value = %d, want 0", c.value)
	}
	if err := m.Redo(); err != nil {
		t.Fatal(err)
	}
	if c.value != 111 {
		t.Errorf("after redo: value = %d, want 111", c.value)
	}
}

func TestManagerAggregateError(t *testing.T) {
	m := NewManager()
	c := &counter{}
	boom := errors.New("boom")

	err := m.Aggregate("failing", func() error {
		recordInto(m, c, 5, "a")
		return boom
	})

	if !errors.Is(err, boom) {
		t.Errorf("Aggregate() error = %v, want boom", err)
	}
	if m.Current() != m.Root() {
		t.Error("root not restored after failing scope")
	}
	if m.Root().Len() != 1 {
		t.Errorf("partial work not folded: root Len() = %d", m.Root().Len())
	}
}

func TestManagerAggregatePanic(t *testing.T) {
	m := NewManager()
	c := &counter{}

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic")
			}
		}()
		_ = m.Aggregate("panicking", func() error {
			recordInto(m, c, 1, "a")
			panic("collaborator bug")
		})
	}()

	if m.Current() != m.Root() || m.Depth() != 0 {
		t.Error("scope not released after panic")
	}
	if m.Root().Len() != 1 {
		t.Errorf("root Len() = %d, want 1", m.Root().Len())
	}
}

func TestManagerBeginAggregateDefer(t *testing.T) {
	m := NewManager()
	c := &counter{}

	func() {
		scope := m.BeginAggregate("move")
		defer scope.End()

		recordInto(m, c, 1, "a")
		recordInto(m, c, 1, "b")

		if scope.Log().Len() != 2 {
			t.Errorf("scope log Len() = %d, want 2", scope.Log().Len())
		}
	}()

	if m.Root().Len() != 1 {
		t.Errorf("root Len() = %d, want 1", m.Root().Len())
	}
}

func TestAggregateScopeEndTwice(t *testing.T) {
	m := NewManager()
	c := &counter{}

	scope := m.BeginAggregate("x")
	recordInto(m, c, 1, "a")
	scope.End()
	scope.End()

	if m.Root().Len() != 1 {
		t.Errorf("root Len() = %d, want 1", m.Root().Len())
	}
}

func TestAggregateScopeEndOutOfOrder(t *testing.T) {
	m := NewManager()
	outer := m.BeginAggregate("outer")
	_ = m.BeginAggregate("inner")

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for out-of-order End")
		}
	}()
	outer.End()
}

func TestManagerUndoInsideAggregate(t *testing.T) {
	m := NewManager()
	c := &counter{}
	recordInto(m, c, 1, "a")

	_ = m.Aggregate("batch", func() error {
		if err := m.Undo(); !errors.Is(err, ErrAggregationOpen) {
			t.Errorf("Undo() error = %v, want ErrAggregationOpen", err)
		}
		return nil
	})

	if c.value != 1 {
		t.Errorf("value = %d, want 1", c.value)
	}
}

func TestManagerNotificationReentrancy(t *testing.T) {
	m := NewManager()
	c := &counter{}

	calls := 0
	m.Subscribe(func(notify.Change) {
		calls++
		if calls == 1 {
			// A subscriber triggering another record must not cause a nested dispatch.
			recordInto(m, c, 1, "nested")
		}
	})

	recordInto(m, c, 1, "a")

	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
	if m.Root().Len() != 2 {
		t.Errorf("nested record lost: Len() = %d, want 2", m.Root().Len())
	}
}

func TestManagerUnsubscribe(t *testing.T) {
	m := NewManager()
	c := &counter{}

	calls := 0
	sub := m.Subscribe(func(notify.Change) { calls++ })
	recordInto(m, c, 1, "a")
	sub.Unsubscribe()
	recordInto(m, c, 1, "b")

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestManagerDirtyTracking(t *testing.T) {
	m := NewManager()
	c := &counter{}

	saved := m.CommandID()
	recordInto(m, c, 1, "a")
	if m.CommandID() == saved {
		t.Fatal("record did not change the command ID")
	}

	_ = m.Undo()
	if m.CommandID() != saved {
		t.Error("undo back to the saved position should restore the saved command ID")
	}
}

type managerHooks struct {
	NopHooks
	undone, redone int
}

func (h *managerHooks) Undone(string) { h.undone++ }
func (h *managerHooks) Redone(string) { h.redone++ }

func TestManagerHooks(t *testing.T) {
	h := &managerHooks{}
	m := NewManager(WithHooks(h))
	c := &counter{}

	_ = m.Aggregate("batch", func() error {
		recordInto(m, c, 1, "a")
		recordInto(m, c, 1, "b")
		return nil
	})
	_ = m.Undo()
	_ = m.Redo()

	if h.undone != 1 || h.redone != 1 {
		t.Errorf("undone=%d redone=%d, want 1 and 1", h.undone, h.redone)
	}
}

func TestManagerSetCapacity(t *testing.T) {
	m := NewManager(WithCapacity(10))
	c := &counter{}
	for i := 0; i < 6; i++ {
		recordInto(m, c, 1, "x")
	}

	m.SetCapacity(4)

	if m.Root().Len() != 4 || m.Root().Capacity() != 4 {
		t.Errorf("Len()=%d Capacity()=%d, want 4 and 4", m.Root().Len(), m.Root().Capacity())
	}
}
