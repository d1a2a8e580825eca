package notify

import (
	"testing"
)

func TestNew(t *testing.T) {
	n := New()
	if n == nil {
		t.Fatal("New() returned nil")
	}
	defer n.Close()

	if n.Count() != 0 {
		t.Errorf("Count() = %d, want 0", n.Count())
	}
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindRecord, "record"},
		{KindUndo, "undo"},
		{KindRedo, "redo"},
		{Kind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var received []Change
	sub := n.Subscribe(func(change Change) {
		received = append(received, change)
	})

	n.Notify(Change{CommandID: 7, Kind: KindRecord, Log: "<root>"})

	if len(received) != 1 {
		t.Fatalf("received %d changes, want 1", len(received))
	}
	if received[0].CommandID != 7 {
		t.Errorf("CommandID = %d, want 7", received[0].CommandID)
	}

	sub.Unsubscribe()
	n.Notify(Change{CommandID: 8})

	if len(received) != 1 {
		t.Error("unsubscribed observer received notification")
	}
}

func TestNotifier_Order(t *testing.T) {
	n := New()
	defer n.Close()

	var order []int
	n.Subscribe(func(Change) { order = append(order, 1) })
	n.Subscribe(func(Change) { order = append(order, 2) })
	n.Subscribe(func(Change) { order = append(order, 3) })

	n.Notify(Change{})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("delivery order = %v, want [1 2 3]", order)
	}
}

func TestSubscription_UnsubscribeTwice(t *testing.T) {
	n := New()
	defer n.Close()

	sub := n.Subscribe(func(Change) {})
	other := n.Subscribe(func(Change) {})

	sub.Unsubscribe()
	sub.Unsubscribe()

	if n.Count() != 1 {
		t.Errorf("Count() = %d, want 1", n.Count())
	}

	other.Unsubscribe()
	if n.Count() != 0 {
		t.Errorf("Count() = %d, want 0", n.Count())
	}
}

func TestNotifier_UnsubscribeDuringDelivery(t *testing.T) {
	n := New()
	defer n.Close()

	calls := 0
	var sub *Subscription
	sub = n.Subscribe(func(Change) {
		calls++
		sub.Unsubscribe()
	})

	n.Notify(Change{})
	n.Notify(Change{})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNotifier_ObserverPanic(t *testing.T) {
	n := New()
	defer n.Close()

	reached := false
	n.Subscribe(func(Change) { panic("boom") })
	n.Subscribe(func(Change) { reached = true })

	n.Notify(Change{})

	if !reached {
		t.Error("observer after a panicking observer was not called")
	}
}

func TestNotifier_Close(t *testing.T) {
	n := New()

	called := false
	n.Subscribe(func(Change) { called = true })

	n.Close()
	n.Close()
	n.Notify(Change{})

	if called {
		t.Error("observer called after Close")
	}
	if n.Count() != 0 {
		t.Errorf("Count() = %d after Close, want 0", n.Count())
	}
}
