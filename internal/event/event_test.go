package event

import "testing"

func TestFeedEmitsInOrder(t *testing.T) {
	var f Feed[int]
	var got []string
	f.Subscribe(func(v int) { got = append(got, "a") })
	f.Subscribe(func(v int) { got = append(got, "b") })
	f.Emit(1)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestFeedUnsubscribeDuringEmit(t *testing.T) {
	var f Feed[string]
	calls := 0
	var second *Subscription
	f.Subscribe(func(string) {
		calls++
		f.Unsubscribe(second)
	})
	second = f.Subscribe(func(string) { calls++ })

	// The snapshot taken at Emit still includes the second listener.
	f.Emit("x")
	if calls != 2 {
		t.Fatalf("calls=%d, want 2", calls)
	}
	if f.Len() != 1 {
		t.Fatalf("len=%d, want 1", f.Len())
	}

	f.Emit("y")
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestFeedSubscribeDuringEmitWaitsForNextEmit(t *testing.T) {
	var f Feed[int]
	late := 0
	f.Subscribe(func(int) {
		if f.Len() == 1 {
			f.Subscribe(func(int) { late++ })
		}
	})
	f.Emit(1)
	if late != 0 {
		t.Fatalf("listener added during Emit ran in the same Emit")
	}
	f.Emit(2)
	if late != 1 {
		t.Fatalf("late=%d, want 1", late)
	}
}

func TestFeedNilAndUnknown(t *testing.T) {
	var f Feed[int]
	if f.Subscribe(nil) != nil {
		t.Fatalf("nil listener should not subscribe")
	}
	if f.Unsubscribe(nil) || f.Unsubscribe(&Subscription{}) {
		t.Fatalf("unknown subscription should not be removed")
	}
	f.Subscribe(func(int) {})
	f.Clear()
	if f.Len() != 0 {
		t.Fatalf("Clear left %d listeners", f.Len())
	}
}
