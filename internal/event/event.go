// Package event provides multi-subscriber observer lists.
//
// A Feed is owned by a single goroutine: Subscribe, Unsubscribe and Emit are
// not synchronized. Emit iterates over a snapshot of the listener list, so a
// listener may subscribe or unsubscribe (itself or others) while running.
package event

// Subscription identifies one listener on a Feed.
type Subscription struct {
	id uint64
}

type listener[T any] struct {
	sub *Subscription
	fn  func(T)
}

// Feed is an ordered list of listeners for values of type T.
type Feed[T any] struct {
	next      uint64
	listeners []listener[T]
}

// Subscribe appends fn and returns the handle used to remove it.
func (f *Feed[T]) Subscribe(fn func(T)) *Subscription {
	if fn == nil {
		return nil
	}
	f.next++
	sub := &Subscription{id: f.next}
	f.listeners = append(f.listeners, listener[T]{sub: sub, fn: fn})
	return sub
}

// Unsubscribe removes the listener for sub. It reports whether it was found.
func (f *Feed[T]) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	for i, l := range f.listeners {
		if l.sub == sub {
			// Copy rather than re-slice in place: an Emit in progress holds
			// the old backing array.
			out := make([]listener[T], 0, len(f.listeners)-1)
			out = append(out, f.listeners[:i]...)
			out = append(out, f.listeners[i+1:]...)
			f.listeners = out
			return true
		}
	}
	return false
}

// Emit calls every listener subscribed at the time of the call, in
// subscription order.
func (f *Feed[T]) Emit(v T) {
	snapshot := f.listeners
	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of listeners.
func (f *Feed[T]) Len() int { return len(f.listeners) }

// Clear drops every listener.
func (f *Feed[T]) Clear() { f.listeners = nil }
