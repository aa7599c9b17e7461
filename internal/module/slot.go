package module

import "sync"

// Slot is a lazily constructed, process wide controller instance. Dispose
// drops the instance so the next Get builds fresh state.
type Slot[T Controller] struct {
	mu    sync.Mutex
	build func() T
	inst  T
	ok    bool
}

func NewSlot[T Controller](build func() T) *Slot[T] {
	return &Slot[T]{build: build}
}

// Get returns the current instance, constructing it on first access.
func (s *Slot[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok {
		s.inst = s.build()
		s.ok = true
	}
	return s.inst
}

// Peek returns the instance without constructing one.
func (s *Slot[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inst, s.ok
}

// Dispose disposes and forgets the instance, if any.
func (s *Slot[T]) Dispose() {
	s.mu.Lock()
	inst, ok := s.inst, s.ok
	var zero T
	s.inst, s.ok = zero, false
	s.mu.Unlock()
	if ok {
		inst.Dispose()
	}
}
