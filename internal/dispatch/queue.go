package dispatch

import (
	"sync"

	"ddt.game/internal/stream"
)

type item struct {
	frame []byte
	state *stream.StateChange
}

// Queue is the hand-off buffer between the stream receive goroutine and the
// foreground drain. Producers may push from any goroutine; takeAll is meant
// for a single consumer.
type Queue struct {
	mu    sync.Mutex
	items []item
}

func NewQueue() *Queue {
	return &Queue{}
}

// PushFrame enqueues a raw text frame. The slice is retained as is.
func (q *Queue) PushFrame(frame []byte) {
	q.mu.Lock()
	q.items = append(q.items, item{frame: frame})
	q.mu.Unlock()
}

// PushState enqueues a connection state notification.
func (q *Queue) PushState(change stream.StateChange) {
	q.mu.Lock()
	q.items = append(q.items, item{state: &change})
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// takeAll removes and returns everything queued so far, in push order.
func (q *Queue) takeAll() []item {
	q.mu.Lock()
	out := q.items
	q.items = nil
	q.mu.Unlock()
	return out
}

var _ stream.Inbox = (*Queue)(nil)
