package realtime

import (
	"sync"

	"github.com/dulcera/syncbridge/event"
)

// syncQueue is the in-memory priority queue the hub drains. New events are
// insertion-sorted so that high precedes medium precedes low while arrival
// order is preserved within a band. Not a heap: three bands only.
type syncQueue struct {
	mu     sync.Mutex
	items  []*event.SyncEvent
	notify chan struct{}
}

func newSyncQueue() *syncQueue {
	return &syncQueue{notify: make(chan struct{}, 1)}
}

// push inserts ev before the first queued item of strictly lower priority
func (q *syncQueue) push(ev *event.SyncEvent) {
	q.mu.Lock()

	idx := len(q.items)
	for i, queued := range q.items {
		if event.HigherPriority(ev.Priority, queued.Priority) {
			idx = i
			break
		}
	}

	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = ev
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop removes and returns the head of the queue, or nil when empty
func (q *syncQueue) pop() *event.SyncEvent {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev
}

func (q *syncQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// wait returns a channel that receives when new items arrive
func (q *syncQueue) wait() <-chan struct{} {
	return q.notify
}
