package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dulcera/syncbridge/event"
)

func queuedEvent(id string, p event.Priority) *event.SyncEvent {
	ev := event.New(event.TypeOrderUpdated, event.SourceB2BPortal, nil,
		map[string]interface{}{"id": id, "customerId": "C1", "items": []interface{}{}}, p)
	ev.ID = id
	return ev
}

func TestQueueOrdersByPriority(t *testing.T) {
	q := newSyncQueue()
	q.push(queuedEvent("low-1", event.PriorityLow))
	q.push(queuedEvent("high-1", event.PriorityHigh))
	q.push(queuedEvent("medium-1", event.PriorityMedium))
	q.push(queuedEvent("high-2", event.PriorityHigh))

	var order []string
	for ev := q.pop(); ev != nil; ev = q.pop() {
		order = append(order, ev.ID)
	}
	assert.Equal(t, []string{"high-1", "high-2", "medium-1", "low-1"}, order)
}

func TestQueueStableWithinPriority(t *testing.T) {
	q := newSyncQueue()
	for _, id := range []string{"a", "b", "c", "d"} {
		q.push(queuedEvent(id, event.PriorityMedium))
	}

	var order []string
	for ev := q.pop(); ev != nil; ev = q.pop() {
		order = append(order, ev.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestQueuePopEmpty(t *testing.T) {
	q := newSyncQueue()
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.depth())
}

func TestQueueNotifiesOnPush(t *testing.T) {
	q := newSyncQueue()
	q.push(queuedEvent("x", event.PriorityLow))

	select {
	case <-q.wait():
	default:
		t.Fatal("expected notification after push")
	}
}

func TestQueueDepth(t *testing.T) {
	q := newSyncQueue()
	q.push(queuedEvent("a", event.PriorityLow))
	q.push(queuedEvent("b", event.PriorityHigh))
	assert.Equal(t, 2, q.depth())

	q.pop()
	assert.Equal(t, 1, q.depth())
}
