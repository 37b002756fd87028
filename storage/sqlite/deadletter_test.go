package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dulcera/syncbridge/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DeadLetterStore {
	t.Helper()
	store, err := New(&Config{
		DataSourceName: filepath.Join(t.TempDir(), "deadletters.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func failedEvent(id string) *event.SyncEvent {
	ev := event.New(event.TypeOrderCreated, event.SourceB2BPortal, []event.Source{event.TargetAll}, map[string]interface{}{
		"id":         "O1",
		"customerId": "C1",
		"items":      []interface{}{},
		"apiKey":     "should-not-be-stored",
	}, event.PriorityHigh)
	ev.ID = id
	return ev
}

func TestRecordAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, failedEvent("E1"), "retry limit exceeded"))
	require.NoError(t, store.Record(ctx, failedEvent("E2"), "unresolvable conflict"))

	entries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, "E2", entries[0].EventID)
	assert.Equal(t, "unresolvable conflict", entries[0].Reason)
	assert.Equal(t, event.TypeOrderCreated, entries[0].Type)
	assert.Equal(t, "order:C1:O1", entries[0].EntityKey)
}

func TestRecordSanitizesPayload(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, failedEvent("E1"), "retry limit exceeded"))

	entries, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, hasKey := entries[0].Data["apiKey"]
	assert.False(t, hasKey, "credential field must never reach disk")
	assert.Equal(t, "O1", entries[0].Data["id"])
}

func TestRecordIsIdempotentPerEvent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ev := failedEvent("E1")
	require.NoError(t, store.Record(ctx, ev, "first"))
	require.NoError(t, store.Record(ctx, ev, "second"))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.Record(context.Background(), failedEvent("E1"), "late")
	assert.ErrorIs(t, err, ErrStoreClosed)

	_, err = store.List(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
