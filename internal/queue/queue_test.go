package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/core"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore/storetest"
)

var testNow = time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)

func newTestQueue(store kvstore.Store) *Queue {
	return New(Config{Store: store, Clock: func() time.Time { return testNow }})
}

func applianceUpdate(n int) Action {
	return Action{Type: ActionUpdateAppliance, Data: map[string]any{"id": fmt.Sprintf("a%d", n), "seq": n}}
}

func TestAddAssignsFields(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(kvstore.NewMemoryStore())

	item, err := q.Add(ctx, Action{Type: ActionAddAppliance, Data: map[string]any{"name": "Kettle"}})
	require.NoError(t, err)

	assert.Regexp(t, `^1721037600000-[0-9a-f]{12}$`, item.ID)
	assert.Equal(t, ActionAddAppliance, item.Type)
	assert.Equal(t, "2024-07-15T10:00:00.000Z", item.Timestamp)
	assert.Equal(t, 0, item.RetryCount)
	assert.Equal(t, StatusPending, item.Status)
	assert.Empty(t, item.LastError)

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.Equal(t, "Kettle", items[0].Data["name"])
}

func TestIDsUniqueWithinOneMillisecond(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(kvstore.NewMemoryStore())

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		item, err := q.Add(ctx, applianceUpdate(i))
		require.NoError(t, err)
		assert.False(t, seen[item.ID], "duplicate id %s", item.ID)
		seen[item.ID] = true
	}
}

func TestAddRejectsInvalidActions(t *testing.T) {
	tests := []struct {
		name   string
		action Action
	}{
		{"unknown type", Action{Type: "REBOOT_HUB", Data: map[string]any{}}},
		{"empty type", Action{Data: map[string]any{"id": "x"}}},
		{"nil data", Action{Type: ActionUpdateProfile}},
	}

	q := newTestQueue(kvstore.NewMemoryStore())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Add(context.Background(), tt.action)
			assert.ErrorIs(t, err, ErrInvalidAction)
		})
	}

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(kvstore.NewMemoryStore())

	var ids []string
	for i := 0; i < core.MaxQueueSize+25; i++ {
		item, err := q.Add(ctx, applianceUpdate(i))
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, core.MaxQueueSize)

	want := ids[len(ids)-core.MaxQueueSize:]
	for i, it := range items {
		assert.Equal(t, want[i], it.ID)
	}
}

func TestCapacityShrinksOversizedRecord(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	q := New(Config{Store: store, MaxSize: 3})

	for i := 0; i < 5; i++ {
		_, err := New(Config{Store: store, MaxSize: 10}).Add(ctx, applianceUpdate(i))
		require.NoError(t, err)
	}

	_, err := q.Add(ctx, applianceUpdate(99))
	require.NoError(t, err)

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.EqualValues(t, 3, items[0].Data["seq"])
	assert.EqualValues(t, 99, items[2].Data["seq"])
}

func TestItemsMissingOrCorrupt(t *testing.T) {
	ctx := context.Background()

	q := newTestQueue(kvstore.NewMemoryStore())
	items, err := q.Items(ctx)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	store := kvstore.NewMemoryStore()
	store.Seed(map[string]string{core.QueueKey: `{"not":"a list"`})
	q = newTestQueue(store)
	items, err = q.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	// A corrupt record is replaced by the next write.
	_, err = q.Add(ctx, applianceUpdate(1))
	require.NoError(t, err)
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(kvstore.NewMemoryStore())

	a, _ := q.Add(ctx, applianceUpdate(1))
	b, _ := q.Add(ctx, applianceUpdate(2))

	require.NoError(t, q.Remove(ctx, a.ID))
	require.NoError(t, q.Remove(ctx, a.ID))
	require.NoError(t, q.Remove(ctx, "no-such-id"))

	items, err := q.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Seed(map[string]string{"cache:profile": "{}"})
	q := newTestQueue(store)

	_, _ = q.Add(ctx, applianceUpdate(1))
	require.NoError(t, q.Clear(ctx))
	require.NoError(t, q.Clear(ctx))

	_, ok, err := store.Get(ctx, core.QueueKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestStatsMatchItems(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(kvstore.NewMemoryStore())

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	for i := 0; i < 7; i++ {
		_, err := q.Add(ctx, applianceUpdate(i))
		require.NoError(t, err)
	}
	require.NoError(t, q.Mutate(ctx, func(items []Item) ([]Item, error) {
		for i := range items {
			if i%3 == 0 {
				items[i].Status = StatusFailed
				items[i].RetryCount = 1
			}
		}
		return items, nil
	}))

	items, err := q.Items(ctx)
	require.NoError(t, err)
	stats, err = q.Stats(ctx)
	require.NoError(t, err)

	pending, failed := 0, 0
	for _, it := range items {
		if it.Status == StatusFailed {
			failed++
		} else {
			pending++
		}
	}
	assert.Equal(t, len(items), stats.Total)
	assert.Equal(t, pending, stats.Pending)
	assert.Equal(t, failed, stats.Failed)
	assert.Equal(t, stats.Total, stats.Pending+stats.Failed)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, items[0].Timestamp, stats.Oldest)
}

func TestPreviewOmitsPayload(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(kvstore.NewMemoryStore())

	item, _ := q.Add(ctx, Action{Type: ActionUpdateProfile, Data: map[string]any{"phone": "+27 82 555 0100"}})

	preview, err := q.Preview(ctx)
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Equal(t, PreviewItem{
		ID:        item.ID,
		Type:      ActionUpdateProfile,
		Timestamp: item.Timestamp,
		Status:    StatusPending,
	}, preview[0])
}

func TestMutateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := storetest.NewFaulty(kvstore.NewMemoryStore())
	q := newTestQueue(store)
	_, _ = q.Add(ctx, applianceUpdate(1))
	writes := store.SetCalls()

	boom := errors.New("boom")
	err := q.Mutate(ctx, func(items []Item) ([]Item, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, writes, store.SetCalls())
}

func TestStorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	store := storetest.NewFaulty(kvstore.NewMemoryStore())
	q := newTestQueue(store)

	store.FailSet(true)
	_, err := q.Add(ctx, applianceUpdate(1))
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, storetest.ErrInjected)
	store.FailSet(false)

	store.FailGet(true)
	_, err = q.Items(ctx)
	assert.ErrorIs(t, err, ErrStorage)
	_, err = q.Stats(ctx)
	assert.ErrorIs(t, err, ErrStorage)
	store.FailGet(false)

	store.FailRemove(true)
	assert.ErrorIs(t, q.Clear(ctx), ErrStorage)
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	ctx := context.Background()
	q := New(Config{Store: kvstore.NewMemoryStore()})

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := q.Add(ctx, applianceUpdate(n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
}

type depthRecorder struct {
	mu       sync.Mutex
	depth    int
	enqueued int
	evicted  int
}

func (d *depthRecorder) SetDepth(n int) { d.mu.Lock(); d.depth = n; d.mu.Unlock() }
func (d *depthRecorder) RecordEnqueue(string) { d.mu.Lock(); d.enqueued++; d.mu.Unlock() }
func (d *depthRecorder) RecordEvictions(n int) { d.mu.Lock(); d.evicted += n; d.mu.Unlock() }

func TestMetricsHooks(t *testing.T) {
	ctx := context.Background()
	rec := &depthRecorder{}
	q := New(Config{Store: kvstore.NewMemoryStore(), MaxSize: 2, Metrics: rec})

	for i := 0; i < 3; i++ {
		_, err := q.Add(ctx, applianceUpdate(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, rec.depth)
	assert.Equal(t, 3, rec.enqueued)
	assert.Equal(t, 1, rec.evicted)

	require.NoError(t, q.Clear(ctx))
	assert.Equal(t, 0, rec.depth)
}

func TestParseActionType(t *testing.T) {
	got, err := ParseActionType(" update_loadshedding_area ")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdateLoadsheddingArea, got)

	_, err = ParseActionType("DROP_TABLE")
	assert.ErrorIs(t, err, ErrInvalidAction)

	assert.Len(t, ActionTypes(), 6)
}
