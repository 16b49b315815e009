package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore/storetest"
)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingMetrics counts hook calls.
type recordingMetrics struct {
	lookups   map[string]int
	writes    map[string]int
	evictions int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{lookups: map[string]int{}, writes: map[string]int{}}
}

func (r *recordingMetrics) RecordLookup(result string) { r.lookups[result]++ }
func (r *recordingMetrics) RecordWrite(outcome string) { r.writes[outcome]++ }
func (r *recordingMetrics) RecordEvictions(n int) { r.evictions += n }

type appliance struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Watts float64 `json:"watts"`
	On    bool    `json:"on"`
}

func newTestManager(store kvstore.Store) (*Manager, *fakeClock) {
	clock := newFakeClock()
	return NewManager(Config{Store: store, Clock: clock.Now}), clock
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(kvstore.NewMemoryStore())

	want := []appliance{
		{ID: "a1", Name: "Geyser", Watts: 3000, On: true},
		{ID: "a2", Name: "Fridge", Watts: 150.5},
	}
	require.Equal(t, OutcomeOK, m.Set(ctx, "appliances", want, 10*time.Minute))

	clock.Advance(9*time.Minute + 59*time.Second)

	var got []appliance
	require.Equal(t, LookupHit, m.Get(ctx, "appliances", &got))
	assert.Equal(t, want, got)
}

func TestGetMissing(t *testing.T) {
	m, _ := newTestManager(kvstore.NewMemoryStore())

	var got map[string]any
	assert.Equal(t, LookupMiss, m.Get(context.Background(), "nope", &got))
	assert.Nil(t, got)
}

func TestExpiredEntryIsEvictedOnRead(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m, clock := newTestManager(store)

	m.Set(ctx, "profile", map[string]string{"name": "Thandi"}, 15*time.Minute)
	clock.Advance(15*time.Minute + time.Millisecond)

	var got map[string]string
	assert.Equal(t, LookupExpired, m.Get(ctx, "profile", &got))
	assert.Nil(t, got)

	keys, outcome := m.Keys(ctx)
	require.Equal(t, OutcomeOK, outcome)
	assert.NotContains(t, keys, "profile")
	assert.Equal(t, 0, store.Len())
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(kvstore.NewMemoryStore())

	m.Set(ctx, "k", 1, time.Minute)
	clock.Advance(time.Minute)
	assert.Equal(t, LookupHit, m.Get(ctx, "k", nil))
}

func TestNonPositiveExpiryUsesDefault(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(kvstore.NewMemoryStore())

	m.Set(ctx, "k", "v", 0)
	meta, ok := m.Metadata(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, meta.ExpiresAt.Sub(meta.CreatedAt))

	clock.Advance(14 * time.Minute)
	assert.Equal(t, LookupHit, m.Get(ctx, "k", nil))
}

func TestPersistedEnvelopeFormat(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m, clock := newTestManager(store)

	m.Set(ctx, "tariff", map[string]float64{"kwh": 2.85}, 5*time.Minute)

	raw, ok, err := store.Get(ctx, "cache:tariff")
	require.NoError(t, err)
	require.True(t, ok)

	created := clock.Now().UnixMilli()
	assert.JSONEq(t,
		`{"data":{"kwh":2.85},"timestamp":`+itoa(created)+`,"expiryTime":`+itoa(created+300000)+`}`,
		raw)
}

func TestSubMillisecondExpiryStaysAfterTimestamp(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m, clock := newTestManager(store)

	require.Equal(t, OutcomeOK, m.Set(ctx, "k", "v", time.Microsecond))

	raw, ok, err := store.Get(ctx, "cache:k")
	require.NoError(t, err)
	require.True(t, ok)
	var e entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Greater(t, e.ExpiryTime, e.Timestamp)

	assert.Equal(t, LookupHit, m.Get(ctx, "k", nil))
	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, LookupExpired, m.Get(ctx, "k", nil))
}

func TestMalformedEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Seed(map[string]string{"cache:broken": "{not json"})
	m, _ := newTestManager(store)

	assert.Equal(t, LookupMiss, m.Get(ctx, "broken", nil))
	_, ok := m.Metadata(ctx, "broken")
	assert.False(t, ok)
}

func TestDestinationMismatchIsMiss(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore())

	m.Set(ctx, "k", "a string", time.Minute)
	var n int
	assert.Equal(t, LookupMiss, m.Get(ctx, "k", &n))
}

func TestOverwriteReplacesEntry(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore())

	m.Set(ctx, "k", "old", time.Minute)
	m.Set(ctx, "k", "new", time.Minute)

	got, result := GetAs[string](ctx, m, "k")
	require.Equal(t, LookupHit, result)
	assert.Equal(t, "new", got)
}

func TestGetAsMiss(t *testing.T) {
	m, _ := newTestManager(kvstore.NewMemoryStore())

	got, result := GetAs[appliance](context.Background(), m, "none")
	assert.Equal(t, LookupMiss, result)
	assert.Equal(t, appliance{}, got)
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(kvstore.NewMemoryStore())

	m.Set(ctx, "k", 1, time.Minute)
	assert.Equal(t, OutcomeOK, m.Remove(ctx, "k"))
	assert.Equal(t, OutcomeOK, m.Remove(ctx, "k"))
	assert.Equal(t, LookupMiss, m.Get(ctx, "k", nil))
}

func TestClearOnlyTouchesCacheKeys(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	store.Seed(map[string]string{"offline_queue": "[]", "settings": "{}"})
	m, _ := newTestManager(store)

	m.Set(ctx, "a", 1, time.Minute)
	m.Set(ctx, "b", 2, time.Minute)

	n, outcome := m.Clear(ctx)
	assert.Equal(t, 2, n)
	assert.Equal(t, OutcomeOK, outcome)

	n, outcome = m.Clear(ctx)
	assert.Equal(t, 0, n)
	assert.Equal(t, OutcomeOK, outcome)

	all, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"offline_queue", "settings"}, all)
}

func TestKeysIncludesExpiredWithoutEvicting(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m, clock := newTestManager(store)

	m.Set(ctx, "short", 1, time.Minute)
	m.Set(ctx, "long", 2, time.Hour)
	clock.Advance(2 * time.Minute)

	keys, outcome := m.Keys(ctx)
	require.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, []string{"long", "short"}, keys)
	assert.Equal(t, 2, store.Len())
}

func TestMetadataDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m, clock := newTestManager(store)

	m.Set(ctx, "k", map[string]int{"v": 1}, 10*time.Minute)
	clock.Advance(4 * time.Minute)

	meta, ok := m.Metadata(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "k", meta.Key)
	assert.Equal(t, 4*time.Minute, meta.Age)
	assert.Equal(t, 6*time.Minute, meta.TTL)
	assert.False(t, meta.Expired)
	assert.Equal(t, len(`{"v":1}`), meta.Size)

	clock.Advance(10 * time.Minute)
	meta, ok = m.Metadata(ctx, "k")
	require.True(t, ok)
	assert.True(t, meta.Expired)
	assert.Equal(t, -4*time.Minute, meta.TTL)
	assert.Equal(t, 1, store.Len())
}

func TestPruneRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	metrics := newRecordingMetrics()
	clock := newFakeClock()
	store := kvstore.NewMemoryStore()
	store.Seed(map[string]string{"offline_queue": "[]"})
	m := NewManager(Config{Store: store, Clock: clock.Now, Metrics: metrics})

	m.Set(ctx, "a", 1, time.Minute)
	m.Set(ctx, "b", 2, time.Minute)
	m.Set(ctx, "c", 3, time.Hour)
	clock.Advance(5 * time.Minute)

	n, outcome := m.Prune(ctx)
	assert.Equal(t, 2, n)
	assert.Equal(t, OutcomeOK, outcome)
	assert.Equal(t, 2, metrics.evictions)

	keys, _ := m.Keys(ctx)
	assert.Equal(t, []string{"c"}, keys)
	assert.Equal(t, 2, store.Len())
}

func TestFetchReadThrough(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(kvstore.NewMemoryStore())

	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return appliance{ID: "a1", Name: "Pool pump", Watts: 750}, nil
	}

	var got appliance
	require.NoError(t, m.Fetch(ctx, "pump", time.Minute, &got, load))
	assert.Equal(t, "Pool pump", got.Name)

	got = appliance{}
	require.NoError(t, m.Fetch(ctx, "pump", time.Minute, &got, load))
	assert.Equal(t, "Pool pump", got.Name)
	assert.Equal(t, 1, calls)

	clock.Advance(2 * time.Minute)
	require.NoError(t, m.Fetch(ctx, "pump", time.Minute, &got, load))
	assert.Equal(t, 2, calls)
}

func TestFetchReturnsLoaderError(t *testing.T) {
	m, _ := newTestManager(kvstore.NewMemoryStore())
	boom := errors.New("backend unreachable")

	err := m.Fetch(context.Background(), "k", time.Minute, nil, func(context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, LookupMiss, m.Get(context.Background(), "k", nil))
}

func TestStorageFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	metrics := newRecordingMetrics()
	faulty := storetest.NewFaulty(kvstore.NewMemoryStore())
	m := NewManager(Config{Store: faulty, Clock: newFakeClock().Now, Metrics: metrics})

	faulty.FailSet(true)
	assert.Equal(t, OutcomeDegraded, m.Set(ctx, "k", 1, time.Minute))
	faulty.FailSet(false)
	require.Equal(t, OutcomeOK, m.Set(ctx, "k", 1, time.Minute))

	faulty.FailGet(true)
	assert.Equal(t, LookupDegraded, m.Get(ctx, "k", nil))
	faulty.FailGet(false)

	faulty.FailRemove(true)
	assert.Equal(t, OutcomeDegraded, m.Remove(ctx, "k"))
	faulty.FailRemove(false)

	faulty.FailList(true)
	keys, outcome := m.Keys(ctx)
	assert.Nil(t, keys)
	assert.Equal(t, OutcomeDegraded, outcome)
	n, outcome := m.Clear(ctx)
	assert.Equal(t, 0, n)
	assert.Equal(t, OutcomeDegraded, outcome)

	assert.Equal(t, 1, metrics.writes["degraded"])
	assert.Equal(t, 1, metrics.writes["ok"])
	assert.Equal(t, 1, metrics.lookups["degraded"])
}

func TestUnserializablePayloadDegrades(t *testing.T) {
	m, _ := newTestManager(kvstore.NewMemoryStore())
	assert.Equal(t, OutcomeDegraded, m.Set(context.Background(), "k", make(chan int), time.Minute))
}

func TestCustomPrefix(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemoryStore()
	m := NewManager(Config{Store: store, Prefix: "c/"})

	m.Set(ctx, "k", 1, time.Minute)
	_, ok, err := store.Get(ctx, "c/k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
