// Package storetest provides a conformance suite every kvstore.Store
// implementation runs, plus a fault-injecting wrapper for component tests.
package storetest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) kvstore.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("SetGet", func(t *testing.T) { testSetGet(t, newStore(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newStore(t)) })
	t.Run("RemoveIdempotent", func(t *testing.T) { testRemoveIdempotent(t, newStore(t)) })
	t.Run("ListKeys", func(t *testing.T) { testListKeys(t, newStore(t)) })
	t.Run("OddKeys", func(t *testing.T) { testOddKeys(t, newStore(t)) })
}

func closeStore(t *testing.T, s kvstore.Store) {
	t.Cleanup(func() { _ = s.Close() })
}

func testGetMissing(t *testing.T, s kvstore.Store) {
	closeStore(t, s)
	v, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func testSetGet(t *testing.T, s kvstore.Store) {
	closeStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "cache:appliances", `{"data":[1,2,3]}`))
	v, ok, err := s.Get(ctx, "cache:appliances")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"data":[1,2,3]}`, v)
}

func testOverwrite(t *testing.T, s kvstore.Store) {
	closeStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "one"))
	require.NoError(t, s.Set(ctx, "k", "two"))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)
}

func testRemoveIdempotent(t *testing.T, s kvstore.Store) {
	closeStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.Remove(ctx, "never-existed"))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testListKeys(t *testing.T, s kvstore.Store) {
	closeStore(t, s)
	ctx := context.Background()

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	for _, k := range []string{"cache:a", "cache:b", "offline_queue"} {
		require.NoError(t, s.Set(ctx, k, "[]"))
	}
	require.NoError(t, s.Remove(ctx, "cache:b"))

	keys, err = s.ListKeys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"cache:a", "offline_queue"}, keys)
}

func testOddKeys(t *testing.T, s kvstore.Store) {
	closeStore(t, s)
	ctx := context.Background()

	odd := []string{"cache:user/42/profile", "cache:a b", "cache:ünïcode", "cache:x?y=z&w"}
	for _, k := range odd {
		require.NoError(t, s.Set(ctx, k, k))
	}
	for _, k := range odd {
		v, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok, k)
		assert.Equal(t, k, v)
	}

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, odd, keys)
}
