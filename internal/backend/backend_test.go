package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/kvstore"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := kvstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE appliances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT,
		watts REAL
	)`).Error)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGormBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	b := NewGormBackend(db)

	require.NoError(t, b.Insert(ctx, "appliances", map[string]any{"id": "a1", "user_id": "u1", "name": "Geyser", "watts": 3000}))
	require.NoError(t, b.Insert(ctx, "appliances", map[string]any{"id": "a2", "user_id": "u1", "name": "Fridge", "watts": 150}))

	require.NoError(t, b.Update(ctx, "appliances", Filter{"id": "a1", "user_id": "u1"}, map[string]any{"watts": 2500}))

	var watts float64
	require.NoError(t, db.Table("appliances").Select("watts").Where("id = ?", "a1").Scan(&watts).Error)
	assert.Equal(t, 2500.0, watts)

	require.NoError(t, b.Delete(ctx, "appliances", Filter{"id": "a2", "user_id": "u1"}))
	var count int64
	require.NoError(t, db.Table("appliances").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGormBackendNotFound(t *testing.T) {
	ctx := context.Background()
	b := NewGormBackend(newSQLiteDB(t))

	require.NoError(t, b.Insert(ctx, "appliances", map[string]any{"id": "a1", "user_id": "u1"}))

	// Another user's row is not visible through the filter.
	err := b.Update(ctx, "appliances", Filter{"id": "a1", "user_id": "u2"}, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = b.Delete(ctx, "appliances", Filter{"id": "missing", "user_id": "u1"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = b.Delete(ctx, "appliances", nil)
	assert.Error(t, err)
}

func TestGormBackendStoresNestedValuesAsJSON(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDB(t)
	require.NoError(t, db.Exec(`CREATE TABLE profiles (id TEXT PRIMARY KEY, loadshedding_area TEXT, tags TEXT)`).Error)
	b := NewGormBackend(db)

	require.NoError(t, b.Insert(ctx, "profiles", map[string]any{
		"id":   "u1",
		"tags": []any{"solar", "backup"},
	}))
	require.NoError(t, b.Update(ctx, "profiles", Filter{"id": "u1"}, map[string]any{
		"loadshedding_area": map[string]any{"id": "jhb-4", "name": "Soweto"},
	}))

	var row struct {
		LoadsheddingArea string
		Tags             string
	}
	require.NoError(t, db.Table("profiles").Where("id = ?", "u1").Scan(&row).Error)
	assert.JSONEq(t, `{"id":"jhb-4","name":"Soweto"}`, row.LoadsheddingArea)
	assert.JSONEq(t, `["solar","backup"]`, row.Tags)
}

func TestColumnValuesKeepsScalars(t *testing.T) {
	now := time.Now()
	got, err := columnValues(map[string]any{
		"name":  "Geyser",
		"watts": 3000.0,
		"on":    true,
		"at":    now,
		"none":  nil,
		"raw":   []byte("x"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Geyser", got["name"])
	assert.Equal(t, 3000.0, got["watts"])
	assert.Equal(t, true, got["on"])
	assert.Equal(t, now, got["at"])
	assert.Nil(t, got["none"])
	assert.Equal(t, []byte("x"), got["raw"])

	_, err = columnValues(map[string]any{"bad": map[string]any{"ch": make(chan int)}})
	assert.Error(t, err)
}

func TestGormBackendUnknownTable(t *testing.T) {
	b := NewGormBackend(newSQLiteDB(t))
	err := b.Insert(context.Background(), "garages", map[string]any{"id": "g1"})
	assert.Error(t, err)
}

func TestMemoryBackendAppliesAndRecords(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	b.Seed("profiles", map[string]any{"id": "u1", "name": "Lerato"})

	require.NoError(t, b.Insert(ctx, "appliances", map[string]any{"id": "a1", "user_id": "u1"}))
	require.NoError(t, b.Update(ctx, "profiles", Filter{"id": "u1"}, map[string]any{"name": "Lerato M"}))
	assert.ErrorIs(t, b.Update(ctx, "profiles", Filter{"id": "u9"}, map[string]any{"name": "x"}), ErrNotFound)
	require.NoError(t, b.Delete(ctx, "appliances", Filter{"id": "a1"}))
	assert.ErrorIs(t, b.Delete(ctx, "appliances", Filter{"id": "a1"}), ErrNotFound)

	assert.Equal(t, "Lerato M", b.Rows("profiles")[0]["name"])
	assert.Empty(t, b.Rows("appliances"))

	calls := b.Calls()
	require.Len(t, calls, 5)
	assert.Equal(t, OpInsert, calls[0].Op)
	assert.Equal(t, Filter{"id": "u1"}, calls[1].Filter)
	assert.Equal(t, OpDelete, calls[4].Op)
}

func TestMemoryBackendFailureHook(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	boom := errors.New("503 from upstream")
	b.FailWith(func(c Call) error {
		if c.Collection == "automations" {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, b.Insert(ctx, "automations", map[string]any{"id": "r1"}), boom)
	assert.NoError(t, b.Insert(ctx, "appliances", map[string]any{"id": "a1"}))
	assert.Empty(t, b.Rows("automations"))
	assert.Equal(t, 2, b.CallsMade())

	b.Reset()
	assert.Zero(t, b.CallsMade())
	assert.Empty(t, b.Rows("appliances"))
}

func TestFilterMatchesNumbersByValue(t *testing.T) {
	f := Filter{"id": 7}
	assert.True(t, f.Matches(map[string]any{"id": float64(7)}))
	assert.False(t, f.Matches(map[string]any{"id": "8"}))
	assert.False(t, f.Matches(map[string]any{}))
	assert.Equal(t, []string{"a", "b"}, Filter{"b": 1, "a": 2}.Keys())
}
