package router

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQTable_GetMissingReturnsNotOk(t *testing.T) {
	table := NewQTable(nil, nil)
	_, ok := table.Get("k", "a")
	assert.False(t, ok)
}

func TestQTable_UpdateThenGetRoundTrips(t *testing.T) {
	table := NewQTable(nil, nil)
	table.Update("k", "a", 0.5)
	qs, ok := table.Get("k", "a")
	require.True(t, ok)
	assert.InDelta(t, 0.5, qs.Value, 1e-9)
	assert.Equal(t, 1, qs.Visits)
}

func TestQTable_BestActionPicksHighestValue(t *testing.T) {
	table := NewQTable(nil, nil)
	table.Update("k", "a", 0.1)
	table.Update("k", "b", 0.9)
	best, value, ok := table.BestAction("k", []string{"a", "b"})
	assert.True(t, ok)
	assert.Equal(t, "b", best)
	assert.InDelta(t, 0.9, value, 1e-9)
}

func TestQTable_BestActionNoVisitsIsNotOk(t *testing.T) {
	table := NewQTable(nil, nil)
	_, _, ok := table.BestAction("k", []string{"a", "b"})
	assert.False(t, ok)
}

func TestSQLiteStore_SaveAndLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "qstate.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	table := NewQTable(store, nil)
	table.Update("night|review|security|complex", "full|premium", 0.42)

	require.NoError(t, store.SaveAll(ctx, table.snapshot()))

	reloaded := NewQTable(store, nil)
	require.NoError(t, reloaded.Load(ctx))

	qs, ok := reloaded.Get("night|review|security|complex", "full|premium")
	require.True(t, ok)
	assert.InDelta(t, 0.42, qs.Value, 1e-9)
	assert.WithinDuration(t, time.Now(), qs.LastUpdate, time.Minute)
}

func TestQTable_LoadWithNilStoreIsNoop(t *testing.T) {
	table := NewQTable(nil, nil)
	assert.NoError(t, table.Load(context.Background()))
}

func TestQTable_DrainWithNilStoreIsNoop(t *testing.T) {
	table := NewQTable(nil, nil)
	table.Drain(context.Background())
}
