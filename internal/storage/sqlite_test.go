package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rules := []engine.LearnedRule{
		{PatternHash: "aaaa000000000001", Matcher: `legacyTheme\.apply\(`, Rewrite: "theme.apply(", Support: 5, Confidence: 0.5},
		{PatternHash: "bbbb000000000002", Matcher: `colors\.lookup\(`, Support: 12, Confidence: 1.0},
	}
	require.NoError(t, store.SaveRules(ctx, rules))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	// Highest support first.
	assert.Equal(t, "bbbb000000000002", loaded[0].PatternHash)
	assert.Empty(t, loaded[0].Rewrite)
	assert.Equal(t, 12, loaded[0].Support)

	assert.Equal(t, "aaaa000000000001", loaded[1].PatternHash)
	assert.Equal(t, "theme.apply(", loaded[1].Rewrite)
	assert.InDelta(t, 0.5, loaded[1].Confidence, 1e-9)
}

func TestSQLiteStore_UpsertAccumulatesSupport(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rule := engine.LearnedRule{PatternHash: "cccc000000000003", Matcher: `x\.y\(`, Support: 4, Confidence: 0.4}
	require.NoError(t, store.SaveRules(ctx, []engine.LearnedRule{rule}))

	// Second batch observes the same shape in 3 more files with higher
	// confidence.
	rule.Support = 3
	rule.Confidence = 0.7
	require.NoError(t, store.SaveRules(ctx, []engine.LearnedRule{rule}))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 7, loaded[0].Support)
	assert.InDelta(t, 0.7, loaded[0].Confidence, 1e-9)
}

func TestSQLiteStore_UpsertKeepsStrongerConfidence(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rule := engine.LearnedRule{PatternHash: "dddd000000000004", Matcher: `x\.y\(`, Support: 9, Confidence: 0.9}
	require.NoError(t, store.SaveRules(ctx, []engine.LearnedRule{rule}))

	rule.Support = 1
	rule.Confidence = 0.1
	require.NoError(t, store.SaveRules(ctx, []engine.LearnedRule{rule}))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.InDelta(t, 0.9, loaded[0].Confidence, 1e-9)
}

func TestSQLiteStore_RevertDecaysConfidence(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rule := engine.LearnedRule{PatternHash: "eeee000000000005", Matcher: `x\.y\(`, Support: 10, Confidence: 0.8}
	require.NoError(t, store.SaveRules(ctx, []engine.LearnedRule{rule}))

	require.NoError(t, store.RecordRevert(ctx, rule.PatternHash))
	require.NoError(t, store.RecordRevert(ctx, rule.PatternHash))

	loaded, err := store.LoadRules(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.InDelta(t, 0.2, loaded[0].Confidence, 1e-9, "confidence halves per revert")
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	store := testStore(t)

	loaded, err := store.LoadRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestDecayed(t *testing.T) {
	assert.InDelta(t, 0.8, decayed(0.8, 0), 1e-9)
	assert.InDelta(t, 0.4, decayed(0.8, 1), 1e-9)
	assert.InDelta(t, 0.1, decayed(0.8, 3), 1e-9)
}
