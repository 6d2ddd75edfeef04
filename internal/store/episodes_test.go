package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbpayton/sophia-ams/internal/models"
)

func newTestStore(t *testing.T) (*EpisodeStore, *DB) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEpisodeStore(db), db
}

func TestEpisodeLifecycle(t *testing.T) {
	ctx := context.Background()
	es, db := newTestStore(t)

	ep, err := es.Create(ctx, "sess")
	require.NoError(t, err)
	require.NotEmpty(t, ep.ID)
	require.False(t, ep.Finalized)

	open, err := es.Open(ctx, "sess")
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, ep.ID, open.ID)

	require.NoError(t, es.Finalize(ctx, ep.ID, "done"))

	open, err = es.Open(ctx, "sess")
	require.NoError(t, err)
	require.Nil(t, open, "finalized episodes are no longer open")

	got, err := es.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	require.True(t, got.Finalized)
	require.Equal(t, "done", got.Summary)

	count, err := db.EpisodeCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAppendTurnSequencing(t *testing.T) {
	ctx := context.Background()
	es, _ := newTestStore(t)

	ep, err := es.Create(ctx, "sess")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		turn, err := es.AppendTurn(ctx, ep.ID, models.RoleUser, "hello")
		require.NoError(t, err)
		require.Equal(t, i, turn.Sequence)
	}

	got, err := es.GetByID(ctx, ep.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.TurnCount)

	turns, err := es.Turns(ctx, ep.ID)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	for i, turn := range turns {
		require.Equal(t, i+1, turn.Sequence)
		require.False(t, turn.Extracted)
	}
}

func TestListBySession(t *testing.T) {
	ctx := context.Background()
	es, _ := newTestStore(t)

	_, err := es.Create(ctx, "a")
	require.NoError(t, err)
	_, err = es.Create(ctx, "b")
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour).Unix()
	eps, err := es.ListBySession(ctx, "a", since, 10)
	require.NoError(t, err)
	require.Len(t, eps, 1)
	require.Equal(t, "a", eps[0].SessionID)
}

func TestMarkExtracted(t *testing.T) {
	ctx := context.Background()
	es, _ := newTestStore(t)

	ep, err := es.Create(ctx, "sess")
	require.NoError(t, err)
	t1, err := es.AppendTurn(ctx, ep.ID, models.RoleUser, "one")
	require.NoError(t, err)
	_, err = es.AppendTurn(ctx, ep.ID, models.RoleAssistant, "two")
	require.NoError(t, err)

	sessions, err := es.SessionsWithUnextracted(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sess"}, sessions)

	require.NoError(t, es.MarkExtracted(ctx, []string{t1.ID}))

	turns, err := es.UnextractedTurns(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "two", turns[0].Content)

	require.NoError(t, es.MarkExtracted(ctx, []string{turns[0].ID}))

	sessions, err = es.SessionsWithUnextracted(ctx)
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestEmbeddingCacheStore(t *testing.T) {
	ctx := context.Background()
	_, db := newTestStore(t)
	cache := NewEmbeddingCacheStore(db)

	entry, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, entry)

	require.NoError(t, cache.Put(ctx, &EmbeddingCacheEntry{
		ContentHash: "abc",
		Embedding:   []byte{1, 2, 3, 4},
		Dimension:   1,
		Model:       "test-model",
	}))

	entry, err = cache.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "test-model", entry.Model)
	require.Equal(t, []byte{1, 2, 3, 4}, entry.Embedding)

	// Upsert replaces the row for the same hash.
	require.NoError(t, cache.Put(ctx, &EmbeddingCacheEntry{
		ContentHash: "abc",
		Embedding:   []byte{9, 9, 9, 9},
		Dimension:   1,
		Model:       "test-model",
	}))
	entry, err = cache.Get(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9, 9}, entry.Embedding)
}
