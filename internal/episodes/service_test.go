package episodes

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/store"
)

func newTestService(t *testing.T, turnLimit int) *Service {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(store.NewEpisodeStore(db), nil, turnLimit, slog.Default())
}

func TestAddTurnOpensAndReuses(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 50)

	id1, finalized, err := svc.AddTurn(ctx, "sess", models.RoleUser, "hello")
	require.NoError(t, err)
	require.False(t, finalized)
	require.NotEmpty(t, id1)

	id2, _, err := svc.AddTurn(ctx, "sess", models.RoleAssistant, "hi there")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	ep, err := svc.Get(ctx, "sess", id1)
	require.NoError(t, err)
	require.Equal(t, 2, ep.TurnCount)
	require.Len(t, ep.Turns, 2)
	require.Equal(t, models.RoleUser, ep.Turns[0].Role)
	require.Equal(t, 1, ep.Turns[0].Sequence)
	require.Equal(t, 2, ep.Turns[1].Sequence)
}

func TestAddTurnValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 50)

	_, _, err := svc.AddTurn(ctx, "", models.RoleUser, "hello")
	require.Error(t, err)

	_, _, err = svc.AddTurn(ctx, "sess", "narrator", "hello")
	require.Error(t, err)

	_, _, err = svc.AddTurn(ctx, "sess", models.RoleUser, "")
	require.Error(t, err)
}

func TestAutoFinalizeAtTurnCeiling(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 3)

	var firstID string
	for i := 0; i < 3; i++ {
		id, finalized, err := svc.AddTurn(ctx, "sess", models.RoleUser, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
		firstID = id
		if i < 2 {
			require.False(t, finalized)
		} else {
			require.True(t, finalized, "the ceiling turn finalizes the episode")
		}
	}

	ep, err := svc.Get(ctx, "sess", firstID)
	require.NoError(t, err)
	require.True(t, ep.Finalized)
	require.Equal(t, 3, ep.TurnCount)

	// The next turn rolls over to a fresh episode.
	nextID, finalized, err := svc.AddTurn(ctx, "sess", models.RoleUser, "a new conversation")
	require.NoError(t, err)
	require.False(t, finalized)
	require.NotEqual(t, firstID, nextID)
}

func TestSessionIsolation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 50)

	idA, _, err := svc.AddTurn(ctx, "session-a", models.RoleUser, "a secret")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "session-b", idA)
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.Finalize(ctx, "session-b", idA, "stolen summary")
	require.ErrorIs(t, err, ErrNotFound)

	eps, err := svc.Search(ctx, "session-b", "secret", 10)
	require.NoError(t, err)
	require.Empty(t, eps)
}

func TestExplicitFinalize(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 50)

	id, _, err := svc.AddTurn(ctx, "sess", models.RoleUser, "hello")
	require.NoError(t, err)

	require.NoError(t, svc.Finalize(ctx, "sess", id, "we said hello"))

	ep, err := svc.Get(ctx, "sess", id)
	require.NoError(t, err)
	require.True(t, ep.Finalized)
	require.Equal(t, "we said hello", ep.Summary)

	// Finalizing twice is a no-op, and the first summary wins.
	require.NoError(t, svc.Finalize(ctx, "sess", id, "another summary"))
	ep, err = svc.Get(ctx, "sess", id)
	require.NoError(t, err)
	require.Equal(t, "we said hello", ep.Summary)

	// A finalized episode no longer receives turns; the next append opens a
	// new one.
	nextID, _, err := svc.AddTurn(ctx, "sess", models.RoleUser, "again")
	require.NoError(t, err)
	require.NotEqual(t, id, nextID)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 50)

	_, _, err := svc.AddTurn(ctx, "sess", models.RoleUser, "let's talk about Kubernetes")
	require.NoError(t, err)

	t.Run("substring match is case-insensitive", func(t *testing.T) {
		eps, err := svc.Search(ctx, "sess", "kubernetes", 10)
		require.NoError(t, err)
		require.Len(t, eps, 1)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		eps, err := svc.Search(ctx, "sess", "terraform", 10)
		require.NoError(t, err)
		require.Empty(t, eps)
	})

	t.Run("empty query returns empty", func(t *testing.T) {
		eps, err := svc.Search(ctx, "sess", "", 10)
		require.NoError(t, err)
		require.Empty(t, eps)
	})
}

func TestRecentAndTimeline(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, 50)

	_, _, err := svc.AddTurn(ctx, "sess", models.RoleUser, "today's chat")
	require.NoError(t, err)

	eps, err := svc.Recent(ctx, "sess", 24, 10)
	require.NoError(t, err)
	require.Len(t, eps, 1)

	days, err := svc.Timeline(ctx, "sess", 7)
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Len(t, days[0].Episodes, 1)
}
