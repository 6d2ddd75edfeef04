package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/store"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// stubExtractor returns one fact per call and counts invocations.
type stubExtractor struct {
	calls int
	fail  bool
}

func (s *stubExtractor) Extract(ctx context.Context, text string) ([]models.TripleCandidate, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("extractor down")
	}
	return []models.TripleCandidate{{
		Subject:    fmt.Sprintf("fact-%d", s.calls),
		Predicate:  "mentioned_in",
		Object:     "the conversation",
		Confidence: 0.9,
	}}, nil
}

func setup(t *testing.T, extractor *stubExtractor) (*Consolidator, *store.EpisodeStore, *triples.Service) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	episodeStore := store.NewEpisodeStore(db)
	tripleSvc := triples.NewService(vectorindex.NewMemory(), embedding.NewLocal(16), triples.Options{}, slog.Default())
	c := New(episodeStore, extractor, tripleSvc, Options{}, slog.Default())
	return c, episodeStore, tripleSvc
}

func addTurns(t *testing.T, episodeStore *store.EpisodeStore, sessionID string, n int) string {
	t.Helper()
	ctx := context.Background()
	ep, err := episodeStore.Create(ctx, sessionID)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := episodeStore.AppendTurn(ctx, ep.ID, models.RoleUser, fmt.Sprintf("turn %d", i))
		require.NoError(t, err)
	}
	return ep.ID
}

func TestConsolidateMarksTurnsExtracted(t *testing.T) {
	ctx := context.Background()
	extractor := &stubExtractor{}
	c, episodeStore, tripleSvc := setup(t, extractor)

	epID := addTurns(t, episodeStore, "sess", 3)

	c.consolidate("sess")
	require.Equal(t, 1, extractor.calls)

	// Stored triples carry the originating episode.
	got, err := tripleSvc.QueryByEpisode(ctx, epID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "conversation", got[0].Source)

	// Turns are marked, so the next pass has nothing to do.
	turns, err := episodeStore.UnextractedTurns(ctx, "sess")
	require.NoError(t, err)
	require.Empty(t, turns)

	c.consolidate("sess")
	require.Equal(t, 1, extractor.calls, "already-extracted turns are not re-extracted")
}

func TestConsolidatePerEpisode(t *testing.T) {
	ctx := context.Background()
	extractor := &stubExtractor{}
	c, episodeStore, tripleSvc := setup(t, extractor)

	ep1 := addTurns(t, episodeStore, "sess", 2)
	require.NoError(t, episodeStore.Finalize(ctx, ep1, ""))
	ep2 := addTurns(t, episodeStore, "sess", 2)

	c.consolidate("sess")
	require.Equal(t, 2, extractor.calls, "one extraction call per episode")

	for _, epID := range []string{ep1, ep2} {
		got, err := tripleSvc.QueryByEpisode(ctx, epID, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
}

func TestConsolidateFailureLeavesTurns(t *testing.T) {
	ctx := context.Background()
	extractor := &stubExtractor{fail: true}
	c, episodeStore, _ := setup(t, extractor)

	addTurns(t, episodeStore, "sess", 2)

	c.consolidate("sess")

	turns, err := episodeStore.UnextractedTurns(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, turns, 2, "failed extraction leaves turns for the next cycle")

	// Recovery: the extractor comes back and the sweep path retries.
	extractor.fail = false
	c.consolidate("sess")

	turns, err = episodeStore.UnextractedTurns(ctx, "sess")
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestConsolidateNilExtractor(t *testing.T) {
	ctx := context.Background()
	c, episodeStore, _ := setup(t, nil)
	c.extractor = nil

	addTurns(t, episodeStore, "sess", 2)
	c.consolidate("sess")

	turns, err := episodeStore.UnextractedTurns(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, turns, 2, "turns stay pending until an extractor is configured")
}

func TestNotifyCoalesces(t *testing.T) {
	c, _, _ := setup(t, &stubExtractor{})

	c.Notify("sess")
	c.Notify("sess")
	c.Notify("other")

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.due, 2)
}
