package triples

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// failingEmbedder simulates an unreachable embedding backend.
type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedder down")
}

func newTestService(t *testing.T) (*Service, *vectorindex.Memory) {
	t.Helper()
	idx := vectorindex.NewMemory()
	svc := NewService(idx, embedding.NewLocal(32), Options{}, slog.Default())
	return svc, idx
}

func TestIngestIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, idx := newTestService(t)

	cand := models.TripleCandidate{
		Subject:    "Alice",
		Predicate:  "works_at",
		Object:     "Acme",
		Confidence: 0.7,
		Topics:     []string{"work"},
	}

	stored, skipped := svc.Ingest(ctx, []models.TripleCandidate{cand})
	require.Equal(t, 1, stored)
	require.Equal(t, 0, skipped)

	// Same fact again: merged, not duplicated.
	cand.Confidence = 0.5
	cand.Topics = []string{"employment"}
	stored, skipped = svc.Ingest(ctx, []models.TripleCandidate{cand})
	require.Equal(t, 1, stored)
	require.Equal(t, 0, skipped)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := svc.Get(ctx, models.TripleID("Alice", "works_at", "Acme", "api"))
	require.NoError(t, err)
	require.NotNil(t, got)
	// Confidence never drops on re-observation.
	require.GreaterOrEqual(t, got.Confidence, 0.7)
	require.ElementsMatch(t, []string{"work", "employment"}, got.Topics)
}

func TestIngestPreservesVerbatimText(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{{
		Subject:   "Docker",
		Predicate: "Is A",
		Object:    "  container   runtime ",
	}})

	got, err := svc.Get(ctx, models.TripleID("Docker", models.Predicate("Is A").Normalized(), "  container   runtime ", "api"))
	require.NoError(t, err)
	require.NotNil(t, got)
	// Entities round-trip byte for byte; only the predicate is normalized.
	require.Equal(t, "Docker", got.Subject)
	require.Equal(t, "  container   runtime ", got.Object)
	require.Equal(t, models.Predicate("is_a"), got.Predicate)
}

func TestIngestCaseSensitiveEntities(t *testing.T) {
	ctx := context.Background()
	svc, idx := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{
		{Subject: "Docker", Predicate: "is_a", Object: "tool"},
		{Subject: "docker", Predicate: "is_a", Object: "tool"},
	})

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestIngestSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	stored, skipped := svc.Ingest(ctx, []models.TripleCandidate{
		{Subject: "", Predicate: "is_a", Object: "thing"},
		{Subject: "thing", Predicate: "", Object: "other"},
		{Subject: "   ", Predicate: "is_a", Object: "thing"},
		{Subject: "ok", Predicate: "is_a", Object: "thing"},
	})
	require.Equal(t, 1, stored)
	require.Equal(t, 3, skipped)
}

func TestIngestTagsProceduralTriples(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{{
		Subject:   "deploy",
		Predicate: "has_step",
		Object:    "run the release script",
	}})

	got, err := svc.Get(ctx, models.TripleID("deploy", "has_step", "run the release script", "api"))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Contains(t, got.Topics, models.TopicProcedure)
}

func TestIngestDefaultsConfidence(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{
		{Subject: "a", Predicate: "is_a", Object: "b"},
		{Subject: "c", Predicate: "is_a", Object: "d", Confidence: 7},
	})

	got, err := svc.Get(ctx, models.TripleID("a", "is_a", "b", "api"))
	require.NoError(t, err)
	require.Equal(t, 0.8, got.Confidence)

	got, err = svc.Get(ctx, models.TripleID("c", "is_a", "d", "api"))
	require.NoError(t, err)
	require.Equal(t, 1.0, got.Confidence)
}

func TestQueryRanksByBlendedScore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{
		{Subject: "backups", Predicate: "requires", Object: "nightly snapshot", Confidence: 0.9},
		{Subject: "backups", Predicate: "related_to", Object: "nightly snapshot", Confidence: 0.9},
	})

	results, err := svc.Query(ctx, "backups nightly snapshot", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Identical text and confidence: the procedural predicate's weight decides.
	require.Equal(t, models.Predicate("requires"), results[0].Triple.Predicate)
	require.Greater(t, results[0].Score, results[1].Score)
}

func TestQueryDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	svc := NewService(idx, failingEmbedder{}, Options{}, slog.Default())

	results, err := svc.Query(ctx, "anything", 5, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueryFilters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{
		{Subject: "alice", Predicate: "likes", Object: "jazz", Topics: []string{"music"}, Confidence: 0.9},
		{Subject: "alice", Predicate: "works_at", Object: "acme", Topics: []string{"work"}, Confidence: 0.4},
	})

	results, err := svc.Query(ctx, "alice", 10, &models.QueryFilters{Topics: []string{"music"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "jazz", results[0].Triple.Object)

	results, err = svc.Query(ctx, "alice", 10, &models.QueryFilters{MinConfidence: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "jazz", results[0].Triple.Object)
}

func TestQueryByEpisodeOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	svc.Ingest(ctx, []models.TripleCandidate{
		{Subject: "a", Predicate: "is_a", Object: "b", EpisodeID: "ep1"},
		{Subject: "c", Predicate: "is_a", Object: "d", EpisodeID: "ep1"},
		{Subject: "e", Predicate: "is_a", Object: "f", EpisodeID: "ep2"},
	})

	got, err := svc.QueryByEpisode(ctx, "ep1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, tr := range got {
		require.Equal(t, "ep1", tr.EpisodeID)
	}
}

func TestDecay(t *testing.T) {
	svc, _ := newTestService(t)

	now := time.Now().Unix()

	t.Run("fresh fact keeps its confidence", func(t *testing.T) {
		require.InDelta(t, 0.8, svc.Decay(0.8, now), 0.001)
	})

	t.Run("one half-life halves it", func(t *testing.T) {
		past := now - int64(90*86400)
		require.InDelta(t, 0.4, svc.Decay(0.8, past), 0.005)
	})

	t.Run("floors at 0.05", func(t *testing.T) {
		ancient := now - int64(20*365*86400)
		require.Equal(t, 0.05, svc.Decay(0.8, ancient))
	})
}
