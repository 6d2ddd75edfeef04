package assoc

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

func seedGraph(t *testing.T, idx vectorindex.Index, cands []models.TripleCandidate) {
	t.Helper()
	svc := triples.NewService(idx, embedding.NewLocal(16), triples.Options{}, slog.Default())
	stored, skipped := svc.Ingest(context.Background(), cands)
	require.Equal(t, len(cands), stored)
	require.Zero(t, skipped)
}

func TestExpandHopDecay(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	seedGraph(t, idx, []models.TripleCandidate{
		{Subject: "kubernetes", Predicate: "runs_on", Object: "linux", Confidence: 0.9},
		{Subject: "linux", Predicate: "uses", Object: "cgroups", Confidence: 0.9},
	})

	r := NewRetriever(idx, slog.Default())
	sub, err := r.Expand(ctx, []string{"kubernetes"}, Options{MaxHops: 2})
	require.NoError(t, err)
	require.Len(t, sub.Triples, 2)

	require.Equal(t, 1, sub.Triples[0].Hop)
	require.Equal(t, "kubernetes", sub.Triples[0].Triple.Subject)
	require.Equal(t, 2, sub.Triples[1].Hop)
	require.Equal(t, "linux", sub.Triples[1].Triple.Subject)

	// Same stored confidence, so the second hop's extra decay must show.
	require.InDelta(t, 0.9*0.7, sub.Triples[0].Confidence, 0.0001)
	require.InDelta(t, 0.9*0.7*0.7, sub.Triples[1].Confidence, 0.0001)
	require.Greater(t, sub.Triples[0].Confidence, sub.Triples[1].Confidence)
}

func TestExpandRespectsMaxHops(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	seedGraph(t, idx, []models.TripleCandidate{
		{Subject: "a", Predicate: "links_to", Object: "b", Confidence: 0.9},
		{Subject: "b", Predicate: "links_to", Object: "c", Confidence: 0.9},
		{Subject: "c", Predicate: "links_to", Object: "d", Confidence: 0.9},
	})

	r := NewRetriever(idx, slog.Default())
	sub, err := r.Expand(ctx, []string{"a"}, Options{MaxHops: 1})
	require.NoError(t, err)
	require.Len(t, sub.Triples, 1)
	require.Equal(t, "b", sub.Triples[0].Triple.Object)
}

func TestExpandBranchingLimit(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()

	var cands []models.TripleCandidate
	for i := 0; i < 8; i++ {
		cands = append(cands, models.TripleCandidate{
			Subject:    "hub",
			Predicate:  "links_to",
			Object:     fmt.Sprintf("node-%d", i),
			Confidence: 0.5 + float64(i)*0.05,
		})
	}
	seedGraph(t, idx, cands)

	r := NewRetriever(idx, slog.Default())
	sub, err := r.Expand(ctx, []string{"hub"}, Options{MaxHops: 1, BranchingLimit: 3})
	require.NoError(t, err)
	require.Len(t, sub.Triples, 3)

	// Greedy pruning keeps the strongest edges.
	for _, et := range sub.Triples {
		require.GreaterOrEqual(t, et.Triple.Confidence, 0.75)
	}
}

func TestExpandMinConfidence(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	seedGraph(t, idx, []models.TripleCandidate{
		{Subject: "a", Predicate: "links_to", Object: "strong", Confidence: 0.9},
		{Subject: "a", Predicate: "links_to", Object: "weak", Confidence: 0.2},
	})

	r := NewRetriever(idx, slog.Default())
	sub, err := r.Expand(ctx, []string{"a"}, Options{MaxHops: 1, MinConfidence: 0.4})
	require.NoError(t, err)
	require.Len(t, sub.Triples, 1)
	require.Equal(t, "strong", sub.Triples[0].Triple.Object)
}

func TestExpandTerminatesOnCycle(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	seedGraph(t, idx, []models.TripleCandidate{
		{Subject: "a", Predicate: "links_to", Object: "b", Confidence: 0.9},
		{Subject: "b", Predicate: "links_to", Object: "a", Confidence: 0.9},
	})

	r := NewRetriever(idx, slog.Default())
	sub, err := r.Expand(ctx, []string{"a"}, Options{MaxHops: 10})
	require.NoError(t, err)

	// Both triples discovered once; traversal reaches a fixed point rather
	// than looping.
	require.Len(t, sub.Triples, 2)
	require.ElementsMatch(t, []string{"a", "b"}, sub.Entities)
}

func TestExpandUnknownSeed(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()

	r := NewRetriever(idx, slog.Default())
	sub, err := r.Expand(ctx, []string{"nothing here"}, Options{})
	require.NoError(t, err)
	require.Empty(t, sub.Triples)
	require.Equal(t, []string{"nothing here"}, sub.Entities)
}
