package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTripleIDDeterministic(t *testing.T) {
	a := TripleID("Alice", "works_at", "Acme", "api")
	b := TripleID("Alice", "works_at", "Acme", "api")
	require.Equal(t, a, b)

	t.Run("whitespace and predicate case are normalized away", func(t *testing.T) {
		c := TripleID("  Alice ", "Works At", "Acme", "api")
		require.Equal(t, a, c)
	})

	t.Run("entity case is identity-relevant", func(t *testing.T) {
		d := TripleID("alice", "works_at", "Acme", "api")
		require.NotEqual(t, a, d)
	})

	t.Run("source is identity-relevant", func(t *testing.T) {
		e := TripleID("Alice", "works_at", "Acme", "conversation")
		require.NotEqual(t, a, e)
	})
}

func TestEntityKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Docker", "Docker"},
		{"  Docker  ", "Docker"},
		{"container \t runtime", "container runtime"},
		{"   ", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, EntityKey(tt.in))
	}
}

func TestPredicateNormalization(t *testing.T) {
	require.Equal(t, Predicate("is_a"), Predicate("Is A").Normalized())
	require.Equal(t, Predicate("has_step"), Predicate("  HAS  STEP ").Normalized())
	require.Equal(t, "has step", Predicate("has_step").Display())
}

func TestPredicateWeights(t *testing.T) {
	require.True(t, Predicate("has_step").IsProcedural())
	require.Equal(t, 2.0, Predicate("requires").Weight())

	require.False(t, Predicate("likes").IsProcedural())
	require.Equal(t, 1.0, Predicate("likes").Weight())

	// Goal predicates are reserved but not procedural.
	require.False(t, PredicateIsGoalOf.IsProcedural())
}

func TestEmbeddingText(t *testing.T) {
	tr := &Triple{Subject: "deploy", Predicate: "has_step", Object: "run the script"}
	require.Equal(t, "deploy has step run the script", tr.EmbeddingText())
}
