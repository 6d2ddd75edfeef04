package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Local is a deterministic feature-hashing embedder used when Ollama is
// unreachable at boot. Vectors are not semantically comparable to Ollama's,
// but identical text always maps to the identical vector, which keeps
// idempotent ingestion and tests working offline.
type Local struct {
	dim int
}

// NewLocal creates a local embedder producing vectors of the given dimension.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = 768
	}
	return &Local{dim: dim}
}

// Embed hashes word unigrams and bigrams into dim buckets and L2-normalizes
// the result.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dim)
	words := tokenize(text)

	for i, w := range words {
		bump(vec, w, 1.0)
		if i+1 < len(words) {
			bump(vec, w+" "+words[i+1], 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func bump(vec []float32, token string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(token))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	// Low bit picks the sign so hash collisions tend to cancel instead of
	// piling up.
	sign := float32(1)
	if sum&(1<<63) != 0 {
		sign = -1
	}
	vec[idx] += sign * weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
