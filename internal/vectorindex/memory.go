package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Index backed by a map with brute-force cosine
// search. It backs tests and index-less deployments; filter semantics match
// the Qdrant adapter.
type Memory struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemory creates an empty in-process index.
func NewMemory() *Memory {
	return &Memory{points: make(map[string]Point)}
}

func (m *Memory) Init(ctx context.Context) error { return nil }

func (m *Memory) Upsert(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.ID] = clonePoint(p)
	}
	return nil
}

func (m *Memory) Search(ctx context.Context, vector []float32, filter *Filter, k int) ([]Scored, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Scored
	for _, p := range m.points {
		if !matches(filter, p.Payload) {
			continue
		}
		results = append(results, Scored{
			Point: clonePoint(p),
			Score: cosine(vector, p.Vector),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *Memory) Scroll(ctx context.Context, filter *Filter, limit int) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var points []Point
	for _, p := range m.points {
		if !matches(filter, p.Payload) {
			continue
		}
		points = append(points, clonePoint(p))
		if limit > 0 && len(points) >= limit {
			break
		}
	}
	return points, nil
}

func (m *Memory) Retrieve(ctx context.Context, ids []string) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var points []Point
	for _, id := range ids {
		if p, ok := m.points[id]; ok {
			points = append(points, clonePoint(p))
		}
	}
	return points, nil
}

func (m *Memory) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

func (m *Memory) Healthy(ctx context.Context) error { return nil }

// matches applies Filter semantics to a payload: every set condition must
// hold, list conditions match any element.
func matches(f *Filter, payload map[string]any) bool {
	if f.IsZero() {
		return true
	}
	if f.Predicate != "" && PayloadString(payload, "predicate") != f.Predicate {
		return false
	}
	if len(f.Predicates) > 0 && !containsString(f.Predicates, PayloadString(payload, "predicate")) {
		return false
	}
	if len(f.Topics) > 0 && !intersects(PayloadStrings(payload, "topics"), f.Topics) {
		return false
	}
	if f.MinConfidence > 0 && PayloadFloat(payload, "confidence") < f.MinConfidence {
		return false
	}
	if f.EpisodeID != "" && PayloadString(payload, "episode_id") != f.EpisodeID {
		return false
	}
	if f.Source != "" && PayloadString(payload, "source") != f.Source {
		return false
	}
	if f.Subject != "" && PayloadString(payload, "subject_key") != f.Subject {
		return false
	}
	if f.Object != "" && PayloadString(payload, "object_key") != f.Object {
		return false
	}
	if f.Entity != "" &&
		PayloadString(payload, "subject_key") != f.Entity &&
		PayloadString(payload, "object_key") != f.Entity {
		return false
	}
	if f.CreatedAfter > 0 && PayloadInt64(payload, "created_at") < f.CreatedAfter {
		return false
	}
	if f.CreatedBefore > 0 && PayloadInt64(payload, "created_at") > f.CreatedBefore {
		return false
	}
	return true
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(have, want []string) bool {
	for _, w := range want {
		if containsString(have, w) {
			return true
		}
	}
	return false
}

// cosine computes the cosine similarity of two vectors, 0 when either is
// empty or lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// clonePoint deep-copies a point so callers cannot mutate stored state.
func clonePoint(p Point) Point {
	out := Point{ID: p.ID}
	if p.Vector != nil {
		out.Vector = make([]float32, len(p.Vector))
		copy(out.Vector, p.Vector)
	}
	if p.Payload != nil {
		out.Payload = make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			out.Payload[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
