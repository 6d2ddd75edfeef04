package vectorindex

import (
	"context"
	"errors"
)

// ErrUnavailable marks the index as unreachable. Callers degrade to empty
// results rather than failing the request.
var ErrUnavailable = errors.New("vector index unavailable")

// Point is a stored vector with its metadata payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Scored is a search hit: the point plus its similarity score.
type Scored struct {
	Point
	Score float64 `json:"score"`
}

// Filter narrows searches and scrolls by payload metadata. All set conditions
// are AND-ed; list conditions match any element. Subject and Object match the
// normalized subject_key/object_key payload fields; Entity matches either of
// them.
type Filter struct {
	Predicate     string
	Predicates    []string
	Topics        []string
	MinConfidence float64
	EpisodeID     string
	Source        string
	Subject       string
	Object        string
	Entity        string
	CreatedAfter  int64
	CreatedBefore int64
}

// IsZero reports whether no condition is set.
func (f *Filter) IsZero() bool {
	return f == nil || (f.Predicate == "" && len(f.Predicates) == 0 &&
		len(f.Topics) == 0 && f.MinConfidence == 0 && f.EpisodeID == "" &&
		f.Source == "" && f.Subject == "" && f.Object == "" && f.Entity == "" &&
		f.CreatedAfter == 0 && f.CreatedBefore == 0)
}

// Index is the contract over a nearest-neighbor store. Triples and goals
// persist here: the point id is the triple's content hash, the payload its
// full metadata.
type Index interface {
	// Init ensures the backing collection exists with the configured
	// dimension.
	Init(ctx context.Context) error

	// Upsert inserts or replaces points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the k nearest points passing the filter, best first.
	Search(ctx context.Context, vector []float32, filter *Filter, k int) ([]Scored, error)

	// Scroll returns up to limit points passing the filter, with no vector
	// ranking. Metadata-only queries go through here.
	Scroll(ctx context.Context, filter *Filter, limit int) ([]Point, error)

	// Retrieve fetches points by id. Missing ids are simply absent from the
	// result.
	Retrieve(ctx context.Context, ids []string) ([]Point, error)

	// Delete removes points by id.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored points.
	Count(ctx context.Context) (int, error)

	// Healthy verifies the index is reachable.
	Healthy(ctx context.Context) error
}
