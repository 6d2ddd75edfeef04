// Package assoc implements associative retrieval: breadth-first hop
// expansion over the triple graph outward from seed entities, with confidence
// decaying per hop so distant associations rank below direct ones.
package assoc

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/observability"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// Options bounds a hop expansion.
type Options struct {
	MaxHops        int
	BranchingLimit int
	MinConfidence  float64
	HopDecay       float64
}

func (o Options) withDefaults() Options {
	if o.MaxHops <= 0 {
		o.MaxHops = 2
	}
	if o.BranchingLimit <= 0 {
		o.BranchingLimit = 5
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = 0.4
	}
	if o.HopDecay <= 0 || o.HopDecay >= 1 {
		o.HopDecay = 0.7
	}
	return o
}

// scrollLimit caps the per-entity candidate fetch before greedy pruning.
const scrollLimit = 256

// Retriever pulls on a thread of knowledge from seed entities.
type Retriever struct {
	index  vectorindex.Index
	logger *slog.Logger
}

func NewRetriever(index vectorindex.Index, logger *slog.Logger) *Retriever {
	return &Retriever{index: index, logger: logger}
}

// Expand walks the triple graph breadth-first from the seeds. Each hop pulls
// the triples touching every frontier entity at or above MinConfidence, keeps
// the BranchingLimit highest-confidence triples per entity, and discounts
// their confidence by decay^hop. First discovery wins, so a triple's recorded
// hop is its minimal distance from the seeds. Traversal stops at MaxHops or
// when a hop adds no new entities. Index failures degrade to an empty
// subgraph.
func (r *Retriever) Expand(ctx context.Context, seeds []string, opts Options) (*models.Subgraph, error) {
	observability.Queries.WithLabelValues("expand").Inc()
	timer := observability.QueryDuration.WithLabelValues("expand")
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()

	opts = opts.withDefaults()

	visited := make(map[string]bool)   // entity keys already expanded or queued
	seenTriples := make(map[string]bool)
	var results []models.ExpandedTriple

	var frontier []string
	for _, s := range seeds {
		key := models.EntityKey(s)
		if key == "" || visited[key] {
			continue
		}
		visited[key] = true
		frontier = append(frontier, key)
	}

	for hop := 1; hop <= opts.MaxHops && len(frontier) > 0; hop++ {
		decay := math.Pow(opts.HopDecay, float64(hop))
		var next []string

		for _, entity := range frontier {
			points, err := r.index.Scroll(ctx, &vectorindex.Filter{
				Entity:        entity,
				MinConfidence: opts.MinConfidence,
			}, scrollLimit)
			if err != nil {
				r.logger.Warn("hop expansion scroll failed, returning partial subgraph",
					"entity", entity, "hop", hop, "error", err)
				return r.subgraph(seeds, results, visited), nil
			}

			candidates := make([]models.Triple, 0, len(points))
			for _, p := range points {
				candidates = append(candidates, triples.TripleFromPoint(p))
			}
			// Greedy pruning: only the strongest few edges per entity per hop
			// bound the graph size.
			sort.Slice(candidates, func(i, j int) bool {
				return candidates[i].Confidence > candidates[j].Confidence
			})
			if len(candidates) > opts.BranchingLimit {
				candidates = candidates[:opts.BranchingLimit]
			}

			for _, t := range candidates {
				if !seenTriples[t.ID] {
					seenTriples[t.ID] = true
					results = append(results, models.ExpandedTriple{
						Triple:     t,
						Hop:        hop,
						Confidence: t.Confidence * decay,
					})
				}
				for _, endpoint := range []string{t.SubjectKey(), t.ObjectKey()} {
					if endpoint != "" && !visited[endpoint] {
						visited[endpoint] = true
						next = append(next, endpoint)
					}
				}
			}
		}

		frontier = next
	}

	return r.subgraph(seeds, results, visited), nil
}

func (r *Retriever) subgraph(seeds []string, triples []models.ExpandedTriple, visited map[string]bool) *models.Subgraph {
	entities := make([]string, 0, len(visited))
	for e := range visited {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	sort.Slice(triples, func(i, j int) bool {
		if triples[i].Hop != triples[j].Hop {
			return triples[i].Hop < triples[j].Hop
		}
		return triples[i].Confidence > triples[j].Confidence
	})

	return &models.Subgraph{
		Seeds:    seeds,
		Triples:  triples,
		Entities: entities,
	}
}
