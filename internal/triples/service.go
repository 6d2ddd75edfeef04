package triples

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/observability"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// Options tunes the triple store.
type Options struct {
	// HalfLifeDays controls confidence decay; stored confidence halves every
	// HalfLifeDays since the triple was last observed.
	HalfLifeDays float64
	// ScrollLimit caps metadata-only reads.
	ScrollLimit int
	// DefaultConfidence is assigned to candidates that carry none.
	DefaultConfidence float64
}

func (o Options) withDefaults() Options {
	if o.HalfLifeDays <= 0 {
		o.HalfLifeDays = 90
	}
	if o.ScrollLimit <= 0 {
		o.ScrollLimit = 1000
	}
	if o.DefaultConfidence <= 0 {
		o.DefaultConfidence = 0.8
	}
	return o
}

// Service is the triple store: creation, hash-based deduplication, and
// similarity- plus metadata-filtered retrieval of facts. Triples persist only
// in the vector index.
type Service struct {
	index    vectorindex.Index
	embedder embedding.Embedder
	opts     Options
	logger   *slog.Logger
}

func NewService(index vectorindex.Index, embedder embedding.Embedder, opts Options, logger *slog.Logger) *Service {
	return &Service{
		index:    index,
		embedder: embedder,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// Index exposes the backing vector index to sibling services (the goal
// subsystem persists its triples through the same collection).
func (s *Service) Index() vectorindex.Index { return s.index }

// Embedder exposes the configured embedder.
func (s *Service) Embedder() embedding.Embedder { return s.embedder }

// Decay applies time decay to a stored confidence: halved every half-life,
// floored at 0.05 so old facts fade rather than vanish.
func (s *Service) Decay(confidence float64, lastUpdated int64) float64 {
	elapsedDays := float64(time.Now().Unix()-lastUpdated) / 86400.0
	if elapsedDays <= 0 {
		return confidence
	}
	decayed := confidence * math.Exp(-math.Ln2*elapsedDays/s.opts.HalfLifeDays)
	if decayed < 0.05 {
		return 0.05
	}
	return decayed
}

// Ingest stores a batch of candidate triples. Identity is the content hash of
// the normalized (subject, predicate, object, source) tuple, so re-ingesting
// an identical fact merges metadata instead of duplicating: confidence takes
// the max of the decayed existing value and the new one, topics union, and
// created_at keeps the earliest observation. Malformed candidates and
// per-triple index failures are logged and skipped; the batch never aborts.
func (s *Service) Ingest(ctx context.Context, candidates []models.TripleCandidate) (stored, skipped int) {
	now := time.Now().Unix()

	for _, c := range candidates {
		subject := models.EntityKey(c.Subject)
		object := models.EntityKey(c.Object)
		predicate := c.Predicate.Normalized()
		if subject == "" || object == "" || predicate == "" {
			s.logger.Warn("skipping malformed candidate",
				"subject", c.Subject, "predicate", string(c.Predicate), "object", c.Object)
			skipped++
			observability.IngestSkipped.Inc()
			continue
		}

		confidence := c.Confidence
		if confidence == 0 {
			confidence = s.opts.DefaultConfidence
		}
		confidence = clamp01(confidence)

		level := c.AbstractionLevel
		if level < 0 || level > 3 {
			s.logger.Debug("dropping out-of-range abstraction level", "level", level)
			level = 0
		}

		source := c.Source
		if source == "" {
			source = "api"
		}

		topics := c.Topics
		if predicate.IsProcedural() {
			topics = appendMissing(topics, models.TopicProcedure)
		}

		triple := &models.Triple{
			ID:               models.TripleID(c.Subject, predicate, c.Object, source),
			Subject:          c.Subject,
			Predicate:        predicate,
			Object:           c.Object,
			Confidence:       confidence,
			Topics:           topics,
			Source:           source,
			EpisodeID:        c.EpisodeID,
			AbstractionLevel: level,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if err := s.upsert(ctx, triple); err != nil {
			s.logger.Warn("ingest failed for candidate", "id", triple.ID, "error", err)
			skipped++
			observability.IngestSkipped.Inc()
			continue
		}
		stored++
		observability.TriplesIngested.Inc()
	}

	return stored, skipped
}

// upsert merges with an existing point when the identity hash matches,
// otherwise embeds the triple's textual form and inserts a new point.
func (s *Service) upsert(ctx context.Context, t *models.Triple) error {
	existing, err := s.index.Retrieve(ctx, []string{t.ID})
	if err != nil {
		return fmt.Errorf("retrieve existing: %w", err)
	}

	if len(existing) > 0 {
		prev := TripleFromPoint(existing[0])
		merged := clamp01(math.Max(s.Decay(prev.Confidence, prev.UpdatedAt), t.Confidence))
		t.Confidence = merged
		t.Topics = unionStrings(prev.Topics, t.Topics)
		if prev.CreatedAt != 0 && prev.CreatedAt < t.CreatedAt {
			t.CreatedAt = prev.CreatedAt
		}
		if t.EpisodeID == "" {
			t.EpisodeID = prev.EpisodeID
		}
		if t.AbstractionLevel == 0 {
			t.AbstractionLevel = prev.AbstractionLevel
		}
		return s.index.Upsert(ctx, []vectorindex.Point{
			PointFromTriple(t, existing[0].Vector, nil),
		})
	}

	vec, err := s.embedder.Embed(ctx, t.EmbeddingText())
	if err != nil {
		return fmt.Errorf("embed triple: %w", err)
	}
	return s.index.Upsert(ctx, []vectorindex.Point{PointFromTriple(t, vec, nil)})
}

// Query embeds text and returns triples ranked by similarity blended with
// predicate weight and decayed confidence. Embed or index failures degrade to
// an empty result with a warning; recall is advisory, never fatal.
func (s *Service) Query(ctx context.Context, text string, limit int, filters *models.QueryFilters) ([]models.ScoredTriple, error) {
	timer := observability.QueryDuration.WithLabelValues("semantic")
	start := time.Now()
	defer func() { timer.Observe(time.Since(start).Seconds()) }()
	observability.Queries.WithLabelValues("semantic").Inc()

	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("query embed failed, returning empty", "error", err)
		return []models.ScoredTriple{}, nil
	}

	// Over-fetch so confidence/predicate blending can reorder before the cut.
	hits, err := s.index.Search(ctx, vec, filterFromQuery(filters), limit*3)
	if err != nil {
		s.logger.Warn("vector search failed, returning empty", "error", err)
		return []models.ScoredTriple{}, nil
	}

	results := make([]models.ScoredTriple, 0, len(hits))
	for _, h := range hits {
		t := TripleFromPoint(h.Point)
		decayed := s.Decay(t.Confidence, t.UpdatedAt)
		results = append(results, models.ScoredTriple{
			Triple:     t,
			Similarity: h.Score,
			Score:      h.Score * t.Predicate.Weight() * decayed,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// QueryByTimeRange returns triples created within [start, end], newest first.
// Metadata-only: no embedding step.
func (s *Service) QueryByTimeRange(ctx context.Context, start, end int64, limit int) ([]models.Triple, error) {
	return s.scrollSorted(ctx, &vectorindex.Filter{CreatedAfter: start, CreatedBefore: end}, limit, false)
}

// QueryRecent returns triples created within the last N hours, newest first.
func (s *Service) QueryRecent(ctx context.Context, hours, limit int) ([]models.Triple, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	return s.scrollSorted(ctx, &vectorindex.Filter{CreatedAfter: since}, limit, false)
}

// QueryByEpisode returns the triples extracted from one episode, oldest first
// so they read in conversation order.
func (s *Service) QueryByEpisode(ctx context.Context, episodeID string, limit int) ([]models.Triple, error) {
	return s.scrollSorted(ctx, &vectorindex.Filter{EpisodeID: episodeID}, limit, true)
}

func (s *Service) scrollSorted(ctx context.Context, filter *vectorindex.Filter, limit int, ascending bool) ([]models.Triple, error) {
	observability.Queries.WithLabelValues("temporal").Inc()
	if limit <= 0 {
		limit = 50
	}

	points, err := s.index.Scroll(ctx, filter, s.opts.ScrollLimit)
	if err != nil {
		s.logger.Warn("scroll failed, returning empty", "error", err)
		return []models.Triple{}, nil
	}

	results := make([]models.Triple, 0, len(points))
	for _, p := range points {
		results = append(results, TripleFromPoint(p))
	}
	sort.Slice(results, func(i, j int) bool {
		if ascending {
			return results[i].CreatedAt < results[j].CreatedAt
		}
		return results[i].CreatedAt > results[j].CreatedAt
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Get returns a triple by id, or nil if not found.
func (s *Service) Get(ctx context.Context, id string) (*models.Triple, error) {
	points, err := s.index.Retrieve(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("retrieve triple: %w", err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	t := TripleFromPoint(points[0])
	return &t, nil
}

// Delete removes triples by id.
func (s *Service) Delete(ctx context.Context, ids []string) error {
	return s.index.Delete(ctx, ids)
}

// Count returns the number of stored triples, 0 when the index is
// unreachable.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if errors.Is(err, vectorindex.ErrUnavailable) {
		s.logger.Warn("index unavailable for count")
		return 0, nil
	}
	return n, err
}

// filterFromQuery maps API query filters onto index filter conditions.
func filterFromQuery(f *models.QueryFilters) *vectorindex.Filter {
	if f == nil {
		return &vectorindex.Filter{}
	}
	out := &vectorindex.Filter{
		Topics:        f.Topics,
		MinConfidence: f.MinConfidence,
		EpisodeID:     f.EpisodeID,
		CreatedAfter:  f.StartTime,
		CreatedBefore: f.EndTime,
	}
	if f.Predicate != "" {
		out.Predicate = string(f.Predicate.Normalized())
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func appendMissing(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
