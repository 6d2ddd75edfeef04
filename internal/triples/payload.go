package triples

import (
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// Payload codec between triples and vector-index points. Keys are snake_case;
// subject/predicate/object are stored verbatim while subject_key/object_key
// carry the normalized forms used for graph matching.

// PointFromTriple renders a triple as an index point. Extra, when non-nil, is
// merged into the payload; the goal subsystem uses it to attach its "goal"
// sub-object.
func PointFromTriple(t *models.Triple, vector []float32, extra map[string]any) vectorindex.Point {
	payload := map[string]any{
		"subject":     t.Subject,
		"predicate":   string(t.Predicate),
		"object":      t.Object,
		"subject_key": t.SubjectKey(),
		"object_key":  t.ObjectKey(),
		"confidence":  t.Confidence,
		"source":      t.Source,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}
	if len(t.Topics) > 0 {
		payload["topics"] = t.Topics
	}
	if t.EpisodeID != "" {
		payload["episode_id"] = t.EpisodeID
	}
	if t.AbstractionLevel != 0 {
		payload["abstraction_level"] = t.AbstractionLevel
	}
	for k, v := range extra {
		payload[k] = v
	}
	return vectorindex.Point{ID: t.ID, Vector: vector, Payload: payload}
}

// TripleFromPoint reconstructs a triple from an index point's payload.
func TripleFromPoint(p vectorindex.Point) models.Triple {
	return models.Triple{
		ID:               p.ID,
		Subject:          vectorindex.PayloadString(p.Payload, "subject"),
		Predicate:        models.Predicate(vectorindex.PayloadString(p.Payload, "predicate")),
		Object:           vectorindex.PayloadString(p.Payload, "object"),
		Confidence:       vectorindex.PayloadFloat(p.Payload, "confidence"),
		Topics:           vectorindex.PayloadStrings(p.Payload, "topics"),
		Source:           vectorindex.PayloadString(p.Payload, "source"),
		EpisodeID:        vectorindex.PayloadString(p.Payload, "episode_id"),
		AbstractionLevel: vectorindex.PayloadInt(p.Payload, "abstraction_level"),
		CreatedAt:        vectorindex.PayloadInt64(p.Payload, "created_at"),
		UpdatedAt:        vectorindex.PayloadInt64(p.Payload, "updated_at"),
	}
}
