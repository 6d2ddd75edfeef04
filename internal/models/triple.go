package models

import (
	"strings"

	"github.com/google/uuid"
)

// Predicate is the relation of a triple. The vocabulary is open, but a
// reserved subset marks procedural knowledge and carries extra weight in
// retrieval.
type Predicate string

const (
	PredicateAccomplishedBy  Predicate = "accomplished_by"
	PredicateAlternativelyBy Predicate = "alternatively_by"
	PredicateRequires        Predicate = "requires"
	PredicateRequiresPrior   Predicate = "requires_prior"
	PredicateHasStep         Predicate = "has_step"
	PredicateFollowedBy      Predicate = "followed_by"
	PredicateExampleUsage    Predicate = "example_usage"
	PredicateEnables         Predicate = "enables"
	PredicateIsMethodFor     Predicate = "is_method_for"

	// Goal-system predicates. Not procedural; reserved so goal triples can be
	// recognized without string matching scattered through business logic.
	PredicateIsGoalOf    Predicate = "is_goal_of"
	PredicateSubgoalOf   Predicate = "subgoal_of"
	PredicateDerivedFrom Predicate = "derived_from"
)

// proceduralPredicates is the reserved set that marks a triple as procedural
// knowledge. Triples with these predicates are tagged "procedure" in topics.
var proceduralPredicates = map[Predicate]bool{
	PredicateAccomplishedBy:  true,
	PredicateAlternativelyBy: true,
	PredicateRequires:        true,
	PredicateRequiresPrior:   true,
	PredicateHasStep:         true,
	PredicateFollowedBy:      true,
	PredicateExampleUsage:    true,
	PredicateEnables:         true,
	PredicateIsMethodFor:     true,
}

// ProceduralWeight is the retrieval score multiplier for procedural triples.
const ProceduralWeight = 2.0

// TopicProcedure tags triples carrying procedural knowledge.
const TopicProcedure = "procedure"

// TopicGoal tags triples that encode a goal.
const TopicGoal = "goal"

func (p Predicate) IsProcedural() bool {
	return proceduralPredicates[p]
}

// Weight returns the score multiplier applied when blending similarity with
// predicate importance.
func (p Predicate) Weight() float64 {
	if p.IsProcedural() {
		return ProceduralWeight
	}
	return 1.0
}

// Normalized returns the predicate in canonical form: trimmed, lowercased,
// inner whitespace collapsed to underscores.
func (p Predicate) Normalized() Predicate {
	s := strings.ToLower(CollapseWhitespace(string(p)))
	return Predicate(strings.ReplaceAll(s, " ", "_"))
}

// Display returns the predicate with underscores as spaces, for embedding
// text and human-readable output.
func (p Predicate) Display() string {
	return strings.ReplaceAll(string(p), "_", " ")
}

// Triple is a (subject, predicate, object) fact with provenance metadata.
// Subject, predicate, and object are stored verbatim; identity and graph
// matching use normalized forms.
type Triple struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	Predicate        Predicate `json:"predicate"`
	Object           string    `json:"object"`
	Confidence       float64   `json:"confidence"`
	Topics           []string  `json:"topics,omitempty"`
	Source           string    `json:"source"`
	EpisodeID        string    `json:"episodeId,omitempty"`
	AbstractionLevel int       `json:"abstractionLevel,omitempty"`
	CreatedAt        int64     `json:"createdAt"`
	UpdatedAt        int64     `json:"updatedAt"`
}

// tripleNamespace seeds deterministic triple IDs so the same fact from the
// same source always maps to the same vector point.
var tripleNamespace = uuid.MustParse("8d7a5e50-9f2b-4c41-b6d1-3e8a0c5f7a19")

// TripleID derives the content-addressed identity of a triple from its
// normalized parts and source. Re-ingesting an identical fact produces the
// same ID, which is what makes ingestion idempotent.
func TripleID(subject string, predicate Predicate, object, source string) string {
	key := strings.Join([]string{
		EntityKey(subject),
		string(predicate.Normalized()),
		EntityKey(object),
		source,
	}, "\x1f")
	return uuid.NewSHA1(tripleNamespace, []byte(key)).String()
}

// EntityKey normalizes an entity string for identity and graph matching:
// trimmed with inner whitespace collapsed. Case is preserved; the upstream
// extractor treats "Docker" and "docker" as distinct entities.
func EntityKey(s string) string {
	return CollapseWhitespace(s)
}

// CollapseWhitespace trims s and collapses runs of whitespace to single
// spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EmbeddingText renders the textual form of a triple handed to the embedder.
func (t *Triple) EmbeddingText() string {
	return t.Subject + " " + t.Predicate.Display() + " " + t.Object
}

// SubjectKey returns the normalized subject used for graph matching.
func (t *Triple) SubjectKey() string { return EntityKey(t.Subject) }

// ObjectKey returns the normalized object used for graph matching.
func (t *Triple) ObjectKey() string { return EntityKey(t.Object) }

// HasTopic reports whether the triple carries the given topic.
func (t *Triple) HasTopic(topic string) bool {
	for _, tp := range t.Topics {
		if tp == topic {
			return true
		}
	}
	return false
}

// TripleCandidate is one extracted fact offered to ingestion. Candidates come
// from the extraction collaborator or directly from API callers and are
// validated before storage.
type TripleCandidate struct {
	Subject          string    `json:"subject"`
	Predicate        Predicate `json:"predicate"`
	Object           string    `json:"object"`
	Topics           []string  `json:"topics,omitempty"`
	Confidence       float64   `json:"confidence,omitempty"`
	Source           string    `json:"source,omitempty"`
	EpisodeID        string    `json:"episodeId,omitempty"`
	AbstractionLevel int       `json:"abstractionLevel,omitempty"`
}

// ScoredTriple is a retrieval result: the triple plus its blended score and
// the raw vector similarity it came from.
type ScoredTriple struct {
	Triple     Triple  `json:"triple"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// ExpandedTriple is a hop-expansion result: the triple, the hop at which it
// was first discovered, and its hop-decayed confidence.
type ExpandedTriple struct {
	Triple     Triple  `json:"triple"`
	Hop        int     `json:"hop"`
	Confidence float64 `json:"confidence"`
}

// Subgraph is the result of associative expansion from seed entities.
type Subgraph struct {
	Seeds    []string         `json:"seeds"`
	Triples  []ExpandedTriple `json:"triples"`
	Entities []string         `json:"entities"`
}
