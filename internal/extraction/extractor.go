// Package extraction defines the contract for the external triple-extraction
// collaborator: a pure function from text to candidate facts. The engine
// treats its failures as recoverable: malformed candidates are skipped, and
// a broken extractor only delays consolidation.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/jbpayton/sophia-ams/internal/models"
)

// Extractor turns raw text into candidate triples.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]models.TripleCandidate, error)
}

// rawCandidate is the JSON shape the extraction model returns.
type rawCandidate struct {
	Subject    string   `json:"subject"`
	Predicate  string   `json:"predicate"`
	Object     string   `json:"object"`
	Topics     []string `json:"topics"`
	Confidence float64  `json:"confidence"`
}

// ParseCandidates extracts a JSON array of candidates from a model response.
// The response may be wrapped in markdown fences or prose; everything outside
// the first '[' and last ']' is discarded. Entries missing a subject,
// predicate, or object are skipped rather than failing the batch; a candidate
// without a confidence gets the default.
func ParseCandidates(content string, defaultConfidence float64) ([]models.TripleCandidate, []string, error) {
	content = stripFences(strings.TrimSpace(content))

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end <= start {
		return nil, nil, fmt.Errorf("no JSON array in extraction response")
	}

	var raw []rawCandidate
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, nil, fmt.Errorf("decode extraction response: %w", err)
	}

	var candidates []models.TripleCandidate
	var rejected []string
	for _, r := range raw {
		if strings.TrimSpace(r.Subject) == "" ||
			strings.TrimSpace(r.Predicate) == "" ||
			strings.TrimSpace(r.Object) == "" {
			rejected = append(rejected, fmt.Sprintf("(%q, %q, %q)", r.Subject, r.Predicate, r.Object))
			continue
		}
		confidence := r.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = defaultConfidence
		}
		candidates = append(candidates, models.TripleCandidate{
			Subject:    r.Subject,
			Predicate:  models.Predicate(r.Predicate),
			Object:     r.Object,
			Topics:     r.Topics,
			Confidence: confidence,
		})
	}
	return candidates, rejected, nil
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	if idx := strings.Index(content, "\n"); idx != -1 {
		content = content[idx+1:]
	}
	if idx := strings.LastIndex(content, "```"); idx != -1 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}
