package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jbpayton/sophia-ams/internal/models"
)

// defaultConfidence is assigned to extracted candidates that carry none.
const defaultConfidence = 0.8

const extractionPrompt = `Extract factual knowledge from this conversation as subject-predicate-object triples.

Rules:
- Subjects and objects are concrete entities or short phrases.
- Predicates are lowercase with underscores, e.g. "works_at", "prefers", "requires".
- For procedural knowledge (how to do things), use these predicates: accomplished_by, alternatively_by, requires, requires_prior, has_step, followed_by, example_usage, enables, is_method_for.
- Include a "topics" list of 1-3 categories per triple and a "confidence" in [0,1].
- Skip small talk; only extract facts worth remembering.

Respond with a JSON array only:
[{"subject": "...", "predicate": "...", "object": "...", "topics": ["..."], "confidence": 0.9}]

Conversation:
%s`

// OllamaExtractor calls a local Ollama model to extract triples from text.
type OllamaExtractor struct {
	baseURL string
	model   string
	logger  *slog.Logger
	client  *http.Client
}

func NewOllamaExtractor(baseURL, model string, logger *slog.Logger) *OllamaExtractor {
	return &OllamaExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		logger:  logger,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Extract prompts the model and parses its JSON array response. Malformed
// entries are logged and dropped; an unparseable response is an error the
// caller retries on the next consolidation cycle.
func (e *OllamaExtractor) Extract(ctx context.Context, text string) ([]models.TripleCandidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	body, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: fmt.Sprintf(extractionPrompt, text),
		Stream: false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	candidates, rejected, err := ParseCandidates(gen.Response, defaultConfidence)
	if err != nil {
		return nil, err
	}
	for _, r := range rejected {
		e.logger.Warn("skipping malformed extraction candidate", "candidate", r)
	}
	return candidates, nil
}
