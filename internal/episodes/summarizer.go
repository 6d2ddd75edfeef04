package episodes

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

// Summarizer generates short episode summaries at finalization using Ollama.
type Summarizer struct {
	ollamaURL string
	model     string
	enabled   bool
	logger    *slog.Logger
	client    *http.Client
}

func NewSummarizer(ollamaURL, model string, enabled bool, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		ollamaURL: strings.TrimRight(ollamaURL, "/"),
		model:     model,
		enabled:   enabled,
		logger:    logger,
		client: &http.Client{
			Timeout: 120 * time.Second, // LLM generation can be slow
		},
	}
}

// IsEnabled returns whether summarization is active.
func (s *Summarizer) IsEnabled() bool {
	return s.enabled
}

const summaryPrompt = `Summarize this conversation in 2-4 sentences. Capture the topics discussed, decisions or facts established, and anything the participants agreed to do next. Output plain text only.

## Conversation
%s`

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Summarize renders the episode's turns as a transcript and asks the model
// for a short summary.
func (s *Summarizer) Summarize(ctx context.Context, turns []models.Turn) (string, error) {
	if !s.enabled {
		return "", fmt.Errorf("summarization disabled")
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("no turns to summarize")
	}

	transcript := RenderTranscript(turns)

	// Truncate to fit a small model's context window, keeping the tail for
	// recency.
	if len(transcript) > 24000 {
		transcript = transcript[:6000] + "\n\n[... middle truncated ...]\n\n" + transcript[len(transcript)-18000:]
	}

	reqBody := ollamaRequest{
		Model:  s.model,
		Prompt: fmt.Sprintf(summaryPrompt, transcript),
		Stream: false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ollamaURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	if ollamaResp.Response == "" {
		return "", fmt.Errorf("empty response from ollama")
	}

	return strings.TrimSpace(ollamaResp.Response), nil
}

// RenderTranscript formats turns as "role: content" lines, the shape both the
// summarizer and the extraction collaborator consume.
func RenderTranscript(turns []models.Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(string(t.Role))
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
