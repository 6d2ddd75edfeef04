package vectorindex

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Qdrant talks to the Qdrant REST API. One collection holds every triple;
// point ids are the triples' content hashes (UUIDs), payloads their metadata.
type Qdrant struct {
	baseURL    string
	collection string
	dimension  int
	httpClient *http.Client
}

// NewQdrant creates a Qdrant-backed index for the given collection.
func NewQdrant(baseURL, collection string, dimension int) *Qdrant {
	return &Qdrant{
		baseURL:    baseURL,
		collection: collection,
		dimension:  dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Init creates the collection if it doesn't exist.
func (q *Qdrant) Init(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/collections/"+q.collection, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("check collection: %v: %w", err, ErrUnavailable)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dimension,
			"distance": "Cosine",
		},
	}
	_, err = q.do(ctx, http.MethodPut, "/collections/"+q.collection, body)
	return err
}

// Upsert inserts or replaces points.
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	body := map[string]any{"points": points}
	_, err := q.do(ctx, http.MethodPut, q.pointsPath(""), body)
	return err
}

// Search returns the k nearest points passing the filter, best first.
func (q *Qdrant) Search(ctx context.Context, vector []float32, filter *Filter, k int) ([]Scored, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if cond := buildFilter(filter); cond != nil {
		body["filter"] = cond
	}

	respBody, err := q.do(ctx, http.MethodPost, q.pointsPath("/search"), body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	results := make([]Scored, len(resp.Result))
	for i, r := range resp.Result {
		results[i] = Scored{
			Point: Point{ID: r.ID, Payload: r.Payload},
			Score: r.Score,
		}
	}
	return results, nil
}

// Scroll pages through points passing the filter without vector ranking.
func (q *Qdrant) Scroll(ctx context.Context, filter *Filter, limit int) ([]Point, error) {
	var (
		points []Point
		offset any
	)
	for len(points) < limit {
		page := limit - len(points)
		if page > 512 {
			page = 512
		}
		body := map[string]any{
			"limit":        page,
			"with_payload": true,
			"with_vector":  false,
		}
		if cond := buildFilter(filter); cond != nil {
			body["filter"] = cond
		}
		if offset != nil {
			body["offset"] = offset
		}

		respBody, err := q.do(ctx, http.MethodPost, q.pointsPath("/scroll"), body)
		if err != nil {
			return nil, err
		}

		var resp struct {
			Result struct {
				Points []struct {
					ID      string         `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
				NextPageOffset any `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("decode scroll response: %w", err)
		}

		for _, p := range resp.Result.Points {
			points = append(points, Point{ID: p.ID, Payload: p.Payload})
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	return points, nil
}

// Retrieve fetches points by id, including their vectors.
func (q *Qdrant) Retrieve(ctx context.Context, ids []string) ([]Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  true,
	}

	respBody, err := q.do(ctx, http.MethodPost, q.pointsPath(""), body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode retrieve response: %w", err)
	}

	points := make([]Point, len(resp.Result))
	for i, r := range resp.Result {
		points[i] = Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload}
	}
	return points, nil
}

// Delete removes points by id.
func (q *Qdrant) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"points": ids}
	_, err := q.do(ctx, http.MethodPost, q.pointsPath("/delete"), body)
	return err
}

// Count returns the number of stored points.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	respBody, err := q.do(ctx, http.MethodPost, q.pointsPath("/count"), map[string]any{"exact": true})
	if err != nil {
		return 0, err
	}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return resp.Result.Count, nil
}

// Healthy verifies Qdrant connectivity.
func (q *Qdrant) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant health check: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qdrant health check: status %d", resp.StatusCode)
	}
	return nil
}

func (q *Qdrant) pointsPath(suffix string) string {
	return "/collections/" + q.collection + "/points" + suffix
}

// do issues a JSON request and returns the response body. Transport errors
// wrap ErrUnavailable so callers can degrade; HTTP errors surface the
// server's response text.
func (q *Qdrant) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s %s: %v: %w", method, path, err, ErrUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// buildFilter renders a Filter as Qdrant filter JSON, or nil when empty.
func buildFilter(f *Filter) map[string]any {
	if f.IsZero() {
		return nil
	}

	var must []map[string]any

	match := func(key, value string) map[string]any {
		return map[string]any{"key": key, "match": map[string]any{"value": value}}
	}

	if f.Predicate != "" {
		must = append(must, match("predicate", f.Predicate))
	}
	if len(f.Predicates) > 0 {
		must = append(must, map[string]any{
			"key": "predicate", "match": map[string]any{"any": f.Predicates},
		})
	}
	if len(f.Topics) > 0 {
		must = append(must, map[string]any{
			"key": "topics", "match": map[string]any{"any": f.Topics},
		})
	}
	if f.MinConfidence > 0 {
		must = append(must, map[string]any{
			"key": "confidence", "range": map[string]any{"gte": f.MinConfidence},
		})
	}
	if f.EpisodeID != "" {
		must = append(must, match("episode_id", f.EpisodeID))
	}
	if f.Source != "" {
		must = append(must, match("source", f.Source))
	}
	if f.Subject != "" {
		must = append(must, match("subject_key", f.Subject))
	}
	if f.Object != "" {
		must = append(must, match("object_key", f.Object))
	}
	if f.Entity != "" {
		must = append(must, map[string]any{
			"should": []map[string]any{
				match("subject_key", f.Entity),
				match("object_key", f.Entity),
			},
		})
	}
	if f.CreatedAfter > 0 || f.CreatedBefore > 0 {
		rng := map[string]any{}
		if f.CreatedAfter > 0 {
			rng["gte"] = f.CreatedAfter
		}
		if f.CreatedBefore > 0 {
			rng["lte"] = f.CreatedBefore
		}
		must = append(must, map[string]any{"key": "created_at", "range": rng})
	}

	return map[string]any{"must": must}
}
