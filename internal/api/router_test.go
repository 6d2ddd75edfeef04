package api

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/jbpayton/sophia-ams/internal/assoc"
	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/episodes"
	"github.com/jbpayton/sophia-ams/internal/goals"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/store"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.Default()
	idx := vectorindex.NewMemory()
	embedder := embedding.NewLocal(16)

	tripleSvc := triples.NewService(idx, embedder, triples.Options{}, logger)
	retriever := assoc.NewRetriever(idx, logger)
	goalSvc := goals.NewService(idx, embedder, logger)
	episodeSvc := episodes.NewService(store.NewEpisodeStore(db), nil, 50, logger)

	router := NewRouter(db, idx, embedder, tripleSvc, retriever, nil, episodeSvc, goalSvc, nil, logger)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestTripleRoutes(t *testing.T) {
	srv := newTestServer(t)

	t.Run("ingest structured triples", func(t *testing.T) {
		var resp models.IngestResponse
		code := doJSON(t, http.MethodPost, srv.URL+"/api/triples/", models.IngestTriplesRequest{
			Triples: []models.TripleCandidate{
				{Subject: "alice", Predicate: "works_at", Object: "acme", Confidence: 0.9},
				{Subject: "acme", Predicate: "located_in", Object: "berlin", Confidence: 0.8},
			},
		}, &resp)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, 2, resp.Stored)
		require.Zero(t, resp.Skipped)
	})

	t.Run("query returns ranked results", func(t *testing.T) {
		var resp models.QueryResponse
		code := doJSON(t, http.MethodPost, srv.URL+"/api/query", models.QueryRequest{
			Text: "where does alice work", Limit: 5,
		}, &resp)
		require.Equal(t, http.StatusOK, code)
		require.NotEmpty(t, resp.Results)
	})

	t.Run("query without text is rejected", func(t *testing.T) {
		code := doJSON(t, http.MethodPost, srv.URL+"/api/query", models.QueryRequest{}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("expand walks hops", func(t *testing.T) {
		var sub models.Subgraph
		code := doJSON(t, http.MethodPost, srv.URL+"/api/expand", models.ExpandRequest{
			Entities: []string{"alice"}, MaxHops: 2,
		}, &sub)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, sub.Triples, 2)
		require.Contains(t, sub.Entities, "berlin")
	})

	t.Run("recent lists stored triples", func(t *testing.T) {
		var resp models.TriplesResponse
		code := doJSON(t, http.MethodGet, srv.URL+"/api/triples/recent?hours=1", nil, &resp)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, resp.Triples, 2)
	})

	t.Run("range rejects malformed timestamps", func(t *testing.T) {
		code := doJSON(t, http.MethodGet, srv.URL+"/api/triples/range?start=yesterday&end=now", nil, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("free text ingest without an extractor", func(t *testing.T) {
		code := doJSON(t, http.MethodPost, srv.URL+"/api/ingest", models.IngestTextRequest{
			Text: "alice works at acme",
		}, nil)
		require.Equal(t, http.StatusServiceUnavailable, code)
	})
}

func TestEpisodeRoutes(t *testing.T) {
	srv := newTestServer(t)

	var turn models.AddTurnResponse
	code := doJSON(t, http.MethodPost, srv.URL+"/api/episodes/turns", models.AddTurnRequest{
		SessionID: "sess", Role: models.RoleUser, Content: "hello there",
	}, &turn)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, turn.EpisodeID)
	require.False(t, turn.Finalized)

	t.Run("get requires the right session", func(t *testing.T) {
		var ep models.Episode
		code := doJSON(t, http.MethodGet, srv.URL+"/api/episodes/"+turn.EpisodeID+"?session_id=sess", nil, &ep)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, ep.Turns, 1)

		code = doJSON(t, http.MethodGet, srv.URL+"/api/episodes/"+turn.EpisodeID+"?session_id=other", nil, nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("search finds the turn", func(t *testing.T) {
		var resp models.EpisodesResponse
		code := doJSON(t, http.MethodGet, srv.URL+"/api/episodes/search?session_id=sess&q=hello", nil, &resp)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, resp.Episodes, 1)
	})

	t.Run("finalize closes the episode", func(t *testing.T) {
		code := doJSON(t, http.MethodPost, srv.URL+"/api/episodes/"+turn.EpisodeID+"/finalize", models.FinalizeEpisodeRequest{
			SessionID: "sess", Summary: "a greeting",
		}, nil)
		require.Equal(t, http.StatusOK, code)

		var ep models.Episode
		code = doJSON(t, http.MethodGet, srv.URL+"/api/episodes/"+turn.EpisodeID+"?session_id=sess", nil, &ep)
		require.Equal(t, http.StatusOK, code)
		require.True(t, ep.Finalized)
		require.Equal(t, "a greeting", ep.Summary)
	})

	t.Run("invalid role is rejected", func(t *testing.T) {
		code := doJSON(t, http.MethodPost, srv.URL+"/api/episodes/turns", models.AddTurnRequest{
			SessionID: "sess", Role: "narrator", Content: "hi",
		}, nil)
		require.Equal(t, http.StatusBadRequest, code)
	})
}

func TestGoalRoutes(t *testing.T) {
	srv := newTestServer(t)

	var created models.CreateGoalResponse
	code := doJSON(t, http.MethodPost, srv.URL+"/api/goals/", models.CreateGoalRequest{
		Description: "learn chess", Owner: "sophia", Priority: 4,
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, created.Created)

	t.Run("duplicate create returns 200 with the same id", func(t *testing.T) {
		var again models.CreateGoalResponse
		code := doJSON(t, http.MethodPost, srv.URL+"/api/goals/", models.CreateGoalRequest{
			Description: "learn chess", Owner: "sophia",
		}, &again)
		require.Equal(t, http.StatusOK, code)
		require.False(t, again.Created)
		require.Equal(t, created.ID, again.ID)
	})

	t.Run("update transitions status", func(t *testing.T) {
		status := models.GoalStatusInProgress
		var resp models.UpdateGoalResponse
		code := doJSON(t, http.MethodPatch, srv.URL+"/api/goals/", models.UpdateGoalRequest{
			Description: "learn chess", Owner: "sophia", Status: &status,
		}, &resp)
		require.Equal(t, http.StatusOK, code)
		require.True(t, resp.OK)
		require.Equal(t, models.GoalStatusInProgress, resp.Goal.Status)
	})

	t.Run("update of an unknown goal is 404", func(t *testing.T) {
		status := models.GoalStatusCompleted
		code := doJSON(t, http.MethodPatch, srv.URL+"/api/goals/", models.UpdateGoalRequest{
			Description: "never created", Owner: "sophia", Status: &status,
		}, nil)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("query and suggest", func(t *testing.T) {
		var list models.GoalsResponse
		code := doJSON(t, http.MethodGet, srv.URL+"/api/goals/?owner=sophia&active_only=true", nil, &list)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, list.Goals, 1)

		var sugg models.SuggestResponse
		code = doJSON(t, http.MethodGet, srv.URL+"/api/goals/suggest?owner=sophia", nil, &sugg)
		require.Equal(t, http.StatusOK, code)
		require.NotNil(t, sugg.Suggestion)
		require.Equal(t, "learn chess", sugg.Suggestion.Goal.Description)
	})
}

func TestHealthRoute(t *testing.T) {
	srv := newTestServer(t)

	var health models.HealthResponse
	code := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &health)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.DB.Status)
	require.Equal(t, "ok", health.Index.Status)
}
