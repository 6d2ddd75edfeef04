package models

// --- Triple store ---

// IngestTextRequest is the payload for POST /api/ingest.
type IngestTextRequest struct {
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	EpisodeID string `json:"episodeId,omitempty"`
}

// IngestTriplesRequest is the payload for POST /api/triples.
type IngestTriplesRequest struct {
	Triples []TripleCandidate `json:"triples"`
}

// IngestResponse reports how many candidates were stored. Skipped covers
// malformed candidates and per-triple index failures.
type IngestResponse struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// QueryFilters narrows a similarity query by metadata.
type QueryFilters struct {
	Topics        []string  `json:"topics,omitempty"`
	Predicate     Predicate `json:"predicate,omitempty"`
	MinConfidence float64   `json:"minConfidence,omitempty"`
	EpisodeID     string    `json:"episodeId,omitempty"`
	StartTime     int64     `json:"startTime,omitempty"`
	EndTime       int64     `json:"endTime,omitempty"`
}

// QueryRequest is the payload for POST /api/query.
type QueryRequest struct {
	Text    string        `json:"text"`
	Limit   int           `json:"limit,omitempty"`
	Filters *QueryFilters `json:"filters,omitempty"`
}

// QueryResponse carries ranked triples. Empty results are a valid answer,
// not an error.
type QueryResponse struct {
	Results []ScoredTriple `json:"results"`
}

// TriplesResponse carries metadata-filtered triples without scores.
type TriplesResponse struct {
	Triples []Triple `json:"triples"`
}

// ExpandRequest is the payload for POST /api/expand.
type ExpandRequest struct {
	Entities       []string `json:"entities"`
	MaxHops        int      `json:"maxHops,omitempty"`
	BranchingLimit int      `json:"branchingLimit,omitempty"`
	MinConfidence  float64  `json:"minConfidence,omitempty"`
}

// --- Episodic store ---

// AddTurnRequest is the payload for POST /api/episodes/turns.
type AddTurnRequest struct {
	SessionID string   `json:"sessionId"`
	Role      TurnRole `json:"role"`
	Content   string   `json:"content"`
}

// AddTurnResponse identifies the episode the turn was appended to.
type AddTurnResponse struct {
	EpisodeID string `json:"episodeId"`
	Finalized bool   `json:"finalized"`
}

// FinalizeEpisodeRequest is the payload for POST /api/episodes/{id}/finalize.
type FinalizeEpisodeRequest struct {
	SessionID string `json:"sessionId"`
	Summary   string `json:"summary,omitempty"`
}

// EpisodesResponse carries episode listings.
type EpisodesResponse struct {
	Episodes []Episode `json:"episodes"`
}

// TimelineResponse groups episodes by day, newest day first.
type TimelineResponse struct {
	Days []TimelineDay `json:"days"`
}

// --- Goal subsystem ---

// CreateGoalRequest is the payload for POST /api/goals.
type CreateGoalRequest struct {
	Description   string   `json:"description"`
	Owner         string   `json:"owner"`
	Priority      int      `json:"priority,omitempty"`
	GoalType      GoalType `json:"goalType,omitempty"`
	IsForeverGoal bool     `json:"isForeverGoal,omitempty"`
	DependsOn     []string `json:"dependsOn,omitempty"`
	ParentGoal    string   `json:"parentGoal,omitempty"`
	TargetDate    *int64   `json:"targetDate,omitempty"`
	Topics        []string `json:"topics,omitempty"`
}

// CreateGoalResponse returns the goal id. Created is false when a goal with
// the same description and owner already existed.
type CreateGoalResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

// UpdateGoalRequest is the payload for PATCH /api/goals.
type UpdateGoalRequest struct {
	Description     string      `json:"description"`
	Owner           string      `json:"owner"`
	Status          *GoalStatus `json:"status,omitempty"`
	Priority        *int        `json:"priority,omitempty"`
	BlockerReason   *string     `json:"blockerReason,omitempty"`
	CompletionNotes *string     `json:"completionNotes,omitempty"`
	TargetDate      *int64      `json:"targetDate,omitempty"`
}

// UpdateGoalResponse reports the applied transition. The caller inspects the
// returned status to detect a completion that was redirected to blocked.
type UpdateGoalResponse struct {
	OK   bool  `json:"ok"`
	Goal *Goal `json:"goal,omitempty"`
}

// QueryGoalsRequest holds parsed query params for GET /api/goals.
type QueryGoalsRequest struct {
	Owner       string     `json:"owner"`
	Status      GoalStatus `json:"status,omitempty"`
	MinPriority int        `json:"minPriority,omitempty"`
	MaxPriority int        `json:"maxPriority,omitempty"`
	ActiveOnly  bool       `json:"activeOnly,omitempty"`
	Limit       int        `json:"limit,omitempty"`
}

// GoalsResponse carries goal listings.
type GoalsResponse struct {
	Goals []Goal `json:"goals"`
}

// SuggestResponse carries the suggested next goal, or null when no candidate
// qualifies.
type SuggestResponse struct {
	Suggestion *GoalSuggestion `json:"suggestion"`
}

// --- Health ---

// ServiceCheck reports one dependency's health.
type ServiceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	DB           ServiceCheck `json:"db"`
	Index        ServiceCheck `json:"index"`
	Embedder     ServiceCheck `json:"embedder"`
	TripleCount  int          `json:"tripleCount,omitempty"`
	EpisodeCount int          `json:"episodeCount,omitempty"`
}
