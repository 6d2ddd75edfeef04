package models

// TurnRole identifies the speaker of a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleSystem    TurnRole = "system"
)

func (r TurnRole) IsValid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// Turn is one message in an episode, ordered by sequence.
type Turn struct {
	ID        string   `json:"id"`
	EpisodeID string   `json:"episodeId"`
	Role      TurnRole `json:"role"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"createdAt"`
	Sequence  int      `json:"sequence"`

	// Extracted marks turns that consolidation has already turned into
	// triples. Not exposed on the wire.
	Extracted bool `json:"-"`
}

// Episode is a session-scoped, time-ordered conversation log. An episode is
// open until it is finalized, either explicitly or when its turn count
// reaches the configured ceiling.
type Episode struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	CreatedAt int64  `json:"createdAt"`
	Finalized bool   `json:"finalized"`
	Summary   string `json:"summary,omitempty"`
	TurnCount int    `json:"turnCount"`

	// Populated by joins when the full episode is requested.
	Turns []Turn `json:"turns,omitempty"`
}

// TimelineDay groups a day's episodes for activity-overview display.
type TimelineDay struct {
	Date     string    `json:"date"`
	Episodes []Episode `json:"episodes"`
}
