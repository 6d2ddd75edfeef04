package models

// GoalStatus represents the lifecycle state of a goal.
type GoalStatus string

const (
	GoalStatusPending    GoalStatus = "pending"
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusBlocked    GoalStatus = "blocked"
	GoalStatusCancelled  GoalStatus = "cancelled"
	GoalStatusOngoing    GoalStatus = "ongoing"
)

func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalStatusPending, GoalStatusInProgress, GoalStatusCompleted,
		GoalStatusBlocked, GoalStatusCancelled, GoalStatusOngoing:
		return true
	}
	return false
}

// IsActive reports whether the status counts as active for querying and
// suggestion: pending, in_progress, or ongoing.
func (s GoalStatus) IsActive() bool {
	return s == GoalStatusPending || s == GoalStatusInProgress || s == GoalStatusOngoing
}

// IsResolved reports whether the status satisfies a dependency check:
// completed or cancelled.
func (s GoalStatus) IsResolved() bool {
	return s == GoalStatusCompleted || s == GoalStatusCancelled
}

// GoalType categorizes how a goal came to exist.
type GoalType string

const (
	GoalTypeStandard     GoalType = "standard"
	GoalTypeInstrumental GoalType = "instrumental"
	GoalTypeDerived      GoalType = "derived"
)

func (t GoalType) IsValid() bool {
	return t == GoalTypeStandard || t == GoalTypeInstrumental || t == GoalTypeDerived
}

// Goal is a triple-encoded objective keyed by its description. Two goals with
// the same description and owner are the same goal.
type Goal struct {
	ID              string     `json:"id"`
	Description     string     `json:"description"`
	Owner           string     `json:"owner"`
	Status          GoalStatus `json:"status"`
	Priority        int        `json:"priority"`
	GoalType        GoalType   `json:"goalType"`
	IsForeverGoal   bool       `json:"isForeverGoal"`
	DependsOn       []string   `json:"dependsOn,omitempty"`
	ParentGoal      string     `json:"parentGoal,omitempty"`
	Topics          []string   `json:"topics,omitempty"`
	Created         int64      `json:"created"`
	Updated         int64      `json:"updated"`
	Completed       *int64     `json:"completed,omitempty"`
	TargetDate      *int64     `json:"targetDate,omitempty"`
	BlockerReason   string     `json:"blockerReason,omitempty"`
	CompletionNotes string     `json:"completionNotes,omitempty"`
}

/// GoalSuggestion is the result of suggestion scoring: the winning goal, its
// score, and a human-readable explanation of why it won.
type GoalSuggestion struct {
	Goal      Goal    `json:"goal"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}
