package goals

import (
	"time"

	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

// Goals persist as triples: the primary point is (description, "is_goal_of",
// owner) tagged "goal" in topics, with the goal's fields carried in a "goal"
// payload sub-object. There is no separate goal table.

// GoalSource is the provenance recorded on every goal-system triple.
const GoalSource = "goal_system"

// GoalID derives the deterministic point id of a goal's primary triple. Two
// goals with the same description and owner are the same goal.
func GoalID(description, owner string) string {
	return models.TripleID(description, models.PredicateIsGoalOf, owner, GoalSource)
}

// pointFromGoal renders the goal's primary triple with its fields attached.
func pointFromGoal(g *models.Goal, vector []float32) vectorindex.Point {
	goalObj := map[string]any{
		"status":          string(g.Status),
		"priority":        g.Priority,
		"goal_type":       string(g.GoalType),
		"is_forever_goal": g.IsForeverGoal,
	}
	if len(g.DependsOn) > 0 {
		goalObj["depends_on"] = g.DependsOn
	}
	if g.ParentGoal != "" {
		goalObj["parent_goal"] = g.ParentGoal
	}
	if g.Completed != nil {
		goalObj["completed"] = *g.Completed
	}
	if g.TargetDate != nil {
		goalObj["target_date"] = *g.TargetDate
	}
	if g.BlockerReason != "" {
		goalObj["blocker_reason"] = g.BlockerReason
	}
	if g.CompletionNotes != "" {
		goalObj["completion_notes"] = g.CompletionNotes
	}

	t := &models.Triple{
		ID:         g.ID,
		Subject:    g.Description,
		Predicate:  models.PredicateIsGoalOf,
		Object:     g.Owner,
		Confidence: 1.0,
		Topics:     g.Topics,
		Source:     GoalSource,
		CreatedAt:  g.Created,
		UpdatedAt:  g.Updated,
	}
	return triples.PointFromTriple(t, vector, map[string]any{"goal": goalObj})
}

// goalFromPoint reconstructs a goal from its primary triple, or nil when the
// point carries no goal payload.
func goalFromPoint(p vectorindex.Point) *models.Goal {
	obj := vectorindex.PayloadMap(p.Payload, "goal")
	if obj == nil {
		return nil
	}

	g := &models.Goal{
		ID:              p.ID,
		Description:     vectorindex.PayloadString(p.Payload, "subject"),
		Owner:           vectorindex.PayloadString(p.Payload, "object"),
		Status:          models.GoalStatus(vectorindex.PayloadString(obj, "status")),
		Priority:        vectorindex.PayloadInt(obj, "priority"),
		GoalType:        models.GoalType(vectorindex.PayloadString(obj, "goal_type")),
		IsForeverGoal:   vectorindex.PayloadBool(obj, "is_forever_goal"),
		DependsOn:       vectorindex.PayloadStrings(obj, "depends_on"),
		ParentGoal:      vectorindex.PayloadString(obj, "parent_goal"),
		Topics:          vectorindex.PayloadStrings(p.Payload, "topics"),
		Created:         vectorindex.PayloadInt64(p.Payload, "created_at"),
		Updated:         vectorindex.PayloadInt64(p.Payload, "updated_at"),
		BlockerReason:   vectorindex.PayloadString(obj, "blocker_reason"),
		CompletionNotes: vectorindex.PayloadString(obj, "completion_notes"),
	}
	if v := vectorindex.PayloadInt64(obj, "completed"); v != 0 {
		g.Completed = &v
	}
	if v := vectorindex.PayloadInt64(obj, "target_date"); v != 0 {
		g.TargetDate = &v
	}
	return g
}

// daysUntil returns the whole days from now until ts, negative when past.
func daysUntil(ts int64) int {
	return int(time.Until(time.Unix(ts, 0)).Hours() / 24)
}
