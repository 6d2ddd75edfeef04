package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

var (
	// ErrNotFound marks an update against a goal description that does not
	// exist for the owner.
	ErrNotFound = errors.New("goal not found")

	// ErrCycle rejects a goal whose dependencies would close a loop, which
	// would deadlock the dependencies-met check into permanent blocking.
	ErrCycle = errors.New("dependency cycle detected")
)

// foreverBlockerReason explains a rejected completion of a forever goal.
const foreverBlockerReason = "Forever goals remain ongoing and cannot be completed"

// scrollLimit caps owner goal listings; personal goal sets stay far below it.
const scrollLimit = 2000

// Service is the goal subsystem: a dependency-aware state machine and
// suggestion scoring layered over goal-encoded triples. Status transitions
// are serialized per goal description so concurrent updates cannot both
// observe dependencies as met.
type Service struct {
	index    vectorindex.Index
	embedder embedding.Embedder
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(index vectorindex.Index, embedder embedding.Embedder, logger *slog.Logger) *Service {
	return &Service{
		index:    index,
		embedder: embedder,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (s *Service) goalLock(description, owner string) *sync.Mutex {
	key := models.EntityKey(description) + "\x1f" + models.EntityKey(owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Create stores a new goal. A goal with the identical description and owner
// already existing is not an error: the existing id is returned with
// created=false. Dependencies that would form a cycle fail with ErrCycle.
func (s *Service) Create(ctx context.Context, req *models.CreateGoalRequest) (string, bool, error) {
	if models.EntityKey(req.Description) == "" {
		return "", false, fmt.Errorf("description is required")
	}
	if models.EntityKey(req.Owner) == "" {
		return "", false, fmt.Errorf("owner is required")
	}

	lock := s.goalLock(req.Description, req.Owner)
	lock.Lock()
	defer lock.Unlock()

	id := GoalID(req.Description, req.Owner)
	existing, err := s.getByID(ctx, id)
	if err != nil {
		return "", false, err
	}
	if existing != nil {
		return id, false, nil
	}

	if len(req.DependsOn) > 0 {
		if err := s.checkCycle(ctx, req.Description, req.Owner, req.DependsOn); err != nil {
			return "", false, err
		}
	}

	now := time.Now().Unix()
	g := &models.Goal{
		ID:          id,
		Description: req.Description,
		Owner:       req.Owner,
		Priority:    clampPriority(req.Priority),
		GoalType:    req.GoalType,
		Status:      models.GoalStatusPending,
		DependsOn:   req.DependsOn,
		ParentGoal:  req.ParentGoal,
		TargetDate:  req.TargetDate,
		Topics:      appendMissing(req.Topics, models.TopicGoal),
		Created:     now,
		Updated:     now,
	}
	if !g.GoalType.IsValid() {
		g.GoalType = models.GoalTypeStandard
	}
	if req.IsForeverGoal {
		// Forever goals exist to spawn derived goals; they are permanently
		// ongoing.
		g.IsForeverGoal = true
		g.Status = models.GoalStatusOngoing
		if req.GoalType == "" {
			g.GoalType = models.GoalTypeInstrumental
		}
	}

	vec, err := s.embedder.Embed(ctx, g.Description)
	if err != nil {
		return "", false, fmt.Errorf("embed goal description: %w", err)
	}
	if err := s.index.Upsert(ctx, []vectorindex.Point{pointFromGoal(g, vec)}); err != nil {
		return "", false, fmt.Errorf("store goal: %w", err)
	}

	if err := s.storeRelations(ctx, g, now); err != nil {
		s.logger.Warn("goal relation triples failed", "goal", g.Description, "error", err)
	}

	s.logger.Info("goal created", "description", g.Description, "owner", g.Owner,
		"type", string(g.GoalType), "forever", g.IsForeverGoal)
	return id, true, nil
}

// storeRelations writes the auxiliary relationship triples: subgoal_of when a
// parent is set, derived_from additionally for derived goals.
func (s *Service) storeRelations(ctx context.Context, g *models.Goal, now int64) error {
	if g.ParentGoal == "" {
		return nil
	}

	predicates := []models.Predicate{models.PredicateSubgoalOf}
	if g.GoalType == models.GoalTypeDerived {
		predicates = append(predicates, models.PredicateDerivedFrom)
	}

	var points []vectorindex.Point
	for _, pred := range predicates {
		t := &models.Triple{
			ID:         models.TripleID(g.Description, pred, g.ParentGoal, GoalSource),
			Subject:    g.Description,
			Predicate:  pred,
			Object:     g.ParentGoal,
			Confidence: 1.0,
			Topics:     []string{models.TopicGoal},
			Source:     GoalSource,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		vec, err := s.embedder.Embed(ctx, t.EmbeddingText())
		if err != nil {
			return fmt.Errorf("embed relation: %w", err)
		}
		points = append(points, triples.PointFromTriple(t, vec, nil))
	}
	return s.index.Upsert(ctx, points)
}

// checkCycle walks the existing dependency edges depth-first from the new
// goal's dependencies; reaching the new description means the new edges would
// close a loop.
func (s *Service) checkCycle(ctx context.Context, description, owner string, dependsOn []string) error {
	all, err := s.listByOwner(ctx, owner)
	if err != nil {
		return err
	}
	edges := make(map[string][]string, len(all)+1)
	for _, g := range all {
		edges[models.EntityKey(g.Description)] = g.DependsOn
	}

	target := models.EntityKey(description)
	visited := make(map[string]bool)
	var stack []string
	stack = append(stack, dependsOn...)

	for len(stack) > 0 {
		cur := models.EntityKey(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		if cur == target {
			return fmt.Errorf("%q depends on itself through its dependency chain: %w", description, ErrCycle)
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		stack = append(stack, edges[cur]...)
	}
	return nil
}

// Update is the goal state machine. Forever goals reject completion and stay
// ongoing; a completion request with unmet dependencies is redirected to
// blocked with the unmet subset named in the blocker reason; the caller
// inspects the returned status to detect the redirect.
func (s *Service) Update(ctx context.Context, description, owner string, req *models.UpdateGoalRequest) (*models.Goal, error) {
	lock := s.goalLock(description, owner)
	lock.Lock()
	defer lock.Unlock()

	id := GoalID(description, owner)
	points, err := s.index.Retrieve(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("retrieve goal: %w", err)
	}
	if len(points) == 0 {
		return nil, ErrNotFound
	}
	g := goalFromPoint(points[0])
	if g == nil {
		return nil, ErrNotFound
	}

	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("invalid status %q", *req.Status)
		}
		s.applyStatus(ctx, g, *req.Status)
	}
	if req.Priority != nil {
		g.Priority = clampPriority(*req.Priority)
	}
	if req.BlockerReason != nil {
		g.BlockerReason = *req.BlockerReason
	}
	if req.CompletionNotes != nil {
		g.CompletionNotes = *req.CompletionNotes
	}
	if req.TargetDate != nil {
		g.TargetDate = req.TargetDate
	}
	g.Updated = time.Now().Unix()

	if err := s.index.Upsert(ctx, []vectorindex.Point{pointFromGoal(g, points[0].Vector)}); err != nil {
		return nil, fmt.Errorf("store goal update: %w", err)
	}

	s.logger.Info("goal updated", "description", g.Description, "owner", g.Owner,
		"status", string(g.Status))
	return g, nil
}

func (s *Service) applyStatus(ctx context.Context, g *models.Goal, requested models.GoalStatus) {
	if g.IsForeverGoal && requested == models.GoalStatusCompleted {
		g.Status = models.GoalStatusOngoing
		g.BlockerReason = foreverBlockerReason
		return
	}

	if requested == models.GoalStatusCompleted {
		unmet := s.unmetDependencies(ctx, g)
		if len(unmet) > 0 {
			g.Status = models.GoalStatusBlocked
			g.BlockerReason = "Blocked by pending dependencies: " + strings.Join(unmet, ", ")
			return
		}
		now := time.Now().Unix()
		g.Status = models.GoalStatusCompleted
		g.Completed = &now
		g.BlockerReason = ""
		return
	}

	g.Status = requested
}

// unmetDependencies returns the subset of depends_on not yet completed or
// cancelled. A dependency that does not exist counts as unmet.
func (s *Service) unmetDependencies(ctx context.Context, g *models.Goal) []string {
	var unmet []string
	for _, dep := range g.DependsOn {
		depGoal, err := s.getByID(ctx, GoalID(dep, g.Owner))
		if err != nil {
			s.logger.Warn("dependency lookup failed", "dependency", dep, "error", err)
			unmet = append(unmet, dep)
			continue
		}
		if depGoal == nil || !depGoal.Status.IsResolved() {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// Query filters the owner's goals by status and priority. active_only
// restricts to pending, in_progress, and ongoing.
func (s *Service) Query(ctx context.Context, req *models.QueryGoalsRequest) ([]models.Goal, error) {
	all, err := s.listByOwner(ctx, req.Owner)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []models.Goal
	for _, g := range all {
		if req.Status != "" && g.Status != req.Status {
			continue
		}
		if req.ActiveOnly && !g.Status.IsActive() {
			continue
		}
		if req.MinPriority > 0 && g.Priority < req.MinPriority {
			continue
		}
		if req.MaxPriority > 0 && g.Priority > req.MaxPriority {
			continue
		}
		out = append(out, g)
	}

	sortGoals(out)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []models.Goal{}
	}
	return out, nil
}

// SuggestNext scores the owner's actionable goals (active status with every
// dependency resolved) and returns the winner with its reasoning, or nil
// when nothing qualifies. Ties break toward the earliest created goal.
func (s *Service) SuggestNext(ctx context.Context, owner string) (*models.GoalSuggestion, error) {
	all, err := s.listByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	var best *models.GoalSuggestion
	for i := range all {
		g := all[i]
		if !g.Status.IsActive() {
			continue
		}
		if len(s.unmetDependencies(ctx, &g)) > 0 {
			continue
		}

		score, reasoning := scoreGoal(&g)
		if best == nil || score > best.Score ||
			(score == best.Score && g.Created < best.Goal.Created) {
			best = &models.GoalSuggestion{Goal: g, Score: score, Reasoning: reasoning}
		}
	}
	return best, nil
}

// scoreGoal computes the suggestion score: priority×10, +20 for derived
// goals, +15 for a target date within 7 days, else +5 within 30.
func scoreGoal(g *models.Goal) (float64, string) {
	score := float64(g.Priority * 10)
	factors := []string{fmt.Sprintf("priority %d", g.Priority)}

	if g.GoalType == models.GoalTypeDerived {
		score += 20
		factors = append(factors, "derived from an instrumental goal")
	}
	if g.TargetDate != nil {
		days := daysUntil(*g.TargetDate)
		if days <= 7 {
			score += 15
			factors = append(factors, fmt.Sprintf("target date within 7 days (%d)", days))
		} else if days <= 30 {
			score += 5
			factors = append(factors, fmt.Sprintf("target date within 30 days (%d)", days))
		}
	}

	reasoning := fmt.Sprintf("%q scores %.0f: %s", g.Description, score, strings.Join(factors, ", "))
	return score, reasoning
}

// ActiveForPrompt selects the goals surfaced to the agent's prompt: every
// forever goal regardless of priority, plus active goals at priority 4 or
// higher, sorted by priority descending and truncated. Pure read.
func (s *Service) ActiveForPrompt(ctx context.Context, owner string, limit int) ([]models.Goal, error) {
	all, err := s.listByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	var out []models.Goal
	for _, g := range all {
		if g.IsForeverGoal || (g.Status.IsActive() && g.Priority >= 4) {
			out = append(out, g)
		}
	}

	sortGoals(out)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []models.Goal{}
	}
	return out, nil
}

// Get returns a goal by description and owner, or nil when absent.
func (s *Service) Get(ctx context.Context, description, owner string) (*models.Goal, error) {
	return s.getByID(ctx, GoalID(description, owner))
}

func (s *Service) getByID(ctx context.Context, id string) (*models.Goal, error) {
	points, err := s.index.Retrieve(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("retrieve goal: %w", err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return goalFromPoint(points[0]), nil
}

func (s *Service) listByOwner(ctx context.Context, owner string) ([]models.Goal, error) {
	points, err := s.index.Scroll(ctx, &vectorindex.Filter{
		Predicate: string(models.PredicateIsGoalOf),
		Object:    models.EntityKey(owner),
	}, scrollLimit)
	if err != nil {
		if errors.Is(err, vectorindex.ErrUnavailable) {
			s.logger.Warn("index unavailable, returning no goals", "owner", owner)
			return nil, nil
		}
		return nil, fmt.Errorf("scroll goals: %w", err)
	}

	goals := make([]models.Goal, 0, len(points))
	for _, p := range points {
		if g := goalFromPoint(p); g != nil {
			goals = append(goals, *g)
		}
	}
	return goals, nil
}

// sortGoals orders by priority descending, then earliest created.
func sortGoals(goals []models.Goal) {
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].Priority != goals[j].Priority {
			return goals[i].Priority > goals[j].Priority
		}
		return goals[i].Created < goals[j].Created
	})
}

func clampPriority(p int) int {
	if p <= 0 {
		return 3
	}
	if p > 5 {
		return 5
	}
	return p
}

func appendMissing(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
