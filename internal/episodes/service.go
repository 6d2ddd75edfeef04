package episodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/store"
)

// ErrNotFound marks a lookup for an episode that does not exist or belongs to
// another session. Episode turns are strictly session-isolated; only the
// triples they generate are globally shared.
var ErrNotFound = errors.New("episode not found")

// Service is the episodic store: appending conversation turns, the
// open → finalized lifecycle, and temporal queries. Appends are serialized
// per session; sessions never contend with each other.
type Service struct {
	store      *store.EpisodeStore
	summarizer *Summarizer
	turnLimit  int
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the episode service. summarizer may be nil, in which
// case auto-finalized episodes get no summary. turnLimit is the auto-finalize
// ceiling (default 50).
func NewService(st *store.EpisodeStore, summarizer *Summarizer, turnLimit int, logger *slog.Logger) *Service {
	if turnLimit <= 0 {
		turnLimit = 50
	}
	return &Service{
		store:      st,
		summarizer: summarizer,
		turnLimit:  turnLimit,
		logger:     logger,
		locks:      make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing appends for one session.
func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// AddTurn appends a turn to the session's open episode, creating one when
// none is open. Crossing the turn ceiling finalizes the episode; the next
// append starts a fresh one. Returns the episode that received the turn and
// whether this append finalized it.
func (s *Service) AddTurn(ctx context.Context, sessionID string, role models.TurnRole, content string) (string, bool, error) {
	if sessionID == "" {
		return "", false, fmt.Errorf("session id is required")
	}
	if !role.IsValid() {
		return "", false, fmt.Errorf("invalid role %q", role)
	}
	if content == "" {
		return "", false, fmt.Errorf("content is required")
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	ep, err := s.store.Open(ctx, sessionID)
	if err != nil {
		return "", false, fmt.Errorf("find open episode: %w", err)
	}
	if ep == nil {
		ep, err = s.store.Create(ctx, sessionID)
		if err != nil {
			return "", false, fmt.Errorf("create episode: %w", err)
		}
		s.logger.Info("episode opened", "episode", ep.ID, "session", sessionID)
	}

	if _, err := s.store.AppendTurn(ctx, ep.ID, role, content); err != nil {
		return "", false, fmt.Errorf("append turn: %w", err)
	}

	finalized := false
	if ep.TurnCount+1 >= s.turnLimit {
		s.finalize(ctx, ep.ID)
		finalized = true
	}

	return ep.ID, finalized, nil
}

// finalize commits the finalized flag, generating a summary when a summarizer
// is configured. Summary failures are logged and leave the summary empty; the
// finalization itself still commits.
func (s *Service) finalize(ctx context.Context, episodeID string) {
	summary := ""
	if s.summarizer != nil && s.summarizer.IsEnabled() {
		turns, err := s.store.Turns(ctx, episodeID)
		if err != nil {
			s.logger.Warn("load turns for summary failed", "episode", episodeID, "error", err)
		} else {
			summary, err = s.summarizer.Summarize(ctx, turns)
			if err != nil {
				s.logger.Warn("episode summary failed", "episode", episodeID, "error", err)
				summary = ""
			}
		}
	}

	if err := s.store.Finalize(ctx, episodeID, summary); err != nil {
		s.logger.Error("finalize episode failed", "episode", episodeID, "error", err)
		return
	}
	s.logger.Info("episode finalized", "episode", episodeID, "summarized", summary != "")
}

// Finalize explicitly closes an episode with a caller-provided summary. The
// episode must belong to the session.
func (s *Service) Finalize(ctx context.Context, sessionID, episodeID, summary string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	ep, err := s.store.GetByID(ctx, episodeID)
	if err != nil {
		return fmt.Errorf("get episode: %w", err)
	}
	if ep == nil || ep.SessionID != sessionID {
		return ErrNotFound
	}
	if ep.Finalized {
		return nil
	}
	return s.store.Finalize(ctx, episodeID, summary)
}

// Get returns an episode with its turns, scoped to the session: an episode
// belonging to another session reports ErrNotFound rather than leaking its
// existence.
func (s *Service) Get(ctx context.Context, sessionID, episodeID string) (*models.Episode, error) {
	ep, err := s.store.GetByID(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if ep == nil || ep.SessionID != sessionID {
		return nil, ErrNotFound
	}

	turns, err := s.store.Turns(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	ep.Turns = turns
	return ep, nil
}

// Search matches episode content by substring over the session's turns,
// newest episode first. Returns empty, not an error, when nothing matches.
func (s *Service) Search(ctx context.Context, sessionID, query string, limit int) ([]models.Episode, error) {
	if query == "" {
		return []models.Episode{}, nil
	}
	episodes, err := s.store.SearchTurns(ctx, sessionID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search episodes: %w", err)
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	return episodes, nil
}

// Recent returns the session's episodes from the last N hours, newest first.
func (s *Service) Recent(ctx context.Context, sessionID string, hours, limit int) ([]models.Episode, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	episodes, err := s.store.ListBySession(ctx, sessionID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent episodes: %w", err)
	}
	if episodes == nil {
		episodes = []models.Episode{}
	}
	return episodes, nil
}

// Timeline groups the session's episodes from the last N days by day, newest
// day first, for activity-overview display.
func (s *Service) Timeline(ctx context.Context, sessionID string, days int) ([]models.TimelineDay, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days).Unix()
	episodes, err := s.store.ListBySession(ctx, sessionID, since, days*200)
	if err != nil {
		return nil, fmt.Errorf("list episodes for timeline: %w", err)
	}

	byDay := make(map[string][]models.Episode)
	for _, ep := range episodes {
		day := time.Unix(ep.CreatedAt, 0).Format("2006-01-02")
		byDay[day] = append(byDay[day], ep)
	}

	dates := make([]string, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	timeline := make([]models.TimelineDay, 0, len(dates))
	for _, d := range dates {
		timeline = append(timeline, models.TimelineDay{Date: d, Episodes: byDay[d]})
	}
	return timeline, nil
}
