package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jbpayton/sophia-ams/internal/models"
)

// EpisodeStore handles episode and turn persistence on SQLite. Session
// isolation and the finalize state machine live in the episodes service; this
// layer is plain CRUD.
type EpisodeStore struct {
	db *DB
}

func NewEpisodeStore(db *DB) *EpisodeStore {
	return &EpisodeStore{db: db}
}

// Create starts a new open episode for a session.
func (s *EpisodeStore) Create(ctx context.Context, sessionID string) (*models.Episode, error) {
	ep := &models.Episode{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		CreatedAt: time.Now().Unix(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, session_id, created_at, finalized, turn_count)
		VALUES (?, ?, ?, 0, 0)
	`, ep.ID, ep.SessionID, ep.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert episode: %w", err)
	}
	return ep, nil
}

// Open returns the session's open episode, or nil when every episode is
// finalized. A session has at most one open episode.
func (s *EpisodeStore) Open(ctx context.Context, sessionID string) (*models.Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, created_at, finalized, COALESCE(summary, ''), turn_count
		FROM episodes
		WHERE session_id = ? AND finalized = 0
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)
	return scanEpisode(row)
}

// GetByID returns an episode by id, or nil if not found.
func (s *EpisodeStore) GetByID(ctx context.Context, id string) (*models.Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, created_at, finalized, COALESCE(summary, ''), turn_count
		FROM episodes WHERE id = ?
	`, id)
	return scanEpisode(row)
}

// AppendTurn inserts a turn with the next per-episode sequence and bumps the
// episode's turn count. Returns the stored turn.
func (s *EpisodeStore) AppendTurn(ctx context.Context, episodeID string, role models.TurnRole, content string) (*models.Turn, error) {
	var seq int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM episode_turns WHERE episode_id = ?`,
		episodeID).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	turn := &models.Turn{
		ID:        uuid.New().String(),
		EpisodeID: episodeID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().Unix(),
		Sequence:  seq,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episode_turns (id, episode_id, role, content, created_at, sequence, extracted)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`, turn.ID, turn.EpisodeID, string(turn.Role), turn.Content, turn.CreatedAt, turn.Sequence)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE episodes SET turn_count = turn_count + 1 WHERE id = ?`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("bump turn count: %w", err)
	}
	return turn, nil
}

// Finalize marks an episode finalized, storing the summary when non-empty.
func (s *EpisodeStore) Finalize(ctx context.Context, episodeID, summary string) error {
	var err error
	if summary != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE episodes SET finalized = 1, summary = ? WHERE id = ?`, summary, episodeID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE episodes SET finalized = 1 WHERE id = ?`, episodeID)
	}
	if err != nil {
		return fmt.Errorf("finalize episode: %w", err)
	}
	return nil
}

// Turns returns an episode's turns ordered by sequence.
func (s *EpisodeStore) Turns(ctx context.Context, episodeID string) ([]models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, episode_id, role, content, created_at, sequence, extracted
		FROM episode_turns
		WHERE episode_id = ?
		ORDER BY sequence ASC
	`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// ListBySession returns a session's episodes created at or after the given
// unix time (0 for all), newest first.
func (s *EpisodeStore) ListBySession(ctx context.Context, sessionID string, since int64, limit int) ([]models.Episode, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, created_at, finalized, COALESCE(summary, ''), turn_count
		FROM episodes
		WHERE session_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// SearchTurns returns the session's episodes with at least one turn whose
// content matches the query (case-insensitive substring), newest first. A
// linear LIKE scan is fine at the thousands-of-episodes scale this store
// targets.
func (s *EpisodeStore) SearchTurns(ctx context.Context, sessionID, query string, limit int) ([]models.Episode, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.id, e.session_id, e.created_at, e.finalized, COALESCE(e.summary, ''), e.turn_count
		FROM episodes e
		JOIN episode_turns t ON t.episode_id = e.id
		WHERE e.session_id = ? AND t.content LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY e.created_at DESC
		LIMIT ?
	`, sessionID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search turns: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// UnextractedTurns returns the session's turns not yet consolidated into
// triples, grouped by episode through ordering (episode, then sequence).
func (s *EpisodeStore) UnextractedTurns(ctx context.Context, sessionID string) ([]models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.episode_id, t.role, t.content, t.created_at, t.sequence, t.extracted
		FROM episode_turns t
		JOIN episodes e ON e.id = t.episode_id
		WHERE e.session_id = ? AND t.extracted = 0
		ORDER BY t.episode_id, t.sequence ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list unextracted turns: %w", err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// MarkExtracted flags turns as consolidated.
func (s *EpisodeStore) MarkExtracted(ctx context.Context, turnIDs []string) error {
	for _, id := range turnIDs {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE episode_turns SET extracted = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark extracted: %w", err)
		}
	}
	return nil
}

// SessionsWithUnextracted returns session ids holding unextracted turns, for
// the consolidation sweep.
func (s *EpisodeStore) SessionsWithUnextracted(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.session_id
		FROM episodes e
		JOIN episode_turns t ON t.episode_id = e.id
		WHERE t.extracted = 0
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions with unextracted turns: %w", err)
	}
	defer rows.Close()

	var sessions []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sessions = append(sessions, id)
	}
	return sessions, rows.Err()
}

func scanEpisode(row *sql.Row) (*models.Episode, error) {
	var ep models.Episode
	var finalized int
	err := row.Scan(&ep.ID, &ep.SessionID, &ep.CreatedAt, &finalized, &ep.Summary, &ep.TurnCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan episode: %w", err)
	}
	ep.Finalized = finalized == 1
	return &ep, nil
}

func scanEpisodes(rows *sql.Rows) ([]models.Episode, error) {
	var episodes []models.Episode
	for rows.Next() {
		var ep models.Episode
		var finalized int
		if err := rows.Scan(&ep.ID, &ep.SessionID, &ep.CreatedAt, &finalized, &ep.Summary, &ep.TurnCount); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		ep.Finalized = finalized == 1
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

func scanTurns(rows *sql.Rows) ([]models.Turn, error) {
	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var role string
		var extracted int
		if err := rows.Scan(&t.ID, &t.EpisodeID, &role, &t.Content, &t.CreatedAt, &t.Sequence, &extracted); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = models.TurnRole(role)
		t.Extracted = extracted == 1
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
