// Package consolidate turns buffered conversation turns into extracted
// triples in the background: a debounced, idle-triggered task queue with a
// worker pool. Consolidation never blocks the request path and its failures
// never surface to callers; turns simply stay pending for the next cycle.
package consolidate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jbpayton/sophia-ams/internal/episodes"
	"github.com/jbpayton/sophia-ams/internal/extraction"
	"github.com/jbpayton/sophia-ams/internal/models"
	"github.com/jbpayton/sophia-ams/internal/observability"
	"github.com/jbpayton/sophia-ams/internal/store"
	"github.com/jbpayton/sophia-ams/internal/triples"
)

// conversationSource is the provenance recorded on consolidated triples.
const conversationSource = "conversation"

// Options tunes the consolidation schedule.
type Options struct {
	// Debounce is how long a session must stay quiet before its pending
	// turns are consolidated.
	Debounce time.Duration
	// Workers is the number of concurrent consolidation workers.
	Workers int
	// SweepInterval re-enqueues sessions whose turns were left pending by a
	// failed cycle.
	SweepInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 30 * time.Second
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 5 * time.Minute
	}
	return o
}

// Consolidator schedules and runs extraction over sessions' unextracted
// turns.
type Consolidator struct {
	episodeStore *store.EpisodeStore
	extractor    extraction.Extractor
	triples      *triples.Service
	opts         Options
	logger       *slog.Logger

	mu  sync.Mutex
	due map[string]time.Time

	work   chan string
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a consolidator. extractor may be nil, in which case every run
// is a no-op skip and the engine runs without consolidation output.
func New(episodeStore *store.EpisodeStore, extractor extraction.Extractor, triplesSvc *triples.Service, opts Options, logger *slog.Logger) *Consolidator {
	return &Consolidator{
		episodeStore: episodeStore,
		extractor:    extractor,
		triples:      triplesSvc,
		opts:         opts.withDefaults(),
		logger:       logger,
		due:          make(map[string]time.Time),
		work:         make(chan string, 64),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the scheduler, sweep ticker, and worker pool.
func (c *Consolidator) Start() {
	c.wg.Add(1)
	go c.schedule()

	c.wg.Add(1)
	go c.sweep()

	for i := 0; i < c.opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	c.logger.Info("consolidator started",
		"workers", c.opts.Workers, "debounce", c.opts.Debounce.String())
}

// Close stops the scheduler and waits for in-flight work to drain.
func (c *Consolidator) Close() {
	close(c.stopCh)
	c.wg.Wait()
}

// Notify stamps the session's due time. Called after every turn append;
// non-blocking, and repeated calls within the debounce window coalesce into
// one consolidation pass.
func (c *Consolidator) Notify(sessionID string) {
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	if _, pending := c.due[sessionID]; !pending {
		observability.ConsolidationPending.Inc()
	}
	c.due[sessionID] = time.Now().Add(c.opts.Debounce)
	c.mu.Unlock()
}

// schedule moves due sessions onto the work channel.
func (c *Consolidator) schedule() {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case now := <-ticker.C:
			for _, sessionID := range c.takeDue(now) {
				select {
				case c.work <- sessionID:
				case <-c.stopCh:
					return
				}
			}
		}
	}
}

func (c *Consolidator) takeDue(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ready []string
	for sessionID, dueAt := range c.due {
		if !dueAt.After(now) {
			ready = append(ready, sessionID)
			delete(c.due, sessionID)
			observability.ConsolidationPending.Dec()
		}
	}
	return ready
}

// sweep re-enqueues sessions with leftover unextracted turns so a failed
// cycle is retried on the next idle window.
func (c *Consolidator) sweep() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			sessions, err := c.episodeStore.SessionsWithUnextracted(context.Background())
			if err != nil {
				c.logger.Warn("consolidation sweep failed", "error", err)
				continue
			}
			for _, sessionID := range sessions {
				c.Notify(sessionID)
			}
		}
	}
}

func (c *Consolidator) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case sessionID := <-c.work:
			c.consolidate(sessionID)
		}
	}
}

// consolidate extracts triples from the session's pending turns, one
// extraction call per episode so every stored fact carries its originating
// episode id. Turns are marked extracted only after their episode's ingest
// succeeds.
func (c *Consolidator) consolidate(sessionID string) {
	if c.extractor == nil {
		c.logger.Debug("extractor disabled, skipping consolidation", "session", sessionID)
		return
	}

	ctx := context.Background()
	turns, err := c.episodeStore.UnextractedTurns(ctx, sessionID)
	if err != nil {
		c.logger.Warn("consolidation load failed", "session", sessionID, "error", err)
		observability.ConsolidationRuns.WithLabelValues("error").Inc()
		return
	}
	if len(turns) == 0 {
		observability.ConsolidationRuns.WithLabelValues("empty").Inc()
		return
	}

	byEpisode := make(map[string][]models.Turn)
	var order []string
	for _, t := range turns {
		if _, ok := byEpisode[t.EpisodeID]; !ok {
			order = append(order, t.EpisodeID)
		}
		byEpisode[t.EpisodeID] = append(byEpisode[t.EpisodeID], t)
	}

	failed := false
	for _, episodeID := range order {
		if err := c.consolidateEpisode(ctx, episodeID, byEpisode[episodeID]); err != nil {
			c.logger.Warn("episode consolidation failed, leaving turns for next cycle",
				"session", sessionID, "episode", episodeID, "error", err)
			failed = true
		}
	}

	if failed {
		observability.ConsolidationRuns.WithLabelValues("error").Inc()
		return
	}
	observability.ConsolidationRuns.WithLabelValues("ok").Inc()
}

func (c *Consolidator) consolidateEpisode(ctx context.Context, episodeID string, turns []models.Turn) error {
	candidates, err := c.extractor.Extract(ctx, episodes.RenderTranscript(turns))
	if err != nil {
		return err
	}

	for i := range candidates {
		candidates[i].EpisodeID = episodeID
		candidates[i].Source = conversationSource
	}
	stored, skipped := c.triples.Ingest(ctx, candidates)

	turnIDs := make([]string, len(turns))
	for i, t := range turns {
		turnIDs[i] = t.ID
	}
	if err := c.episodeStore.MarkExtracted(ctx, turnIDs); err != nil {
		return err
	}

	c.logger.Info("episode consolidated",
		"episode", episodeID, "turns", len(turns), "stored", stored, "skipped", skipped)
	return nil
}
