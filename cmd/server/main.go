package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbpayton/sophia-ams/internal/api"
	"github.com/jbpayton/sophia-ams/internal/assoc"
	"github.com/jbpayton/sophia-ams/internal/config"
	"github.com/jbpayton/sophia-ams/internal/consolidate"
	"github.com/jbpayton/sophia-ams/internal/embedding"
	"github.com/jbpayton/sophia-ams/internal/episodes"
	"github.com/jbpayton/sophia-ams/internal/extraction"
	"github.com/jbpayton/sophia-ams/internal/goals"
	"github.com/jbpayton/sophia-ams/internal/store"
	"github.com/jbpayton/sophia-ams/internal/triples"
	"github.com/jbpayton/sophia-ams/internal/vectorindex"
)

func main() {
	// Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %s\n", err)
		os.Exit(1)
	}

	// Logger
	logLevel := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// SQLite
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	episodeStore := store.NewEpisodeStore(db)
	embCacheStore := store.NewEmbeddingCacheStore(db)

	// Vector index
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStartup()

	index := vectorindex.NewQdrant(cfg.QdrantURL, cfg.Collection, cfg.EmbeddingDim)
	if err := index.Init(startupCtx); err != nil {
		logger.Warn("qdrant not available at startup, will retry on first use", "error", err)
	}

	// Embedder: Ollama when reachable, a deterministic local fallback
	// otherwise so the server still comes up.
	var inner embedding.Embedder
	ollama := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
	if err := ollama.HealthCheck(startupCtx); err != nil {
		logger.Warn("ollama not available, using local embedder", "error", err)
		inner = embedding.NewLocal(cfg.EmbeddingDim)
	} else {
		inner = ollama
	}
	embedder := embedding.NewCachedEmbedder(
		inner, embCacheStore, cfg.EmbeddingModel, cfg.EmbeddingDim,
		time.Duration(cfg.EmbedCacheTTLMin)*time.Minute, logger,
	)

	// Services
	tripleSvc := triples.NewService(index, embedder, triples.Options{
		HalfLifeDays:      cfg.HalfLifeDays,
		DefaultConfidence: cfg.DefaultConfidence,
	}, logger)
	retriever := assoc.NewRetriever(index, logger)
	goalSvc := goals.NewService(index, embedder, logger)

	summarizer := episodes.NewSummarizer(cfg.OllamaBaseURL, cfg.SummaryModel, cfg.SummaryEnabled, logger)
	episodeSvc := episodes.NewService(episodeStore, summarizer, cfg.EpisodeTurnLimit, logger)

	var extractor extraction.Extractor
	if cfg.ExtractionEnabled {
		extractor = extraction.NewOllamaExtractor(cfg.OllamaBaseURL, cfg.ExtractionModel, logger)
	}

	// Background consolidation
	consolidator := consolidate.New(episodeStore, extractor, tripleSvc, consolidate.Options{
		Debounce:      time.Duration(cfg.ConsolidateDebounce) * time.Second,
		Workers:       cfg.ConsolidateWorkers,
		SweepInterval: time.Duration(cfg.SweepIntervalMin) * time.Minute,
	}, logger)
	consolidator.Start()
	defer consolidator.Close()

	// Router
	router := api.NewRouter(
		db, index, embedder, tripleSvc, retriever, extractor,
		episodeSvc, goalSvc, consolidator.Notify, logger,
	)

	// Server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("memory server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
