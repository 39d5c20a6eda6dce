// Command api starts the Veritas HTTP API server and its background
// crawl/summarize/index/precompute pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dreaming-Lion/Veritas/internal/ai"
	"github.com/Dreaming-Lion/Veritas/internal/config"
	"github.com/Dreaming-Lion/Veritas/internal/db"
	"github.com/Dreaming-Lion/Veritas/internal/handlers"
	"github.com/Dreaming-Lion/Veritas/internal/ingest"
	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/nli"
	"github.com/Dreaming-Lion/Veritas/internal/recommend"
	"github.com/Dreaming-Lion/Veritas/internal/scheduler"
	"github.com/Dreaming-Lion/Veritas/internal/storage"
	"github.com/Dreaming-Lion/Veritas/internal/summarize"
	"github.com/Dreaming-Lion/Veritas/internal/tfidf"
	"github.com/Dreaming-Lion/Veritas/internal/urlnorm"
	"github.com/Dreaming-Lion/Veritas/internal/vector"
)

func main() {
	// Structured logging.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := config.Load()

	// Root context cancelled on shutdown; background jobs inherit it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	pool, err := db.Connect(connectCtx, cfg.DB)
	connectCancel()
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Data stores.
	articleStore := models.NewArticleStore(pool)
	recoCacheStore := models.NewRecoCacheStore(pool)

	// External backends.
	qdrant := vector.NewQdrantClient(cfg.Qdrant.BaseURL, cfg.Qdrant.Collection)
	nliClient := nli.NewClient(cfg.NLI.BaseURL, cfg.NLI.MaxPairChars)

	// Abstractive summaries are optional; with no Ollama host the
	// summarizer runs extractive-only.
	var abstractive summarize.Abstractive
	if cfg.Ollama.Host != "" {
		abstractive = ai.NewClient(cfg.Ollama.Host, cfg.Ollama.InstructModel)
	}
	summarizer := summarize.New(articleStore, abstractive, cfg.Summary.MaxSentences, cfg.Summary.MaxChars)

	// TF-IDF vectorizer artifact, index, and opposing-lean search.
	loader := tfidf.NewLoader(cfg.Vectorizer.Path)
	indexer := vector.NewIndexer(articleStore, loader, qdrant)
	searcher := vector.NewSearcher(loader, qdrant)

	// Page archive (optional).
	archive, err := storage.NewClient(ctx, cfg.S3)
	if err != nil {
		slog.Warn("page archive not available", "err", err)
		archive = nil
	}

	// Ingestion and recommendation services.
	ingestor := ingest.New(articleStore, archive)
	norm := urlnorm.NewNormalizer()
	engine := recommend.NewEngine(articleStore, searcher, nliClient, summarizer, norm)
	recoSvc := recommend.NewService(engine, recoCacheStore, articleStore, norm,
		time.Duration(cfg.Recommend.CacheTTLHours)*time.Hour)

	recoParams := recommend.Params{
		HoursWindow:     cfg.Recommend.HoursWindow,
		TopK:            cfg.Recommend.TopK,
		StanceThreshold: cfg.Recommend.StanceThreshold,
	}

	// Background pipeline.
	sched := scheduler.New(cfg, scheduler.Deps{
		Ingest:     ingestor,
		Summarizer: summarizer,
		Indexer:    indexer,
		Reco:       recoSvc,
		NLI:        nliClient,
	})
	if err := sched.Start(ctx); err != nil {
		slog.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}

	// Handlers.
	recoHandler := &handlers.RecommendHandler{Svc: recoSvc}
	rssHandler := &handlers.RSSHandler{Articles: articleStore, Ingest: ingestor}
	summaryHandler := &handlers.SummaryHandler{Articles: articleStore}
	adminHandler := &handlers.AdminHandler{
		Summarizer:  summarizer,
		Indexer:     indexer,
		Reco:        recoSvc,
		RecoParams:  recoParams,
		Abstractive: abstractive != nil,
	}
	healthHandler := &handlers.HealthHandler{DB: pool, Qdrant: qdrant, Loader: loader}

	// Router.
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler.Health)
	r.Get("/api/health", healthHandler.Health)

	// Recommendations (with the legacy aliases the frontend uses).
	r.Get("/api/article/recommend", recoHandler.Recommend)
	r.Get("/api/recommend", recoHandler.Recommend)
	r.Get("/api/article/recommend-cached", recoHandler.RecommendCached)
	r.Get("/api/recommend-cached", recoHandler.RecommendCached)

	// Summaries.
	r.Get("/api/article/{id}/summary", summaryHandler.ByID)
	r.Get("/api/article/summary/by-link", summaryHandler.ByLink)
	r.Get("/api/article/summary", summaryHandler.List)

	// Crawl triggers and crawl views.
	r.Post("/api/rss/run", rssHandler.RunAll)
	r.Post("/api/rss/run/{source}", rssHandler.RunOne)
	r.Get("/api/rss/stats", rssHandler.Stats)
	r.Get("/api/rss/recent", rssHandler.Recent)

	// Maintenance.
	r.Post("/api/admin/summary/run", adminHandler.SummaryRun)
	r.Get("/api/admin/summary/health", adminHandler.SummaryHealth)
	r.Post("/api/admin/reindex", adminHandler.Reindex)
	r.Post("/api/admin/precompute", adminHandler.Precompute)

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	cancel()
	sched.Stop(30 * time.Second)

	slog.Info("server stopped")
}
