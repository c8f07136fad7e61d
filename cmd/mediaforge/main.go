package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/JustinTDCT/MediaForge/internal/breaker"
	"github.com/JustinTDCT/MediaForge/internal/cache"
	"github.com/JustinTDCT/MediaForge/internal/config"
	"github.com/JustinTDCT/MediaForge/internal/db"
	"github.com/JustinTDCT/MediaForge/internal/enrich"
	"github.com/JustinTDCT/MediaForge/internal/events"
	"github.com/JustinTDCT/MediaForge/internal/fetch"
	"github.com/JustinTDCT/MediaForge/internal/ffprobe"
	"github.com/JustinTDCT/MediaForge/internal/gc"
	"github.com/JustinTDCT/MediaForge/internal/jobs"
	"github.com/JustinTDCT/MediaForge/internal/models"
	"github.com/JustinTDCT/MediaForge/internal/notify"
	"github.com/JustinTDCT/MediaForge/internal/providers"
	"github.com/JustinTDCT/MediaForge/internal/publish"
	"github.com/JustinTDCT/MediaForge/internal/ratelimit"
	"github.com/JustinTDCT/MediaForge/internal/repository"
	"github.com/JustinTDCT/MediaForge/internal/scanner"
	"github.com/JustinTDCT/MediaForge/internal/scheduler"
	"github.com/JustinTDCT/MediaForge/internal/tasks"
	"github.com/JustinTDCT/MediaForge/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("MediaForge %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Connect(&cfg.Database)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	cfg.MergeFromDB(database.DB)

	// Repositories
	libRepo := repository.NewLibraryRepository(database.DB)
	movieRepo := repository.NewMovieRepository(database.DB)
	assetRepo := repository.NewAssetRepository(database.DB)
	cacheRepo := repository.NewCacheFileRepository(database.DB)
	libFileRepo := repository.NewLibraryFileRepository(database.DB)
	activityRepo := repository.NewActivityRepository(database.DB)
	providerCfgRepo := repository.NewProviderConfigRepository(database.DB)
	schedCfgRepo := repository.NewSchedulerConfigRepository(database.DB)
	strategyRepo := repository.NewSelectionStrategyRepository(database.DB)

	// Provider registry with guards
	registry := providers.NewRegistry(ratelimit.New(), breaker.New(), cfg.WebhookReservedTokens)
	registry.RegisterFactory("tmdb", providers.NewTMDBAdapter)
	registry.RegisterFactory("fanarttv", providers.NewFanartTVAdapter)
	registry.RegisterFactory("omdb", providers.NewOMDBAdapter)
	providerConfigs, err := providerCfgRepo.List()
	if err != nil {
		log.Fatalf("load provider configs: %v", err)
	}
	for _, pc := range providerConfigs {
		registry.SetConfig(pc)
	}

	// Pipeline stages
	store := cache.NewStore(cfg.DataDir)
	fetcher := fetch.NewOrchestrator(registry)
	enricher := enrich.NewOrchestrator(movieRepo, assetRepo, cacheRepo, strategyRepo,
		fetcher, registry, store, nil)
	if cfg.TrailerAnalysis {
		enricher.EnableTrailerAnalysis(ffprobe.New(cfg.FFprobePath))
	}
	publisher := publish.NewPublisher(movieRepo, assetRepo, cacheRepo, libFileRepo, store)
	notifier := notify.NewPlayerNotifier(cfg.PlayerWebhookURL, cfg.PlayerWebhookKey)
	hub := events.NewHub()

	// Job queue and workers
	queue := jobs.NewQueue(database.DB)
	pool := jobs.NewPool(queue, cfg.WorkerCount)
	handlers := tasks.NewHandlers(queue, libRepo, movieRepo, activityRepo,
		scanner.NewScanner(movieRepo), enricher, publisher, notifier, hub)
	handlers.Register(pool)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := pool.Run(ctx); err != nil && err != context.Canceled {
			log.Fatalf("worker pool: %v", err)
		}
	}()

	// Probe enabled providers once at startup so the config surface shows
	// current connection health.
	go func() {
		testCtx, testCancel := context.WithTimeout(ctx, 30*time.Second)
		defer testCancel()
		for _, name := range registry.Enabled() {
			adapter, err := registry.Get(name, providers.PriorityUser)
			if err != nil {
				continue
			}
			status := models.TestSuccess
			if err := adapter.TestConnection(testCtx); err != nil {
				status = models.TestError
				log.Printf("provider %s connection test failed: %v", name, err)
			}
			if err := providerCfgRepo.RecordTest(name, status); err != nil {
				log.Printf("record provider test %s: %v", name, err)
			}
		}
	}()

	sched := scheduler.New(libRepo, schedCfgRepo, queue)
	sched.Start()

	collector := gc.New(movieRepo, assetRepo, cacheRepo, activityRepo, store, cfg.DeletedRetentionDays)
	if err := collector.Start(); err != nil {
		log.Fatalf("gc: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload jobs.WebhookReceivedPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := queue.Add(models.JobWebhookReceived, models.PriorityWebhook, payload, nil); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	sched.Stop()
	collector.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
