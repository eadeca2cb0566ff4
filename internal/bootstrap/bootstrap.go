// Package bootstrap wires configuration, storage, synthesis and the HTTP
// transport into a running server process.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"bookaudio-server-go/internal/domain/audio"
	"bookaudio-server-go/internal/domain/audiocache"
	"bookaudio-server-go/internal/domain/batch"
	"bookaudio-server-go/internal/domain/cost"
	"bookaudio-server-go/internal/domain/events"
	"bookaudio-server-go/internal/domain/ledger"
	"bookaudio-server-go/internal/domain/maintenance"
	"bookaudio-server-go/internal/domain/quota"
	"bookaudio-server-go/internal/domain/tts"
	"bookaudio-server-go/internal/domain/tts/adapters/doubao"
	"bookaudio-server-go/internal/domain/tts/adapters/edge"
	"bookaudio-server-go/internal/domain/tts/adapters/openai"
	"bookaudio-server-go/internal/platform/blob"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/logging"
	"bookaudio-server-go/internal/platform/storage"
	httptransport "bookaudio-server-go/internal/transport/http"
	"bookaudio-server-go/internal/transport/http/audioapi"
)

// Run loads configuration, builds the service graph and serves HTTP until the
// context is cancelled or an interrupt arrives.
func Run(ctx context.Context, configPath string) error {
	result, err := config.NewLoader(configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := result.Config

	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	log := logger.Slog()
	if result.Path != "" {
		log.Info("configuration loaded", "path", result.Path)
	} else {
		log.Info("configuration defaults in effect")
	}

	db, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	books := storage.NewBookRepository(db)
	chapters := storage.NewChapterRepository(db)
	artifacts := storage.NewArtifactRepository(db)

	blobs, err := blob.NewStore(cfg.Blob.Dir, cfg.Blob.TempDir)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	led := buildLedger(cfg)
	defer led.Close(context.Background())

	estimator := cost.NewEstimator()
	guard := cost.NewGuard(cfg.Cost, led)
	limiter := quota.NewLimiter(cfg.Limits, led)

	orchestrator := buildOrchestrator(cfg, logger)

	meta := audiocache.NewMetadataCache(cfg.Cache.MetadataTTL.Std())
	defer meta.Close()
	audioEntries := audiocache.NewAudioCache(cfg.Cache.AudioMaxEntries, cfg.Cache.AudioTTL.Std())

	bus := events.NewBus()
	subscribeEventLog(bus, log)

	audioService := audio.NewService(audio.ServiceDeps{
		Config:    cfg,
		Logger:    log,
		Books:     books,
		Chapters:  chapters,
		Artifacts: artifacts,
		Blobs:     blobs,
		Synth:     orchestrator,
		Estimator: estimator,
		Guard:     guard,
		Meta:      meta,
		Audio:     audioEntries,
		Bus:       bus,
	})

	scheduler := batch.NewScheduler(cfg.Batch, log, audioService, books, chapters, bus)

	sweeper := maintenance.NewSweeper(cfg.Maintenance, log, artifacts, blobs, audioEntries, meta, bus)
	sweeper.Start()
	defer sweeper.Stop()

	router, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	api := audioapi.NewService(cfg, logger, audioService, scheduler, limiter, orchestrator, books)
	api.RegisterRoutes(router)

	router.Engine.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			httptransport.RespondError(c, http.StatusNotFound, "route not found", nil)
			return
		}
		c.Status(http.StatusNotFound)
	})

	return serve(ctx, cfg, log, router.Engine, scheduler)
}

// subscribeEventLog mirrors pipeline events into the structured log.
func subscribeEventLog(bus *events.Bus, log *slog.Logger) {
	for _, topic := range []string{events.TopicJobStarted, events.TopicJobCompleted, events.TopicJobFailed} {
		_ = bus.SubscribeJob(topic, func(ev events.JobEvent) {
			log.Info("batch job event",
				"topic", topic,
				"job", ev.JobID,
				"book", ev.BookID,
				"status", ev.Status,
				"succeeded", ev.Succeeded,
				"failed", ev.Failed,
				"cost_usd", ev.CostUSD)
		})
	}
	_ = bus.SubscribeChapter(func(ev events.ChapterEvent) {
		if ev.Err != "" {
			log.Warn("chapter synthesis failed", "book", ev.BookID, "chapter", ev.ChapterID, "error", ev.Err)
			return
		}
		log.Info("chapter synthesized", "book", ev.BookID, "chapter", ev.ChapterID,
			"artifact", ev.ArtifactID, "cost_usd", ev.CostUSD)
	})
	_ = bus.SubscribeSweep(func(ev events.SweepEvent) {
		log.Info("artifact sweep finished", "removed", ev.Removed, "failed", ev.Failed)
	})
}

// buildLedger selects the redis-backed ledger when configured and falls back
// to the in-process one otherwise.
func buildLedger(cfg *config.Config) ledger.Ledger {
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return ledger.NewRedis(client, cfg.Redis.Prefix)
	}
	return ledger.NewMemory()
}

// buildOrchestrator registers every provider with usable credentials. Edge
// needs none and is always available.
func buildOrchestrator(cfg *config.Config, logger *logging.Logger) *tts.Orchestrator {
	log := logger.Slog()
	orch := tts.NewOrchestrator(log)

	orch.Register(edge.New(cfg.TTS["edge"]))
	log.Info("tts provider registered", "provider", tts.ProviderEdge)

	if openaiCfg := cfg.TTS["openai"]; openaiCfg.APIKey != "" {
		orch.Register(openai.New(openaiCfg))
		log.Info("tts provider registered", "provider", tts.ProviderOpenAI)
	} else {
		log.Warn("tts provider skipped, no api key", "provider", tts.ProviderOpenAI)
	}

	if doubaoCfg := cfg.TTS["doubao"]; doubaoCfg.Token != "" {
		orch.Register(doubao.New(doubaoCfg))
		log.Info("tts provider registered", "provider", tts.ProviderDoubao)
	} else {
		log.Warn("tts provider skipped, no token", "provider", tts.ProviderDoubao)
	}

	return orch
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, handler http.Handler, scheduler *batch.Scheduler) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.IP, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()

	// Let in-flight batch jobs settle before the process exits.
	done := make(chan struct{})
	go func() {
		scheduler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		log.Error("batch jobs did not finish before shutdown deadline")
	}

	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}
