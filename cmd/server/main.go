// Package main provides the API server entry point for the feed engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dailylens/internal/api"
	"github.com/dailylens/internal/config"
	"github.com/dailylens/internal/ingest"
	"github.com/dailylens/internal/logging"
	"github.com/dailylens/internal/metrics"
	"github.com/dailylens/internal/pipeline"
	"github.com/dailylens/internal/ranking"
	"github.com/dailylens/internal/ratelimit"
	"github.com/dailylens/internal/service"
	"github.com/dailylens/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// State store backend
	var store storage.StateStore
	var memStore *storage.MemoryStore
	var pgStore *storage.PostgresStore
	switch cfg.Database.Backend {
	case "postgres":
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()

		databaseURL := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.Database,
		)
		if err := storage.RunMigrations(databaseURL); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}

		pgStore = storage.NewPostgresStore(postgres)
		store = pgStore
		logger.Info("Postgres state store initialized")
	default:
		memStore = storage.NewMemoryStore()
		store = memStore
		logger.Info("In-memory state store initialized")
	}

	// Feed page cache. Redis being down degrades to uncached serving
	// rather than blocking startup.
	var pages *storage.FeedCache
	if redisCache, err := storage.NewRedisCache(&cfg.Database.Redis); err != nil {
		logger.WithError(err).Warn("Redis unavailable, feed pages will not be cached")
	} else {
		defer redisCache.Close()
		pages = storage.NewFeedCache(redisCache, cfg.Cache.PageTTL)
		logger.Info("Redis feed page cache initialized")
	}
	bundles := storage.NewBundleCache(cfg.Cache.BundleTTL)

	// Optional interaction archive for analytics
	var archive *storage.InteractionArchive
	if cfg.Database.ArchiveEnabled {
		clickhouseDB, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, interaction archive disabled")
		} else {
			defer clickhouseDB.Close()
			archive = storage.NewInteractionArchive(clickhouseDB)
			if err := archive.EnsureSchema(context.Background()); err != nil {
				logger.WithError(err).Warn("ClickHouse schema setup failed, interaction archive disabled")
				archive = nil
			} else {
				logger.Info("ClickHouse interaction archive initialized")
			}
		}
	}

	// Ranking models
	m := metrics.New()
	exploration := ranking.NewExplorationModel(&cfg.Ranking)
	ranker := ranking.NewRanker(&cfg.Ranking, ranking.NewAffinityModel(&cfg.Ranking), exploration)

	// Event pipeline
	var sink pipeline.EventSink
	var source pipeline.EventSource
	if cfg.Pipeline.Backend == "broker" {
		broker, err := pipeline.NewBrokerSink(cfg.Pipeline.Topic, cfg.Pipeline.QueueSize, m, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to start broker pipeline")
		}
		sink, source = broker, broker
		logger.WithField("topic", cfg.Pipeline.Topic).Info("Broker event pipeline initialized")
	} else {
		queue := pipeline.NewLocalQueue(cfg.Pipeline.QueueSize, m)
		sink, source = queue, queue
		logger.WithField("queue_size", cfg.Pipeline.QueueSize).Info("Local event pipeline initialized")
	}

	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	consumer := pipeline.NewConsumer(source, exploration, m, logger)
	consumer.Start(pipelineCtx)

	// Content source and demo data
	contentSource := ingest.NewGoogleNewsSource(&cfg.Ingest, logger)

	existing, err := store.ListUsers(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("Failed to inspect state store")
	}
	if len(existing) == 0 {
		logger.Info("Seeding demo data...")
		seedCtx, cancelSeed := context.WithTimeout(context.Background(), 2*time.Minute)
		var seedArchive ingest.EventArchiver
		if archive != nil {
			seedArchive = archive
		}
		if pgStore != nil {
			err = ingest.SeedDemoData(seedCtx, pgStore, sink, seedArchive, contentSource, cfg.Ingest.TargetArticleCount, logger)
		} else {
			err = ingest.SeedDemoData(seedCtx, memStore, sink, seedArchive, contentSource, cfg.Ingest.TargetArticleCount, logger)
		}
		cancelSeed()
		if err != nil {
			logger.WithError(err).Fatal("Failed to seed demo data")
		}
	}

	// Services
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Window, map[ratelimit.EndpointClass]int{
		ratelimit.ClassFeed:    cfg.RateLimit.FeedPerWindow,
		ratelimit.ClassExplore: cfg.RateLimit.ExplorePerWindow,
	})
	feedService := service.NewFeedService(store, pages, bundles, ranker, limiter, m, &cfg.Ranking, logger)
	exploreService := service.NewExploreService(store, limiter, contentSource, m, &cfg.Ranking, logger)
	interactionService := service.NewInteractionService(store, sink, archive, logger)
	userService := service.NewUserService(store, logger)
	catalogService := service.NewCatalogService(store, contentSource, cfg.Ingest.TargetArticleCount, logger)
	var actionCounter service.ActionCounter
	if archive != nil {
		actionCounter = archive
	}
	monitoringService := service.NewMonitoringService(store, m, pages, bundles, actionCounter, cfg, logger)

	server := api.NewServer(
		&api.ServerConfig{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		feedService,
		exploreService,
		interactionService,
		userService,
		catalogService,
		monitoringService,
		m,
		logger,
	)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()
	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	if err := sink.Close(); err != nil {
		logger.WithError(err).Error("Pipeline close failed")
	}
	stopPipeline()
	consumer.Wait()

	logger.Info("Shutdown complete")
}
