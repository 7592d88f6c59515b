package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendWatch/backend/go/internal/collector"
	"TrendWatch/backend/go/internal/config"
	"TrendWatch/backend/go/internal/crawler"
	"TrendWatch/backend/go/internal/database"
	"TrendWatch/backend/go/internal/database/kafka"
	"TrendWatch/backend/go/internal/database/redis"
	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/scheduler"
	"TrendWatch/backend/go/internal/trend_service/cache"
	"TrendWatch/backend/go/internal/trend_service/consumer"
	"TrendWatch/backend/go/internal/trend_service/publisher"
	"TrendWatch/backend/go/internal/trend_service/registry"
	"TrendWatch/backend/go/internal/trend_service/store"
	"TrendWatch/backend/go/internal/trend_service/tracker"
	httpkit "TrendWatch/backend/go/pkg/http"
	"TrendWatch/backend/go/pkg/logger"
)

func configPath() string {
	if p := os.Getenv("TRENDWATCH_CONFIG"); p != "" {
		return p
	}
	return "backend/go/internal/config/config.yaml"
}

func main() {
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		logger.New("TrendCollector", "main").WithError(models.NewErrorInfo(err, "config_error")).Fatal("Failed to load configuration")
	}
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("TrendCollector", "main")

	db, err := database.OpenRelational(&cfg.Databases)
	if err != nil {
		serviceLogger.WithError(models.NewErrorInfo(err, "database_error")).Fatal("Failed to open database")
	}
	defer func() {
		if err := database.CloseRelational(&cfg.Databases, db); err != nil {
			serviceLogger.WithError(models.NewErrorInfo(err, "database_error")).Error("Error closing database")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trendStore := store.NewStore(db)
	if err := trendStore.AutoMigrate(ctx); err != nil {
		serviceLogger.WithError(models.NewErrorInfo(err, "database_error")).Fatal("Failed to migrate schema")
	}

	var (
		notifiers    []tracker.Notifier
		currentCache *cache.CurrentCache
	)
	if cfg.Cache.Enabled {
		rdb, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			// The store stays authoritative; the API falls back to it.
			serviceLogger.WithError(models.NewErrorInfo(err, "cache_error")).Warn("Redis unavailable, current ranking cache disabled")
		} else {
			defer redis.Close()
			currentCache = cache.NewCurrentCache(rdb, cfg.Cache.Key, cfg.CacheTTL())
			notifiers = append(notifiers, currentCache)
		}
	}

	var enrichment *consumer.EnrichmentConsumer
	if cfg.Databases.Kafka.Enabled {
		kcfg := &cfg.Databases.Kafka
		created, err := kafka.EnsureTopics(ctx, kcfg)
		if err != nil {
			serviceLogger.WithError(models.NewErrorInfo(err, "kafka_error")).Warn("Could not ensure Kafka topics")
		} else if len(created) > 0 {
			serviceLogger.WithPayload(map[string]interface{}{"topics": created}).Info("Created Kafka topics")
		}

		writer := kafka.NewWriter(kcfg, kcfg.TickTopic)
		defer writer.Close()
		notifiers = append(notifiers, publisher.NewTickPublisher(writer, 5*time.Second))

		reader := kafka.NewReader(kcfg, kcfg.EnrichmentTopic)
		defer reader.Close()
		enrichment = consumer.NewEnrichmentConsumer(reader, trendStore, serviceLogger)
	}

	trendTracker := tracker.New(trendStore, registry.New(), serviceLogger, notifiers...)
	if cfg.Tracker.CloseDanglingOnStart {
		closed, err := trendTracker.Recover(ctx, time.Now())
		if err != nil {
			serviceLogger.WithError(models.NewErrorInfo(err, "database_error")).Fatal("Failed to close dangling sessions")
		}
		if closed > 0 && currentCache != nil {
			if err := currentCache.Invalidate(ctx); err != nil {
				serviceLogger.WithError(models.NewErrorInfo(err, "cache_error")).Warn("Failed to invalidate current ranking cache")
			}
		}
	}

	client, err := httpkit.NewClient(cfg.Middleware.CircuitBreaker, cfg.CrawlerTimeout(), serviceLogger.Component("crawler"))
	if err != nil {
		serviceLogger.WithError(models.NewErrorInfo(err, "config_error")).Fatal("Failed to create HTTP client")
	}
	poller := collector.New(
		crawler.New(client, cfg.Crawler),
		trendTracker,
		serviceLogger,
		collector.WithTimeout(cfg.PollInterval()),
	)

	sched := scheduler.New(poller.Run, scheduler.Options{
		Interval:   cfg.PollInterval(),
		Location:   cfg.Location(),
		RunOnStart: cfg.Tracker.RunOnStart,
		Logger:     serviceLogger,
	})
	sched.Start()

	consumerDone := make(chan struct{})
	if enrichment != nil {
		go func() {
			defer close(consumerDone)
			if err := enrichment.Run(ctx); err != nil {
				serviceLogger.WithError(models.NewErrorInfo(err, "kafka_error")).Error("Enrichment consumer stopped")
			}
		}()
		serviceLogger.Info("Enrichment consumer started")
	} else {
		close(consumerDone)
	}

	<-ctx.Done()
	serviceLogger.Info("Shutting down collector...")
	sched.Stop()
	<-consumerDone
	serviceLogger.Info("Collector gracefully stopped")
}
