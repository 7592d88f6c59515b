package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TrendWatch/backend/go/internal/config"
	"TrendWatch/backend/go/internal/database"
	"TrendWatch/backend/go/internal/database/redis"
	"TrendWatch/backend/go/internal/models"
	"TrendWatch/backend/go/internal/trend_service/aggregator"
	"TrendWatch/backend/go/internal/trend_service/api"
	"TrendWatch/backend/go/internal/trend_service/cache"
	"TrendWatch/backend/go/internal/trend_service/store"
	httpkit "TrendWatch/backend/go/pkg/http"
	"TrendWatch/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
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
		logger.New("TrendAPI", "main").WithError(models.NewErrorInfo(err, "config_error")).Fatal("Failed to load configuration")
	}
	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("TrendAPI", "main")

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

	agg := aggregator.New(trendStore, aggregator.Options{
		Quantizer: aggregator.Quantizer{
			Bucket:  cfg.Bucket(),
			Enabled: *cfg.Aggregator.Quantize,
		},
		DefaultTopK: cfg.Aggregator.DefaultTopK,
		MaxTopK:     cfg.Aggregator.MaxTopK,
	})

	var current api.CurrentReader
	if cfg.Cache.Enabled {
		rdb, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			serviceLogger.WithError(models.NewErrorInfo(err, "cache_error")).Warn("Redis unavailable, serving current ranking from the store")
		} else {
			defer redis.Close()
			current = cache.NewCurrentCache(rdb, cfg.Cache.Key, cfg.CacheTTL())
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewAPI(trendStore, agg, current, cfg.Location(), serviceLogger), serviceLogger)

	opts := []httpkit.ServerOption{httpkit.WithLogger(serviceLogger.Component("http_server"))}
	if addr := os.Getenv("TRENDWATCH_ADDR"); addr != "" {
		opts = append(opts, httpkit.WithAddress(addr))
	}
	srv, err := httpkit.NewServer(cfg, router, opts...)
	if err != nil {
		serviceLogger.WithError(models.NewErrorInfo(err, "config_error")).Fatal("Failed to create HTTP server")
	}
	if err := srv.Run(ctx); err != nil {
		serviceLogger.WithError(models.NewErrorInfo(err, "server_error")).Error("HTTP server stopped with error")
		return
	}
	serviceLogger.Info("Server gracefully stopped")
}
