package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/survey-admin/configs"
	"github.com/avatarctic/survey-admin/internal/application/services"
	"github.com/avatarctic/survey-admin/internal/core/ports"
	"github.com/avatarctic/survey-admin/internal/infrastructure/db"
	"github.com/avatarctic/survey-admin/internal/infrastructure/health"
	"github.com/avatarctic/survey-admin/internal/infrastructure/httpserver"
	"github.com/avatarctic/survey-admin/internal/infrastructure/localcache"
	"github.com/avatarctic/survey-admin/internal/infrastructure/redis"
	"github.com/avatarctic/survey-admin/internal/infrastructure/repositories"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.Info("Starting survey-admin...")

	database, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()
	logger.Info("Connected to database successfully")

	if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	// The Redis client is built lazily by the factory; the monitor performs the
	// handshake in the background so startup never waits on Redis.
	var factory ports.DurableStoreFactory
	if cfg.Cache.RedisEnabled {
		factory = redis.NewStoreFactory(&cfg.Redis, cfg.Cache.KeyPrefix)
	}
	monitor := services.NewAvailabilityMonitor(factory, services.AvailabilityMonitorConfig{
		FailureThreshold: cfg.Cache.FailureThreshold,
		ConnectTimeout:   cfg.Cache.ConnectTimeout,
	}, logger)
	monitor.Start()

	localStore := localcache.NewStore()
	sweeper := localcache.NewSweeper(localStore, cfg.Cache.SweepInterval, logger, services.RecordSweep)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("Failed to start cache sweeper:", err)
	}

	cacheService := services.NewCacheService(localStore, monitor, services.CacheServiceConfig{
		OperationTimeout: cfg.Cache.OperationTimeout,
		DefaultTTL:       cfg.Cache.DefaultTTL,
	}, logger)

	baseRechequeoRepo := repositories.NewRechequeoRepository(database, logger)
	rechequeoRepo := repositories.NewCachingRechequeoRepository(baseRechequeoRepo, cacheService, repositories.RechequeoCacheTTLs{
		List:    cfg.Cache.ListTTL,
		KPIs:    cfg.Cache.KPITTL,
		Filters: cfg.Cache.FiltersTTL,
	})
	rechequeoService := services.NewRechequeoService(rechequeoRepo, logger)

	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Environment:    cfg.Server.Environment,
	}
	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		RechequeoService: rechequeoService,
		CacheService:     cacheService,
		HealthCheckers: []ports.HealthChecker{
			health.NewDBHealthChecker(database),
			health.NewCacheHealthChecker(cacheService),
		},
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	sweeper.Stop()
	if err := monitor.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close durable cache")
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
