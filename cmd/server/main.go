package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flagpole/internal/api"
	"flagpole/internal/cache"
	"flagpole/internal/config"
	"flagpole/internal/metrics"
	"flagpole/internal/model"
	"flagpole/internal/repository"
	"flagpole/internal/service"
	"flagpole/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := initRedis(cfg.Redis)
	defer rdb.Close()

	db, err := initDB(cfg.MySQL)
	if err != nil {
		return err
	}

	// Repositories
	flagRepo := repository.NewFlagRepository(db)
	overrideRepo := repository.NewOverrideRepository(db)
	memberRepo := repository.NewMembershipRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Cache backend: shared redis when reachable, in-process otherwise.
	observer := metrics.NewPrometheusObserver()
	backend := selectCacheBackend(ctx, cfg.Cache, rdb)
	if mem, ok := backend.(*cache.Memory); ok {
		defer mem.Close()
	}

	// Services
	hub := service.NewHub(observer)
	cacheSvc := service.NewCacheService(backend, observer)
	flagSvc := service.NewFlagService(flagRepo, overrideRepo, memberRepo, auditRepo, userRepo, repository.NewTx(db), cacheSvc, hub)
	authSvc := service.NewAuthService(userRepo, rdb, []byte(cfg.Auth.SigningKey),
		cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)

	r := api.RegisterRoutes(
		api.NewFlagHandler(flagSvc),
		api.NewStreamHandler(hub, cfg.Stream.SendBufferSize, cfg.Stream.HeartbeatInterval),
		api.NewAuthHandler(authSvc),
		authSvc,
		rdb,
		cfg.RateLimit.RequestsPerSecond,
	)

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

// -- Infrastructure Initializers --

func initRedis(cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// Auth sessions and rate limiting degrade; the cache backend
		// selection below falls back to memory.
		logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Addr), zap.Error(err))
	}
	return rdb
}

func selectCacheBackend(ctx context.Context, cfg config.CacheConfig, rdb *redis.Client) cache.Backend {
	if cfg.Backend != "memory" {
		remote := cache.NewRedis(rdb)
		if remote.IsAvailable(ctx) {
			logger.Info("using redis cache backend")
			return remote
		}
		logger.Warn("redis cache backend unavailable, falling back to in-process cache")
	}
	logger.Info("using in-process cache backend")
	return cache.NewMemory(cfg.SweepInterval)
}

func initDB(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	// Simple auto-migrate for dev convenience
	err = db.AutoMigrate(
		&model.User{},
		&model.Organization{},
		&model.Membership{},
		&model.Flag{},
		&model.Override{},
		&model.AuditLog{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
