package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/database"
	"storefront/internal/logging"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/router"
	"storefront/internal/service"
	"storefront/pkg/cloudinary"
	"storefront/pkg/telegram"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	closer := logging.Setup(&cfg.Log, cfg.IsProduction())
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := database.SeedAdmin(ctx, db, &cfg.Admin); err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	settings := service.NewSettingsService(repository.NewSettingRepository(db), cfg.Referral)
	if err := settings.SeedDefaults(ctx); err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	deps := router.Deps{
		Messenger: newMessenger(cfg),
		Limiter:   newLimiter(ctx, cfg),
	}
	if cfg.Cloudinary.CloudName != "" {
		cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
		deps.Cloud = cloud
	}

	engine := router.Setup(cfg, db, deps)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("server stopped")
}

func newMessenger(cfg *config.Config) telegram.Messenger {
	if cfg.Telegram.BotToken == "" {
		log.Warn("[telegram] bot token not set: messages are only logged and Telegram login is disabled")
		return telegram.NopMessenger{}
	}
	m, err := telegram.NewBotMessenger(cfg.Telegram.BotToken)
	if err != nil {
		log.WithError(err).Error("[telegram] bot unavailable, falling back to logging")
		return telegram.NopMessenger{}
	}
	return m
}

// newLimiter prefers Redis so limits hold across replicas; without REDIS_ADDR
// it falls back to a per-process limiter.
func newLimiter(ctx context.Context, cfg *config.Config) middleware.RateLimiter {
	rl := cfg.RateLimit
	if rl.Requests <= 0 {
		return nil
	}
	if rl.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: rl.RedisAddr})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Infof("[ratelimit] using redis at %s", rl.RedisAddr)
			return middleware.NewRedisRateLimiter(client, rl.Requests, rl.Window)
		}
		log.WithError(err).Warn("[ratelimit] redis unreachable, using in-memory limiter")
		client.Close()
	}
	l := middleware.NewInMemoryRateLimiter(rl.Requests, rl.Window)
	go l.Run(ctx, time.Minute)
	return l
}
