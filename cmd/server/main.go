package main

import (
	"anonchat/app/internal/api/handler"
	"anonchat/app/internal/chathub"
	"anonchat/app/internal/config"
	"anonchat/app/internal/logger"
	"anonchat/app/internal/storage"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(ctx context.Context, cfg *config.ServerConfig, log *zap.Logger) (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect PostgreSQL", zap.Error(err))
	}

	// 2. Redis
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect Redis", zap.Error(err))
	}

	log.Info("database and redis connections established")
	return db, rdb
}

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting anonchat reference server", zap.String("addr", cfg.ListenAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies(ctx, cfg, log)
	s := storage.NewStorageService(db, rdb, log)
	if err := s.Migrate(); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// 2. Chat Hub та Matcher
	hub := chathub.NewManagerService(s, log)
	matcher := chathub.NewMatcherService(s, cfg.MatchInterval, log)
	if err := hub.Start(ctx); err != nil {
		log.Fatal("failed to start hub", zap.Error(err))
	}
	go matcher.Run(ctx)

	// 3. Gin та роутинг
	r := gin.New()
	r.Use(gin.Recovery())
	handler.NewHandler(hub, s, cfg, log).Register(r)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server stopped")
}
