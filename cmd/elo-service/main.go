package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcfg "github.com/elo-community/elo-rating-service/internal/config"
	"github.com/elo-community/elo-rating-service/internal/elo"
	"github.com/elo-community/elo-rating-service/internal/h2h"
	"github.com/elo-community/elo-rating-service/internal/httpapi"
	"github.com/elo-community/elo-rating-service/internal/matchresult"
	"github.com/elo-community/elo-rating-service/internal/msgcat"
	"github.com/elo-community/elo-rating-service/internal/notify"
	"github.com/elo-community/elo-rating-service/internal/notifyhub"
	"github.com/elo-community/elo-rating-service/internal/obslog"
	"github.com/elo-community/elo-rating-service/internal/sweeper"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	opts, err := matchresult.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis url error", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pctx).Err(); err != nil {
		cancel()
		logger.Fatal("redis connect error", zap.Error(err))
	}
	cancel()

	var repo matchresult.Repository
	if cfg.DatabaseURL != "" {
		repo, err = matchresult.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("repository init error", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory repository")
		repo = matchresult.NewMemoryRepository()
	}

	engine := elo.NewEngine(elo.DefaultConfig())
	aggregator := h2h.NewAggregator(repo, cfg.H2HWindow)

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	hub := notifyhub.NewHub(cfg.NotifyListenAddr)
	hub.Start()
	emitter := notify.NewEmitter(cat, hub)

	mgr := matchresult.NewManager(rdb, repo, engine, aggregator, emitter, matchresult.Options{
		ClaimWindow:  cfg.ClaimWindow,
		ExpiryPolicy: cfg.ExpiryPolicy,
	})

	swp := sweeper.New(mgr, cfg.SweepInterval)
	swp.Start(context.Background())

	api := httpapi.NewServer(mgr, aggregator)
	go func() {
		logger.Info("api listening", zap.String("addr", cfg.ListenAddr))
		if err := api.ListenAndServe(cfg.ListenAddr); err != nil {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	swp.Stop()
	if err := api.Shutdown(); err != nil {
		logger.Warn("api shutdown error", zap.Error(err))
	}
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := hub.Shutdown(sctx); err != nil {
		logger.Warn("hub shutdown error", zap.Error(err))
	}
	scancel()
	_ = rdb.Close()
	_ = repo.Close()
}
