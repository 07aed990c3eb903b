package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mistapp/backend/internal/config"
	"github.com/mistapp/backend/internal/jobs"
	"github.com/mistapp/backend/internal/kernel"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/notify"
	"github.com/mistapp/backend/internal/search"
	"github.com/mistapp/backend/internal/timeline"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	metrics.Initialize()

	k, err := kernel.Build(context.Background(), cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize dependencies", err)
	}

	db := k.DB()
	var searcher timeline.PostSearcher
	if client := k.Search(); client != nil {
		searcher = client
	}

	mistbox := jobs.NewMistboxReset(db, timeline.NewService(db, searcher), notify.New(db, k.Push()), cfg.Jobs.MistboxDailyOpens)
	votes := jobs.NewSyntheticVotes(db, cfg.Jobs.SystemVoters)

	// Without Redis every worker runs every job
	var locker jobs.Locker
	if redisClient := k.Cache(); redisClient != nil {
		locker = redisClient
	} else {
		logger.Log.Warn("Redis not configured, jobs run without locks")
	}

	scheduler := jobs.NewScheduler(locker, mistbox.Job(cfg.Jobs.DigestHourUTC), votes.Job())
	scheduler.Start()

	var reconciler *search.ReconciliationService
	if client := k.Search(); client != nil {
		reconciler = search.NewReconciliationService(db, client, 15*time.Minute)
		reconciler.Start()
	}

	logger.Log.Info("Mist worker started",
		zap.Int("digest_hour_utc", cfg.Jobs.DigestHourUTC),
		zap.Strings("system_voters", cfg.Jobs.SystemVoters),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down worker...")

	scheduler.Stop()
	if reconciler != nil {
		reconciler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := k.Cleanup(ctx); err != nil {
		logger.ErrorWithFields("Cleanup failed", err)
	}
	logger.Log.Info("Worker exited")
}
