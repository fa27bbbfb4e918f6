package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/lock"
	applog "github.com/maheshrc27/postflow/internal/log"
	"github.com/maheshrc27/postflow/internal/media"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/platform/instagram"
	"github.com/maheshrc27/postflow/internal/platform/mastodon"
	"github.com/maheshrc27/postflow/internal/platform/tiktok"
	"github.com/maheshrc27/postflow/internal/platform/youtube"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/telemetry"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/robfig/cron"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.NewSugar(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		logger.Fatalw("failed to connect to database", "error", err)
	}
	defer closeDB(db, logger)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatalw("database is unreachable", "error", err)
	}

	redisClient, err := lock.NewRedisClient(ctx, cfg.RedisURI)
	if err != nil {
		logger.Fatalw("redis is unreachable", "error", err)
	}
	defer redisClient.Close()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURI)
	if err != nil {
		logger.Fatalw("invalid redis uri", "error", err)
	}
	asynqClient := asynq.NewClient(redisConn)
	defer asynqClient.Close()

	recorder, metricsHandler, err := telemetry.Setup("postflow")
	if err != nil {
		logger.Fatalw("failed to set up metrics", "error", err)
	}

	cipher, err := utils.NewCipher(cfg.SecretKey)
	if err != nil {
		logger.Fatalw("failed to build token cipher", "error", err)
	}

	src, err := mediaSource(ctx, cfg)
	if err != nil {
		logger.Fatalw("failed to set up media source", "error", err)
	}

	registry, err := platform.NewRegistry(
		youtube.New(youtube.Config{
			ClientID:     cfg.Platforms.GoogleClientID,
			ClientSecret: cfg.Platforms.GoogleClientSecret,
		}, src),
		tiktok.New(tiktok.Config{
			ClientKey:         cfg.Platforms.TiktokClientKey,
			ClientSecret:      cfg.Platforms.TiktokClientSecret,
			RequestsPerSecond: cfg.Platforms.RequestsPerSecond,
		}, src),
		instagram.New(instagram.Config{
			RequestsPerSecond: cfg.Platforms.RequestsPerSecond,
		}, src),
		mastodon.New(mastodon.Config{
			Server: cfg.Platforms.MastodonServer,
		}, src),
	)
	if err != nil {
		logger.Fatalw("failed to register platform adapters", "error", err)
	}

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db, cipher)
	metricRepo := repository.NewMetricRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)

	queueClient := queue.NewClient(asynqClient, logger)

	deps := jobs.Deps{
		Posts:     postRepo,
		Accounts:  socialAccountRepo,
		Metrics:   metricRepo,
		Attempts:  attemptRepo,
		Adapters:  registry,
		Scheduler: queueClient,
		Locker:    lock.NewRedisLocker(redisClient, ""),
		Logger:    logger,
		Recorder:  recorder,
	}

	publishJob := jobs.NewPublishJob(deps)
	publishJob.FollowUps = cfg.MetricsFollowUps
	analyticsJob := jobs.NewAnalyticsJob(deps)
	analyticsJob.Lookback = cfg.AnalyticsLookback
	refreshJob := jobs.NewTokenRefreshJob(deps, cfg.RefreshExcluded)
	refreshJob.Horizon = cfg.RefreshHorizon

	queueW := queue.NewQueue(publishJob, jobs.NewMetricsJob(deps), analyticsJob, refreshJob, logger)

	// cron jobs
	c := cron.New()
	if err := c.AddFunc(cfg.RefreshSchedule, func() {
		if err := queueClient.EnqueueTokenRefreshSweep(context.Background()); err != nil {
			logger.Errorw("failed to enqueue token refresh sweep", "error", err)
		}
	}); err != nil {
		logger.Fatalw("invalid refresh schedule", "schedule", cfg.RefreshSchedule, "error", err)
	}
	if err := c.AddFunc(cfg.AnalyticsSchedule, func() {
		if err := queueClient.EnqueueAnalyticsSweep(context.Background()); err != nil {
			logger.Errorw("failed to enqueue analytics sweep", "error", err)
		}
	}); err != nil {
		logger.Fatalw("invalid analytics schedule", "schedule", cfg.AnalyticsSchedule, "error", err)
	}
	c.Start()

	server := asynq.NewServer(redisConn, queue.ServerConfig(cfg.WorkerConcurrency, logger))
	mux := asynq.NewServeMux()
	queueW.Register(mux)

	logger.Infow("starting asynq server", "concurrency", cfg.WorkerConcurrency)
	if err := server.Start(mux); err != nil {
		logger.Fatalw("could not start asynq server", "error", err)
	}

	app := api.NewApp(api.Config{
		SecretKey:      cfg.SecretKey,
		Posts:          handlers.NewPostHandler(queueClient, postRepo, attemptRepo, logger),
		Health:         handlers.NewHealthHandler(db),
		MetricsHandler: metricsHandler,
		Logger:         logger,
		AccessLog:      cfg.Env != "prod",
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()
	logger.Infow("server is running", "addr", cfg.HTTPAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	c.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Errorw("failed to shut down http server", "error", err)
	}
	server.Shutdown()
	logger.Info("shutdown complete")
}

func mediaSource(ctx context.Context, cfg *config.Config) (media.Source, error) {
	if !cfg.R2.Enabled() {
		return media.NewLocalSource(cfg.MediaDir, cfg.MediaBaseURL), nil
	}
	return media.NewR2Source(ctx, media.R2Config{
		AccountID:  cfg.R2.AccountID,
		AccessKey:  cfg.R2.AccessKey,
		SecretKey:  cfg.R2.SecretKey,
		BucketName: cfg.R2.BucketName,
		Endpoint:   cfg.R2.Endpoint,
		PublicURL:  cfg.R2.PublicURL,
	})
}

func closeDB(db *sql.DB, logger *zap.SugaredLogger) {
	if err := db.Close(); err != nil {
		logger.Errorw("failed to close database", "error", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Database connection closed")
}
