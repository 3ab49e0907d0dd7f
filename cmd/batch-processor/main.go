package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coursetrak/coursetrak-backend/api"
	"github.com/coursetrak/coursetrak-backend/internal/enrich"
	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/internal/processor"
	"github.com/coursetrak/coursetrak-backend/internal/recipients"
	"github.com/coursetrak/coursetrak-backend/pkg/config"
	"github.com/coursetrak/coursetrak-backend/pkg/db"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
	"github.com/coursetrak/coursetrak-backend/pkg/metrics"
	"github.com/coursetrak/coursetrak-backend/pkg/migrate"
	"github.com/coursetrak/coursetrak-backend/pkg/pubsub"
	"github.com/coursetrak/coursetrak-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "batch-processor"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "batch-processor"

	logg = logger.New(logger.Options{
		ServiceName: "batch-processor",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	pipelineMetrics := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)

	queue, err := jobs.NewPubSubQueue(jobs.PubSubQueueParams{
		Publisher: pubsubClient.JobsPublisher(),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create jobs queue", err)
		os.Exit(1)
	}

	eventsRepo := events.NewRepository(dbClient.DB())
	recipientsRepo := recipients.NewRepository(dbClient.DB())

	recipientSvc, err := recipients.NewService(recipients.ServiceParams{
		Repository: recipientsRepo,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recipients service", err)
		os.Exit(1)
	}

	lock, err := processor.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Notify.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create batch lock", err)
		os.Exit(1)
	}

	service, err := processor.NewService(processor.ServiceParams{
		Events:      eventsRepo,
		Recipients:  recipientSvc,
		Queue:       queue,
		Lock:        lock,
		Eligibility: enrich.EligibilityFromConfig(cfg.FeatureFlags.AISummaries, cfg.OpenAI.Configured()),
		Logger:      logg,
		Metrics:     pipelineMetrics,

		BatchSize:    cfg.Notify.BatchSize,
		RunBudget:    cfg.Notify.RunBudget,
		SafetyMargin: cfg.Notify.RunSafetyMargin,
		Interval:     cfg.Notify.BatchInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create batch service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	router := api.NewRouter(api.RouterParams{
		Config: cfg,
		Logger: logg,
		Pingers: []api.Pinger{
			{Name: "db", Ping: dbClient.Ping},
			{Name: "redis", Ping: redisClient.Ping},
			{Name: "pubsub", Ping: pubsubClient.Ping},
		},
	})
	httpServer := &http.Server{Addr: ":" + cfg.App.Port, Handler: router}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "health server stopped unexpectedly", err)
		}
	}()
	defer func() {
		if err := httpServer.Shutdown(context.Background()); err != nil {
			logg.Error(ctx, "error shutting down health server", err)
		}
	}()

	logg.Info(ctx, "starting batch processor")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "batch processor stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "batch processor shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "batch-processor:" + env
}
