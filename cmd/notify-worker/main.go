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
	"github.com/coursetrak/coursetrak-backend/internal/emailer"
	"github.com/coursetrak/coursetrak-backend/internal/enrich"
	"github.com/coursetrak/coursetrak-backend/internal/events"
	"github.com/coursetrak/coursetrak-backend/internal/jobs"
	"github.com/coursetrak/coursetrak-backend/internal/recipients"
	"github.com/coursetrak/coursetrak-backend/pkg/config"
	"github.com/coursetrak/coursetrak-backend/pkg/db"
	"github.com/coursetrak/coursetrak-backend/pkg/logger"
	"github.com/coursetrak/coursetrak-backend/pkg/mailer"
	"github.com/coursetrak/coursetrak-backend/pkg/metrics"
	"github.com/coursetrak/coursetrak-backend/pkg/migrate"
	"github.com/coursetrak/coursetrak-backend/pkg/openai"
	"github.com/coursetrak/coursetrak-backend/pkg/pubsub"
	"github.com/coursetrak/coursetrak-backend/pkg/redis"
)

// enrichAdapter narrows the enricher to the consumer's handler shape.
type enrichAdapter struct {
	enricher enrich.Enricher
}

func (a enrichAdapter) Enrich(ctx context.Context, eventID int64) error {
	_, err := a.enricher.Enrich(ctx, eventID)
	return err
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "notify-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "notify-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notify-worker",
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

	// Without a credential the worker still runs; summaries finalize as
	// config_missing and plain emails go out.
	summarizerParams := enrich.SummarizerParams{
		Logger:      logg,
		MaxAttempts: cfg.Notify.MaxSummaryAttempts,
	}
	if cfg.OpenAI.Configured() {
		openaiClient, err := openai.NewClient(cfg.OpenAI.APIKey,
			openai.WithBaseURL(cfg.OpenAI.BaseURL),
			openai.WithModel(cfg.OpenAI.Model),
			openai.WithTimeout(cfg.OpenAI.Timeout),
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create openai client", err)
			os.Exit(1)
		}
		summarizerParams.OpenAI = openaiClient
	} else {
		logg.Warn(context.Background(), "no openai credential configured, summaries disabled")
	}

	mailClient, err := mailer.NewClient(cfg.Sendgrid.APIKey, cfg.Sendgrid.DefaultFrom,
		mailer.WithBaseURL(cfg.Sendgrid.BaseURL),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create mail client", err)
		os.Exit(1)
	}

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

	summarizerParams.Metrics = pipelineMetrics
	summarizer, err := enrich.NewSummarizer(summarizerParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create summarizer", err)
		os.Exit(1)
	}

	enricher, err := enrich.NewEnricher(enrich.EnricherParams{
		Events:      eventsRepo,
		Recipients:  recipientSvc,
		Summarizer:  summarizer,
		Queue:       queue,
		Logger:      logg,
		Eligibility: enrich.EligibilityFromConfig(cfg.FeatureFlags.AISummaries, cfg.OpenAI.Configured()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enricher", err)
		os.Exit(1)
	}

	emailSvc, err := emailer.NewService(emailer.ServiceParams{
		Events:  eventsRepo,
		Mailer:  mailClient,
		Logger:  logg,
		Metrics: pipelineMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create emailer service", err)
		os.Exit(1)
	}

	consumer, err := jobs.NewConsumer(jobs.ConsumerParams{
		Subscription: pubsubClient.JobsSubscription(),
		Enricher:     enrichAdapter{enricher: enricher},
		Sender:       emailSvc,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create jobs consumer", err)
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

	logg.Info(ctx, "starting notify worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "notify worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "notify worker shutting down gracefully")
}
