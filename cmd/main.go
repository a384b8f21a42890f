package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/auth"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/logger"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/outbox"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/repository/postgresql"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/server"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, envFile, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("failed to load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()
	if envFile != "" {
		log.Info("loaded environment file", zap.String("path", envFile))
	}

	g, gctx := errgroup.WithContext(ctx)

	opts := storage.Options{
		Latency:          cfg.StoreLatency,
		ActivityCapacity: cfg.ActivityCapacity,
		Logger:           log.Named("store"),
	}

	if cfg.OutboxEnabled {
		database, err := db.NewDb(ctx, cfg.DB.DSN())
		if err != nil {
			log.Fatal("database init error", zap.Error(err))
		}
		defer database.Close()

		repo := postgresql.NewOutboxTaskRepo()
		opts.Sink = outbox.NewActivityOutbox(database, repo, cfg.Kafka.Topic, log.Named("outbox"))

		var producer kafka.Producer
		if cfg.Kafka.Console {
			producer = kafka.NewConsoleProducer(log.Named("kafka"))
		} else {
			producer = kafka.NewWriterProducer(cfg.Kafka.Brokers, log.Named("kafka"))
		}
		publisher := kafka.NewPublisher(database, repo, producer, kafka.PublisherConfig{
			PollInterval: cfg.Publisher.PollInterval,
			BatchSize:    cfg.Publisher.BatchSize,
			MaxAttempts:  cfg.Publisher.MaxAttempts,
			Lease:        cfg.Publisher.Lease,
		}, log)
		g.Go(func() error {
			return publisher.Run(gctx)
		})
	}

	store := storage.New(opts)
	if cfg.SeedDemoData {
		if err := store.Seed(ctx); err != nil {
			log.Fatal("failed to seed demo data", zap.Error(err))
		}
		log.Info("demo data seeded")
	}

	srv := server.New(store, auth.NewAdapter(store, log.Named("auth")), log.Named("http"))
	g.Go(func() error {
		return srv.Run(gctx, cfg.HTTPPort)
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", zap.Error(err))
		return
	}
	log.Info("service gracefully stopped")
}
