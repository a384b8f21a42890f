package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/config"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/kafka"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("failed to load config", zap.Error(err))
	}
	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	log.Info("starting activity consumer",
		zap.String("topic", cfg.Kafka.Topic),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("group_id", cfg.Kafka.GroupID))

	reader := kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	consumer := kafka.NewConsumer(reader, kafka.LogActivity(log.Named("activity")), log)

	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped with error", zap.Error(err))
	}
	log.Info("consumer stopped")
}
