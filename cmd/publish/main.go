package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/app"
	"github.com/romariotrain/holograma/internal/config"
	"github.com/romariotrain/holograma/internal/media/kafka"
	"github.com/romariotrain/holograma/internal/media/outbox"
	pg "github.com/romariotrain/holograma/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.IsDevelopment())

	os.Exit(app.Run("publish", logger, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	}))
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if !cfg.UsesPostgres() {
		return fmt.Errorf("DATABASE_URL is empty")
	}

	pool := pg.DefaultPoolConfig()
	pool.MaxOpenConns = 5
	pool.MaxIdleConns = 2

	db, err := pg.Connect(ctx, cfg.DatabaseURL, pool)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer producer.Close()

	if err := producer.HealthCheck(ctx); err != nil {
		logger.Warn().Err(err).Msg("kafka is not reachable yet; events stay in the outbox")
	}

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		OutboxRepo:  pg.NewOutboxRepo(db),
		Producer:    producer,
		Interval:    cfg.OutboxInterval,
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempt,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	return publisher.Start(ctx)
}
