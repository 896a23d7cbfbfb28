package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/metrics"
	"github.com/romariotrain/holograma/internal/storage/postgres"
)

// Repository is the part of postgres.OutboxRepo the publisher needs.
type Repository interface {
	GetPending(ctx context.Context, limit, maxAttempts int) ([]postgres.OutboxRecord, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

type Producer interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Publisher реализует Outbox паттерн: события коммитов медиа уходят в Kafka
// at-least-once.
type Publisher struct {
	outboxRepo  Repository
	producer    Producer
	interval    time.Duration
	batchSize   int
	maxAttempts int
	logger      zerolog.Logger
}

type PublisherConfig struct {
	OutboxRepo  Repository
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Logger      zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.OutboxRepo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if cfg.Producer == nil {
		return nil, errors.New("kafka producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive, got: %d", cfg.MaxAttempts)
	}

	return &Publisher{
		outboxRepo:  cfg.OutboxRepo,
		producer:    cfg.Producer,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start polls the outbox every interval until ctx is cancelled.
// Errors of a single batch are logged and the loop keeps going.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Int("max_attempts", p.maxAttempts).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox publisher stopped")
			return nil

		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

// PublishBatch handles one batch of pending records and returns how many were
// published. Records are keyed by article id so one article's events keep
// their order within a partition.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	records, err := p.outboxRepo.GetPending(ctx, p.batchSize, p.maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events to publish")
		return 0, nil
	}

	var published, failed int
	blocked := make(map[string]bool)

	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("aggregate_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		// более позднее событие той же статьи не должно обогнать упавшее
		if blocked[record.AggregateID] {
			continue
		}

		err := p.producer.Publish(ctx, record.AggregateID, record.Payload)
		metrics.RecordOutbox(err)
		if err != nil {
			failed++
			blocked[record.AggregateID] = true
			eventLogger.Error().Err(err).Int("attempts", record.Attempts+1).Msg("failed to publish event")
			if markErr := p.outboxRepo.MarkFailed(ctx, record.ID, err); markErr != nil {
				eventLogger.Warn().Err(markErr).Msg("failed to record publish failure")
			}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		published++
		// Событие опубликовано, но не помечено: уйдёт повторно, consumer идемпотентен
		if err := p.outboxRepo.MarkProcessed(ctx, record.ID); err != nil {
			eventLogger.Warn().Err(err).Msg("failed to mark event as processed")
		}
	}

	p.logger.Info().
		Int("total", len(records)).
		Int("published", published).
		Int("failed", failed).
		Msg("batch processing completed")

	return published, nil
}
