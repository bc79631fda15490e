package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-scheduler/internal/model"
	"github.com/jwalitptl/clinic-scheduler/internal/repository"
	"github.com/jwalitptl/clinic-scheduler/pkg/logger"
	"github.com/jwalitptl/clinic-scheduler/pkg/messaging"
	"github.com/jwalitptl/clinic-scheduler/pkg/metrics"
)

// EventHandler is called for every event after it has been published.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *model.OutboxEvent) error
}

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// MaxRetries is the number of polls an event may fail before it is
	// marked failed and left alone.
	MaxRetries int
}

// OutboxProcessor relays pending outbox events to the broker.
type OutboxProcessor struct {
	tx       repository.Transactor
	repo     repository.OutboxRepository
	broker   messaging.Broker
	notifier EventHandler
	config   OutboxProcessorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewOutboxProcessor(
	tx repository.Transactor,
	repo repository.OutboxRepository,
	broker messaging.Broker,
	notifier EventHandler,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		panic("MaxRetries must be greater than 0")
	}

	return &OutboxProcessor{
		tx:       tx,
		repo:     repo,
		broker:   broker,
		notifier: notifier,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processEvents(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// processEvents handles one batch. The fetched rows stay locked until the
// batch commits so concurrent workers never relay the same event.
func (p *OutboxProcessor) processEvents(ctx context.Context) error {
	start := time.Now()
	defer func() { p.metrics.ObserveOutboxBatch(time.Since(start)) }()

	return p.tx.WithinTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.FetchPending(ctx, p.config.BatchSize)
		p.metrics.ObserveDatabase("get_pending_events", err)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			if err := p.processEvent(ctx, event); err != nil {
				p.logger.Error(err, "Failed to process event",
					"event_id", event.ID.String(),
					"event_type", event.EventType)
			}
		}
		return nil
	})
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	err := retry(ctx, p.config.RetryAttempts, p.config.RetryDelay, func() error {
		return p.broker.Publish(ctx, event.EventType, event.Payload)
	})
	if err != nil {
		return p.recordFailure(ctx, event, err)
	}

	if p.notifier != nil {
		if nErr := p.notifier.HandleEvent(ctx, event); nErr != nil {
			p.logger.Error(nErr, "Failed to send notification",
				"event_id", event.ID.String(),
				"event_type", event.EventType)
		}
	}

	p.metrics.ObserveOutboxProcessed()
	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) recordFailure(ctx context.Context, event *model.OutboxEvent, cause error) error {
	p.metrics.ObserveOutboxRetry(event.EventType)

	var updateErr error
	if event.RetryCount+1 >= p.config.MaxRetries {
		p.metrics.ObserveOutboxFailed()
		updateErr = p.repo.MarkFailed(ctx, event.ID, cause.Error())
	} else {
		updateErr = p.repo.MarkRetry(ctx, event.ID, cause.Error())
	}
	if updateErr != nil {
		p.logger.Error(updateErr, "Failed to update event status", "event_id", event.ID.String())
	}
	return cause
}

// retry calls fn up to attempts times, waiting delay between calls.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
