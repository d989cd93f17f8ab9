// Package outbox delivers change events written by the service's
// transactions to the message broker, at least once.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"medwaste-backend/internal/events"
	"medwaste-backend/internal/metrics"
	"medwaste-backend/internal/models"
	"medwaste-backend/internal/store"

	"go.uber.org/zap"
)

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

type Publisher struct {
	store          store.OutboxStore
	producer       Producer
	config         PublisherConfig
	logger         *zap.Logger
	now            func() time.Time
	wg             sync.WaitGroup
	shutdownSignal chan struct{}
	stopOnce       sync.Once
}

func NewPublisher(st store.OutboxStore, producer Producer, config PublisherConfig) *Publisher {
	return &Publisher{
		store:          st,
		producer:       producer,
		config:         config,
		logger:         zap.L().Named("outbox"),
		now:            time.Now,
		shutdownSignal: make(chan struct{}),
	}
}

// Run polls the outbox until ctx is cancelled or Shutdown is called.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("starting outbox publisher",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("batch_size", p.config.BatchSize),
	)
	p.wg.Add(1)
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("failed to process batch", zap.Error(err))
			}
		case <-p.shutdownSignal:
			p.logger.Info("received shutdown signal, stopping")
			return nil
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping")
			p.stopOnce.Do(p.closeProducer)
			return nil
		}
	}
}

// Shutdown stops Run, waits for the batch in flight and closes the producer.
func (p *Publisher) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.shutdownSignal)
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			p.logger.Info("shutdown complete")
		case <-time.After(30 * time.Second):
			p.logger.Warn("shutdown timed out")
		}

		p.closeProducer()
	})
}

func (p *Publisher) closeProducer() {
	if err := p.producer.Close(); err != nil {
		p.logger.Error("failed to close producer", zap.Error(err))
	}
}

func (p *Publisher) processBatch(ctx context.Context) error {
	batch, err := p.store.ClaimOutboxBatch(ctx, p.config.BatchSize, p.config.MaxAttempts)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	p.logger.Debug("claimed outbox events", zap.Int("count", len(batch)))

	// oldest first, whatever order the store returned
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].CreatedAt < batch[j].CreatedAt
	})

	for _, ev := range batch {
		select {
		case <-p.shutdownSignal:
			// left in processing; reclaimed once stale
			return errors.New("publisher shutdown during batch processing")
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.processEvent(ctx, ev); err != nil {
			p.logger.Error("failed to process event", zap.String("id", ev.ID), zap.Error(err))
		}
	}
	return nil
}

func (p *Publisher) processEvent(ctx context.Context, ev models.OutboxEvent) error {
	err := p.producer.SendMessage(ctx, ev.Topic, partitionKey(ev), ev.Payload)
	if err != nil {
		metrics.OutboxFailuresTotal.Inc()
		attempts := ev.Attempts + 1
		if attempts >= p.config.MaxAttempts {
			p.logger.Warn("event reached max attempts, giving up",
				zap.String("id", ev.ID),
				zap.String("event_type", ev.EventType),
				zap.Int("attempts", attempts),
			)
		}
		if updateErr := p.store.MarkOutboxFailed(ctx, ev.ID, attempts, err.Error()); updateErr != nil {
			return errors.Join(err, updateErr)
		}
		return err
	}

	metrics.OutboxPublishedTotal.Inc()
	return p.store.MarkOutboxDone(ctx, ev.ID, p.now().Unix())
}

// partitionKey keeps all events of one entity on one partition, in order.
func partitionKey(ev models.OutboxEvent) []byte {
	var payload events.Event
	if err := json.Unmarshal(ev.Payload, &payload); err != nil || payload.EntityID == "" {
		return []byte(ev.ID)
	}
	return []byte(payload.Entity + ":" + payload.EntityID)
}
