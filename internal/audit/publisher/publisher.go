// Package publisher relays committed audit events from the outbox table to
// Kafka. Publishing is at-least-once; consumers deduplicate on the event ID
// carried as the record key.
package publisher

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"accessops/internal/audit/outbox"
	"accessops/internal/platform/kafka/producer"
)

// Producer is the Kafka surface the publisher needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Publisher polls the outbox table and publishes entries to Kafka.
type Publisher struct {
	store        outbox.Store
	producer     Producer
	batchSize    int
	pollInterval time.Duration
	metrics      *Metrics
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(p *Publisher) {
		p.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(p *Publisher) {
		p.pollInterval = interval
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a new outbox publisher.
func New(store outbox.Store, prod Producer, opts ...Option) *Publisher {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Publisher{
		store:        store,
		producer:     prod,
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start begins the polling loop in a background goroutine.
func (p *Publisher) Start() {
	p.wg.Add(1)
	go p.run()
}

func (p *Publisher) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			return
		case <-ticker.C:
			p.poll(p.ctx)
		}
	}
}

func (p *Publisher) poll(ctx context.Context) {
	start := time.Now()

	entries, err := p.store.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("failed to fetch outbox entries", "error", err)
		}
		if p.metrics != nil {
			p.metrics.IncPublishFailures()
		}
		return
	}

	if len(entries) == 0 {
		return
	}

	if p.metrics != nil {
		p.metrics.ObserveBatchSize(len(entries))
	}

	for _, entry := range entries {
		if err := p.publishEntry(ctx, entry); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to publish outbox entry",
					"id", entry.ID,
					"event_id", entry.EventID,
					"error", err,
				)
			}
			if p.metrics != nil {
				p.metrics.IncPublishFailures()
			}
			// Left unpublished; the next poll retries it.
			continue
		}

		if err := p.store.MarkPublished(ctx, entry.ID, time.Now()); err != nil {
			if p.logger != nil {
				p.logger.Error("failed to mark entry as published",
					"id", entry.ID,
					"error", err,
				)
			}
			// Published but not marked. The entry is re-published on the
			// next poll; consumers dedupe on the event ID key.
			continue
		}

		if p.metrics != nil {
			p.metrics.IncPublished()
		}
	}

	if p.metrics != nil {
		p.metrics.ObservePollDuration(time.Since(start).Seconds())
	}
}

func (p *Publisher) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	msg := &producer.Message{
		Topic: entry.Topic,
		Key:   []byte(entry.EventID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"outbox_id": strconv.FormatInt(entry.ID, 10),
		},
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

// drain publishes remaining entries during shutdown.
func (p *Publisher) drain() {
	if p.logger != nil {
		p.logger.Info("draining outbox publisher")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		entries, err := p.store.FetchUnpublished(ctx, p.batchSize)
		if err != nil {
			if p.logger != nil {
				p.logger.Error("failed to fetch entries during drain", "error", err)
			}
			return
		}

		if len(entries) == 0 {
			return
		}

		for _, entry := range entries {
			if err := p.publishEntry(ctx, entry); err != nil {
				if p.logger != nil {
					p.logger.Error("failed to publish during drain", "id", entry.ID, "error", err)
				}
				continue
			}

			if err := p.store.MarkPublished(ctx, entry.ID, time.Now()); err != nil {
				if p.logger != nil {
					p.logger.Error("failed to mark as published during drain", "id", entry.ID, "error", err)
				}
			}
		}
	}
}

// Stop gracefully stops the publisher, draining pending entries first.
func (p *Publisher) Stop(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateMetrics refreshes the pending depth gauge.
func (p *Publisher) UpdateMetrics(ctx context.Context) error {
	if p.metrics == nil {
		return nil
	}

	count, err := p.store.CountPending(ctx)
	if err != nil {
		return err
	}

	p.metrics.SetPendingDepth(count)
	return nil
}
