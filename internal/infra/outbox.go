package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/scorekeep/arena/internal/repository"
)

const housekeepingInterval = time.Minute

// Publisher is the sink the outbox relays to. *KafkaProducer implements it.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// envelope is the Kafka message body for one outbox row.
type envelope struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Headers       json.RawMessage `json:"headers,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func newEnvelope(row repository.OutboxRow) envelope {
	return envelope{
		EventID:       row.EventID.String(),
		AggregateType: string(row.AggregateType),
		AggregateID:   row.AggregateID,
		EventType:     string(row.EventType),
		Headers:       row.Headers,
		Payload:       row.Payload,
		OccurredAt:    row.OccurredAt,
	}
}

// OutboxPoller relays event_outbox rows to Kafka. Each batch is claimed inside
// a transaction with SKIP LOCKED, so several relays can share one table.
type OutboxPoller struct {
	db        repository.TxBeginner
	outbox    repository.OutboxRepository
	publisher Publisher
	logger    *slog.Logger

	topicPrefix string
	interval    time.Duration
	batchSize   int
	retention   time.Duration
	now         func() time.Time
}

// NewOutboxPoller creates a new outbox poller.
func NewOutboxPoller(db repository.TxBeginner, outbox repository.OutboxRepository, publisher Publisher, cfg *Config, logger *slog.Logger) *OutboxPoller {
	return &OutboxPoller{
		db:          db,
		outbox:      outbox,
		publisher:   publisher,
		logger:      logger,
		topicPrefix: cfg.KafkaTopicPrefix,
		interval:    cfg.OutboxInterval,
		batchSize:   cfg.OutboxBatchSize,
		retention:   cfg.OutboxRetention,
		now:         time.Now,
	}
}

// TopicFor maps an event to its Kafka topic, e.g. "arena.result".
func TopicFor(prefix string, row repository.OutboxRow) string {
	return prefix + "." + string(row.AggregateType)
}

// Run relays batches every interval and housekeeps every minute until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	p.logger.Info("outbox relay started",
		"interval", p.interval, "batch_size", p.batchSize, "retention", p.retention)

	relay := time.NewTicker(p.interval)
	defer relay.Stop()
	housekeep := time.NewTicker(housekeepingInterval)
	defer housekeep.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox relay stopped")
			return
		case <-relay.C:
			// Drain full batches back to back so a burst doesn't wait on the ticker.
			for {
				n, err := p.PollOnce(ctx)
				if err != nil {
					p.logger.Error("outbox relay failed", "error", err)
					break
				}
				if n > 0 {
					p.logger.Debug("outbox batch relayed", "published", n)
				}
				if n < p.batchSize || ctx.Err() != nil {
					break
				}
			}
		case <-housekeep.C:
			if err := p.Housekeep(ctx); err != nil {
				p.logger.Warn("outbox housekeeping failed", "error", err)
			}
		}
	}
}

// PollOnce relays one batch and returns how many events were published.
// Publishing stops at the first failure so per-key order holds; the rest
// are retried next round.
func (p *OutboxPoller) PollOnce(ctx context.Context) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch, err := p.outbox.Claim(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(batch))
	for _, row := range batch {
		msg, err := json.Marshal(newEnvelope(row))
		if err != nil {
			return 0, fmt.Errorf("encode event %s: %w", row.EventID, err)
		}
		err = p.publisher.Publish(ctx, Message{
			Topic: TopicFor(p.topicPrefix, row),
			Key:   row.PartitionKey,
			Value: msg,
			Headers: map[string]string{
				"event_type": string(row.EventType),
				"event_id":   row.EventID.String(),
			},
		})
		if err != nil {
			p.logger.Error("kafka publish failed", "event_id", row.EventID, "event_type", row.EventType, "error", err)
			ObserveOutboxPublish("error")
			break
		}
		ObserveOutboxPublish("ok")
		published = append(published, row.SeqID)
	}

	if err := p.outbox.MarkPublished(ctx, tx, published); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return len(published), nil
}

// Housekeep refreshes the backlog gauge and purges relayed events past retention.
func (p *OutboxPoller) Housekeep(ctx context.Context) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	backlog, err := p.outbox.Backlog(ctx, tx)
	if err != nil {
		return err
	}
	SetOutboxBacklog(backlog)

	if p.retention > 0 {
		purged, err := p.outbox.PurgePublished(ctx, tx, p.now().Add(-p.retention))
		if err != nil {
			return err
		}
		if purged > 0 {
			p.logger.Info("purged relayed outbox events", "count", purged, "backlog", backlog)
		}
	}
	return tx.Commit(ctx)
}
