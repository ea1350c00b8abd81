// Package publisher relays checkout outbox rows to Kafka and closes intents
// whose payment window ran out without a payment.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	Topic      = "checkout-outbox"
	batchSize  = 100
	sweepLimit = 100
)

// Consumers define this interface
type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetExpiredIntents(ctx context.Context, now time.Time, limit int) ([]*repository.IntentRecord, error)
	ExpireIntent(ctx context.Context, orderID string, event *domain.CheckoutEvent) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	sweepTick time.Duration
	store     OutboxStore
	writer    MessageWriter
	now       func() time.Time
	log       *slog.Logger
}

func NewWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(store OutboxStore, writer MessageWriter, log *slog.Logger) *OutboxPoller {
	if log == nil {
		log = slog.Default()
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		sweepTick: 30 * time.Second,
		store:     store,
		writer:    writer,
		now:       time.Now,
		log:       log.With("component", "outbox"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	sweepTicker := time.NewTicker(p.sweepTick)
	defer eventTicker.Stop()
	defer sweepTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-sweepTicker.C:
			p.sweepExpiredIntents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.store.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to publish event", "event_id", event.ID, "error", err)
			continue
		}

		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", err)
			continue
		}
	}
}

// sweepExpiredIntents closes intents abandoned by sessions that went away
// before their payment window ran out. Consumed intents are left alone.
func (p *OutboxPoller) sweepExpiredIntents(ctx context.Context) {
	now := p.now()
	intents, err := p.store.GetExpiredIntents(ctx, now, sweepLimit)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to get expired intents", "error", err)
		return
	}
	for _, intent := range intents {
		event := &domain.CheckoutEvent{
			Type:      domain.EventCheckoutExpired,
			OrderID:   intent.OrderID,
			UserID:    intent.UserID,
			SessionID: intent.SessionID,
			Amount:    intent.Amount,
			Reason:    "payment window elapsed",
			At:        now,
		}
		err := p.store.ExpireIntent(ctx, intent.OrderID, event)
		if errors.Is(err, domain.ErrIntentUnavailable) {
			continue
		}
		if err != nil {
			p.log.ErrorContext(ctx, "failed to expire intent", "order_id", intent.OrderID, "error", err)
			continue
		}
		p.log.InfoContext(ctx, "intent expired", "order_id", intent.OrderID, "session_id", intent.SessionID)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *repository.OutboxEvent) error {
	if !json.Valid(event.Payload) {
		return errors.New("payload is not valid JSON")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
