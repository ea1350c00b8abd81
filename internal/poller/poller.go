// Package poller consumes checkout events so every instance drops the cart
// state of a user whose order went through.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/segmentio/kafka-go"
)

// Consumers define this interface
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type SnapshotDeleter interface {
	Delete(ctx context.Context, userID string) error
}

type GuestCartDeleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// CartClearer empties carts held in live sessions.
type CartClearer interface {
	ClearUserCart(ctx context.Context, userID string) int
}

type Poller struct {
	reader    MessageReader
	snapshots SnapshotDeleter
	guests    GuestCartDeleter
	sessions  CartClearer
	log       *slog.Logger
}

func NewReader(groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.Topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// NewPoller wires the consumer. Any of snapshots, guests and sessions may
// be nil.
func NewPoller(reader MessageReader, snapshots SnapshotDeleter, guests GuestCartDeleter, sessions CartClearer, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		reader:    reader,
		snapshots: snapshots,
		guests:    guests,
		sessions:  sessions,
		log:       log.With("component", "checkout-consumer"),
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.getMessageAndEmptyCart(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", "error", err)
	}
}

func (p *Poller) getMessageAndEmptyCart(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.log.ErrorContext(ctx, "error reading message", "error", err)
		}
		return
	}
	p.handle(ctx, m)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) {
	var event domain.CheckoutEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.WarnContext(ctx, "error parsing message", "offset", m.Offset, "error", err)
		return
	}
	if event.Type == "" {
		event.Type = eventType(m)
	}
	if event.Type != domain.EventCheckoutSucceeded {
		return
	}
	if event.UserID == "" {
		p.log.WarnContext(ctx, "missing user_id", "order_id", event.OrderID)
		return
	}

	if p.snapshots != nil {
		if err := p.snapshots.Delete(ctx, event.UserID); err != nil {
			p.log.ErrorContext(ctx, "failed to delete cart snapshot", "user_id", event.UserID, "error", err)
		}
	}
	if p.guests != nil && event.SessionID != "" {
		if err := p.guests.Delete(ctx, event.SessionID); err != nil {
			p.log.ErrorContext(ctx, "failed to delete guest cart", "session_id", event.SessionID, "error", err)
		}
	}
	cleared := 0
	if p.sessions != nil {
		cleared = p.sessions.ClearUserCart(ctx, event.UserID)
	}
	p.log.InfoContext(ctx, "cart cleared after order", "order_id", event.OrderID, "user_id", event.UserID, "sessions", cleared)
}
