package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

type MockStore struct {
	mu             sync.Mutex
	OutboxEvents   []*repository.OutboxEvent
	FetchErr       error
	MarkErr        error
	ProcessedIDs   []int64
	ExpiredIntents []*repository.IntentRecord
	GetExpiredErr  error
	ExpireErrs     map[string]error
	ExpiredIDs     []string
	ExpireEvents   []*domain.CheckoutEvent
	ExpireCalls    int
}

func (m *MockStore) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	ev := m.OutboxEvents
	m.OutboxEvents = nil // return each batch once
	return ev, nil
}

func (m *MockStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockStore) GetExpiredIntents(context.Context, time.Time, int) ([]*repository.IntentRecord, error) {
	if m.GetExpiredErr != nil {
		return nil, m.GetExpiredErr
	}
	return m.ExpiredIntents, nil
}

func (m *MockStore) ExpireIntent(_ context.Context, orderID string, event *domain.CheckoutEvent) error {
	m.ExpireCalls++
	if err := m.ExpireErrs[orderID]; err != nil {
		return err
	}
	m.ExpiredIDs = append(m.ExpiredIDs, orderID)
	m.ExpireEvents = append(m.ExpireEvents, event)
	return nil
}

type MockWriter struct {
	mu       sync.Mutex
	Messages []kafkaGo.Message
	Err      error
	FailKeys map[string]bool
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	for _, m := range msgs {
		if w.FailKeys[string(m.Key)] {
			return errors.New("leader not available")
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *MockWriter) Close() error { return nil }

func newTestPoller(store OutboxStore, writer MessageWriter) *OutboxPoller {
	p := NewOutboxPoller(store, writer, slog.New(slog.DiscardHandler))
	p.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func outboxEvent(id int64, orderID, eventType string) *repository.OutboxEvent {
	return &repository.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   eventType,
		Payload:     json.RawMessage(fmt.Sprintf(`{"type":%q,"order_id":%q,"user_id":"user-1"}`, eventType, orderID)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	store := &MockStore{OutboxEvents: []*repository.OutboxEvent{
		outboxEvent(1, "ord-1", domain.EventCheckoutSucceeded),
		outboxEvent(2, "ord-2", domain.EventCheckoutFailed),
	}}
	writer := &MockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	require.Len(t, writer.Messages, 2)
	assert.Equal(t, "ord-1", string(writer.Messages[0].Key))
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, domain.EventCheckoutSucceeded, string(writer.Messages[0].Headers[0].Value))
	assert.Equal(t, []int64{1, 2}, store.ProcessedIDs)
}

func TestProcessUnpublishedEvents_FailedPublishIsNotMarked(t *testing.T) {
	store := &MockStore{OutboxEvents: []*repository.OutboxEvent{
		outboxEvent(1, "ord-1", domain.EventCheckoutSucceeded),
		outboxEvent(2, "ord-2", domain.EventCheckoutSucceeded),
	}}
	writer := &MockWriter{FailKeys: map[string]bool{"ord-1": true}}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{2}, store.ProcessedIDs, "failed event stays for the next tick")
}

func TestProcessUnpublishedEvents_InvalidPayloadSkipped(t *testing.T) {
	bad := outboxEvent(1, "ord-1", domain.EventCheckoutSucceeded)
	bad.Payload = []byte(`{broken`)
	store := &MockStore{OutboxEvents: []*repository.OutboxEvent{bad}}
	writer := &MockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.Messages)
	assert.Empty(t, store.ProcessedIDs)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	store := &MockStore{FetchErr: errors.New("database connection error")}
	writer := &MockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.Messages)
}

func TestProcessUnpublishedEvents_MarkErrorContinues(t *testing.T) {
	store := &MockStore{
		OutboxEvents: []*repository.OutboxEvent{outboxEvent(1, "ord-1", domain.EventCheckoutSucceeded)},
		MarkErr:      errors.New("database deadlock"),
	}
	writer := &MockWriter{}

	newTestPoller(store, writer).processUnpublishedEvents(context.Background())

	assert.Len(t, writer.Messages, 1)
	assert.Empty(t, store.ProcessedIDs)
}

func TestSweepExpiredIntents(t *testing.T) {
	intent := func(id string) *repository.IntentRecord {
		return &repository.IntentRecord{
			CheckoutIntent: domain.CheckoutIntent{OrderID: id, Amount: decimal.NewFromInt(1040)},
			SessionID:      "sess-" + id,
			UserID:         "user-1",
		}
	}
	store := &MockStore{
		ExpiredIntents: []*repository.IntentRecord{intent("ord-1"), intent("ord-2"), intent("ord-3")},
		ExpireErrs: map[string]error{
			"ord-2": domain.ErrIntentUnavailable,
			"ord-3": errors.New("database deadlock"),
		},
	}

	newTestPoller(store, &MockWriter{}).sweepExpiredIntents(context.Background())

	assert.Equal(t, 3, store.ExpireCalls)
	assert.Equal(t, []string{"ord-1"}, store.ExpiredIDs)
	ev := store.ExpireEvents[0]
	assert.Equal(t, domain.EventCheckoutExpired, ev.Type)
	assert.Equal(t, "sess-ord-1", ev.SessionID)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(1040)))
}

func TestSweepExpiredIntents_StoreError(t *testing.T) {
	store := &MockStore{GetExpiredErr: errors.New("database connection error")}

	newTestPoller(store, &MockWriter{}).sweepExpiredIntents(context.Background())

	assert.Zero(t, store.ExpireCalls)
}

func TestRun_StopsOnCancel(t *testing.T) {
	p := newTestPoller(&MockStore{}, &MockWriter{})
	p.eventTick = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		p.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("kafka container test")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()
	createTopic(t, brokerAddr, Topic)

	store := &MockStore{OutboxEvents: []*repository.OutboxEvent{
		outboxEvent(1, "ord-123", domain.EventCheckoutSucceeded),
	}}
	writer := NewWriter(brokerAddr)
	writer.WriteTimeout = 10 * time.Second
	poller := NewOutboxPoller(store, writer, slog.New(slog.DiscardHandler))
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    Topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ord-123", string(msg.Key))

	var ev domain.CheckoutEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "user-1", ev.UserID)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.ProcessedIDs) == 1
	}, 5*time.Second, 100*time.Millisecond)
}
