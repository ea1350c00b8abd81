package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
		MaxOpenConns:      4,
		MaxIdleConns:      2,
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	require.NoError(t, repo.RunMigrations(creds))

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return repo, cleanup
}

func newIntent(orderID string, createdAt time.Time, window time.Duration) *IntentRecord {
	return &IntentRecord{
		CheckoutIntent: domain.CheckoutIntent{
			OrderID:          orderID,
			AddressID:        "addr-1",
			CouponCode:       "SAVE10",
			WalletPointsUsed: 20,
			Amount:           decimal.RequireFromString("1499.00"),
			CreatedAt:        createdAt,
			ExpiresAt:        createdAt.Add(window),
		},
		SessionID:      "sess-1",
		UserID:         "user-1",
		IdempotencyKey: uuid.NewString(),
	}
}

func TestCreateIntent_AndGet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.CreateIntent(ctx, newIntent("ord-1", now, 10*time.Minute)))

	got, err := repo.GetIntent(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPending, got.Status)
	assert.Equal(t, "SAVE10", got.CouponCode)
	assert.True(t, decimal.NewFromInt(1499).Equal(got.Amount))
	assert.True(t, now.Add(10*time.Minute).Equal(got.ExpiresAt))
	assert.False(t, got.Consumed)
}

func TestCreateIntent_Duplicate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.CreateIntent(ctx, newIntent("ord-1", time.Now(), time.Minute)))
	err := repo.CreateIntent(ctx, newIntent("ord-1", time.Now(), time.Minute))

	assert.ErrorIs(t, err, ErrDuplicateIntent)
}

func TestGetIntent_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetIntent(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestConsumeIntent_OnlyOnce(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.CreateIntent(ctx, newIntent("ord-1", now, 10*time.Minute)))

	require.NoError(t, repo.ConsumeIntent(ctx, "ord-1", now.Add(time.Minute)))
	err := repo.ConsumeIntent(ctx, "ord-1", now.Add(2*time.Minute))

	assert.ErrorIs(t, err, domain.ErrIntentUnavailable)
	got, err := repo.GetIntent(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, got.Consumed)
}

func TestConsumeIntent_ExpiredIsUnavailable(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.CreateIntent(ctx, newIntent("ord-1", now, time.Minute)))

	err := repo.ConsumeIntent(ctx, "ord-1", now.Add(time.Minute))

	assert.ErrorIs(t, err, domain.ErrIntentUnavailable)
}

func TestCompleteIntent_WritesOutboxEvent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.CreateIntent(ctx, newIntent("ord-1", now, 10*time.Minute)))
	require.NoError(t, repo.ConsumeIntent(ctx, "ord-1", now))

	event := &domain.CheckoutEvent{Type: domain.EventCheckoutSucceeded, OrderID: "ord-1", UserID: "user-1", SessionID: "sess-1", At: now}
	require.NoError(t, repo.CompleteIntent(ctx, "ord-1", domain.IntentStatusPaid, event))

	got, err := repo.GetIntent(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusPaid, got.Status)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ord-1", events[0].AggregateID)
	assert.Equal(t, domain.EventCheckoutSucceeded, events[0].EventType)

	var decoded domain.CheckoutEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &decoded))
	assert.Equal(t, "user-1", decoded.UserID)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCompleteIntent_RequiresConsumption(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, repo.CreateIntent(ctx, newIntent("ord-1", time.Now(), 10*time.Minute)))

	err := repo.CompleteIntent(ctx, "ord-1", domain.IntentStatusPaid, &domain.CheckoutEvent{Type: domain.EventCheckoutSucceeded})

	assert.ErrorIs(t, err, domain.ErrIntentUnavailable)
	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events, "rolled back transaction must not leave an outbox row")
}

func TestExpiredIntents_SweepAndExpire(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.CreateIntent(ctx, newIntent("old", now.Add(-20*time.Minute), 10*time.Minute)))
	require.NoError(t, repo.CreateIntent(ctx, newIntent("fresh", now, 10*time.Minute)))
	require.NoError(t, repo.CreateIntent(ctx, newIntent("paying", now.Add(-20*time.Minute), 30*time.Minute)))
	require.NoError(t, repo.ConsumeIntent(ctx, "paying", now.Add(-15*time.Minute)))

	expired, err := repo.GetExpiredIntents(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].OrderID)

	event := &domain.CheckoutEvent{Type: domain.EventCheckoutExpired, OrderID: "old"}
	require.NoError(t, repo.ExpireIntent(ctx, "old", event))
	assert.ErrorIs(t, repo.ExpireIntent(ctx, "old", event), domain.ErrIntentUnavailable)
	assert.ErrorIs(t, repo.ExpireIntent(ctx, "paying", event), domain.ErrIntentUnavailable)

	got, err := repo.GetIntent(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentStatusExpired, got.Status)
	assert.ErrorIs(t, repo.ConsumeIntent(ctx, "old", now), domain.ErrIntentUnavailable)
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetIntent(ctx, "any")
	assert.Error(t, err)
}

func TestNewRepository_AppliesPoolLimits(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Equal(t, 4, repo.db.Stats().MaxOpenConnections)
}
