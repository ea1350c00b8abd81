package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/lib/pq"
)

var (
	ErrIntentNotFound  = errors.New("checkout intent not found")
	ErrDuplicateIntent = errors.New("checkout intent already recorded")
)

// IntentRecord is a checkout intent as kept in the ledger.
type IntentRecord struct {
	domain.CheckoutIntent
	SessionID      string
	UserID         string
	IdempotencyKey string
	Status         domain.IntentStatus
	ConsumedAt     *time.Time
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

const intentColumns = `order_id, session_id, user_id, address_id, coupon_code, wallet_points_used,
	amount, status, idempotency_key, created_at, expires_at, consumed_at`

func (r *Repository) CreateIntent(ctx context.Context, rec *IntentRecord) error {
	query := `INSERT INTO checkout_intents (order_id, session_id, user_id, address_id, coupon_code,
	              wallet_points_used, amount, status, idempotency_key, created_at, expires_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`

	_, err := r.db.ExecContext(ctx, query,
		rec.OrderID,
		rec.SessionID,
		rec.UserID,
		rec.AddressID,
		sql.NullString{String: rec.CouponCode, Valid: rec.CouponCode != ""},
		rec.WalletPointsUsed,
		rec.Amount,
		domain.IntentStatusPending,
		rec.IdempotencyKey,
		rec.CreatedAt,
		rec.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateIntent
		}
		return fmt.Errorf("insert checkout intent: %w", err)
	}
	rec.Status = domain.IntentStatusPending
	return nil
}

func (r *Repository) GetIntent(ctx context.Context, orderID string) (*IntentRecord, error) {
	query := `SELECT ` + intentColumns + ` FROM checkout_intents WHERE order_id = $1`

	rec, err := scanIntent(r.db.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIntentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout intent: %w", err)
	}
	return rec, nil
}

// ConsumeIntent claims a pending, unexpired intent for one payment attempt.
// A second claim, or a claim after expiry, fails with
// domain.ErrIntentUnavailable.
func (r *Repository) ConsumeIntent(ctx context.Context, orderID string, now time.Time) error {
	query := `UPDATE checkout_intents
	          SET consumed_at = $2, updated_at = NOW()
	          WHERE order_id = $1
	            AND status = $3
	            AND consumed_at IS NULL
	            AND expires_at > $2`

	res, err := r.db.ExecContext(ctx, query, orderID, now, domain.IntentStatusPending)
	if err != nil {
		return fmt.Errorf("consume checkout intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume checkout intent: %w", err)
	}
	if n == 0 {
		return domain.ErrIntentUnavailable
	}
	return nil
}

// CompleteIntent records the outcome of a consumed intent and its outbox
// event in one transaction.
func (r *Repository) CompleteIntent(ctx context.Context, orderID string, status domain.IntentStatus, event *domain.CheckoutEvent) error {
	update := `UPDATE checkout_intents SET status = $2, updated_at = NOW()
	           WHERE order_id = $1 AND status = $3 AND consumed_at IS NOT NULL`
	return r.finishIntent(ctx, update, orderID, status, event)
}

// ExpireIntent marks an unconsumed intent as expired. An intent that is
// already being paid is left alone.
func (r *Repository) ExpireIntent(ctx context.Context, orderID string, event *domain.CheckoutEvent) error {
	update := `UPDATE checkout_intents SET status = $2, updated_at = NOW()
	           WHERE order_id = $1 AND status = $3 AND consumed_at IS NULL`
	return r.finishIntent(ctx, update, orderID, domain.IntentStatusExpired, event)
}

func (r *Repository) finishIntent(ctx context.Context, update, orderID string, status domain.IntentStatus, event *domain.CheckoutEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, update, orderID, status, domain.IntentStatusPending)
	if err != nil {
		return fmt.Errorf("update checkout intent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkout intent: %w", err)
	}
	if n == 0 {
		return domain.ErrIntentUnavailable
	}

	insert := `INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, insert, orderID, event.Type, payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetExpiredIntents returns pending, unconsumed intents whose window closed
// at or before now.
func (r *Repository) GetExpiredIntents(ctx context.Context, now time.Time, limit int) ([]*IntentRecord, error) {
	query := `SELECT ` + intentColumns + ` FROM checkout_intents
	          WHERE status = $1 AND consumed_at IS NULL AND expires_at <= $2
	          ORDER BY expires_at
	          LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, domain.IntentStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query expired intents: %w", err)
	}
	defer rows.Close()

	var out []*IntentRecord
	for rows.Next() {
		rec, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan intent row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM outbox_events
	          WHERE processed_at IS NULL
	          ORDER BY id
	          LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (*IntentRecord, error) {
	var (
		rec      IntentRecord
		coupon   sql.NullString
		consumed sql.NullTime
	)
	err := row.Scan(
		&rec.OrderID,
		&rec.SessionID,
		&rec.UserID,
		&rec.AddressID,
		&coupon,
		&rec.WalletPointsUsed,
		&rec.Amount,
		&rec.Status,
		&rec.IdempotencyKey,
		&rec.CreatedAt,
		&rec.ExpiresAt,
		&consumed,
	)
	if err != nil {
		return nil, err
	}
	rec.CouponCode = coupon.String
	if consumed.Valid {
		t := consumed.Time
		rec.ConsumedAt = &t
		rec.Consumed = true
	}
	return &rec, nil
}
