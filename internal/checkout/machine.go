// Package checkout drives one checkout attempt through address selection,
// intent creation and payment. A payment is only ever submitted for a live
// intent, and an order id whose window has closed is never paid.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultWindow = 10 * time.Minute

// Consumers define this interface
type OrderService interface {
	CreateIntent(ctx context.Context, req domain.IntentRequest, idempotencyKey string) (*domain.CheckoutIntent, error)
	SubmitPayment(ctx context.Context, orderID string, method domain.PaymentMethod) (string, error)
}

// IntentLedger makes intent consumption durable across restarts.
type IntentLedger interface {
	CreateIntent(ctx context.Context, rec *repository.IntentRecord) error
	ConsumeIntent(ctx context.Context, orderID string, now time.Time) error
	CompleteIntent(ctx context.Context, orderID string, status domain.IntentStatus, event *domain.CheckoutEvent) error
	ExpireIntent(ctx context.Context, orderID string, event *domain.CheckoutEvent) error
}

type Options struct {
	SessionID string
	Orders    OrderService
	// Ledger is optional; without it single use is enforced in memory only.
	Ledger IntentLedger
	// Window applies when the order service does not return an expiry.
	Window  time.Duration
	Now     func() time.Time
	NewKey  func() string
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Snapshot is the read model of the machine.
type Snapshot struct {
	State        domain.CheckoutState      `json:"state"`
	Address      *domain.Address           `json:"address,omitempty"`
	OrderID      string                    `json:"orderId,omitempty"`
	Amount       *decimal.Decimal          `json:"amount,omitempty"`
	ExpiresAt    *time.Time                `json:"expiresAt,omitempty"`
	Remaining    int64                     `json:"remainingSeconds"`
	Confirmation *domain.OrderConfirmation `json:"confirmation,omitempty"`
	Message      string                    `json:"message,omitempty"`
}

type Machine struct {
	sessionID string
	orders    OrderService
	ledger    IntentLedger
	window    time.Duration
	now       func() time.Time
	newKey    func() string
	metrics   *metrics.Metrics
	log       *slog.Logger

	mu           sync.Mutex
	userID       string
	state        domain.CheckoutState
	address      *domain.Address
	intent       *domain.CheckoutIntent
	confirmation *domain.OrderConfirmation
	message      string
	spent        map[string]struct{}
}

func New(opts Options) *Machine {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewKey == nil {
		opts.NewKey = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Machine{
		sessionID: opts.SessionID,
		orders:    opts.Orders,
		ledger:    opts.Ledger,
		window:    opts.Window,
		now:       opts.Now,
		newKey:    opts.NewKey,
		metrics:   opts.Metrics,
		log:       opts.Logger,
		state:     domain.CheckoutStateAddressSelection,
		spent:     make(map[string]struct{}),
	}
}

func (m *Machine) SetUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = userID
}

func (m *Machine) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(context.Background())
	return m.snapshotLocked()
}

// SelectAddress records the delivery address. It is only accepted while
// choosing an address.
func (m *Machine) SelectAddress(ctx context.Context, addr domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(ctx)

	if m.state != domain.CheckoutStateAddressSelection {
		return fmt.Errorf("select address in state %s: %w", m.state, domain.ErrIllegalTransition)
	}
	if addr.ID == "" {
		return domain.ErrMissingAddress
	}
	a := addr
	m.address = &a
	return nil
}

// CreateIntent asks the order service for a pending order covering cart.
// On failure the machine returns to address selection and the service's
// message is passed through.
func (m *Machine) CreateIntent(ctx context.Context, opts domain.CheckoutOptions, cart *domain.ServerCart) (*domain.CheckoutIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireLocked(ctx)

	if m.state != domain.CheckoutStateAddressSelection {
		return nil, fmt.Errorf("create intent in state %s: %w", m.state, domain.ErrIllegalTransition)
	}
	if m.address == nil {
		return nil, domain.ErrMissingAddress
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	m.message = ""
	if err := m.moveLocked(domain.CheckoutStateIntentCreation); err != nil {
		return nil, err
	}

	req := domain.IntentRequest{
		AddressID:         m.address.ID,
		CouponCode:        opts.CouponCode,
		CouponDiscount:    opts.CouponDiscount,
		WalletPointsToUse: opts.WalletPointsToUse,
	}
	key := m.newKey()
	intent, err := m.orders.CreateIntent(ctx, req, key)
	if err == nil {
		if _, reused := m.spent[intent.OrderID]; reused {
			err = fmt.Errorf("order %s was already used: %w", intent.OrderID, domain.ErrIntentUnavailable)
		}
	}
	if err != nil {
		m.message = domain.UserMessage(err)
		_ = m.moveLocked(domain.CheckoutStateAddressSelection)
		return nil, err
	}

	intent.CreatedAt = m.now()
	if intent.ExpiresAt.IsZero() {
		intent.ExpiresAt = intent.CreatedAt.Add(m.window)
	}
	if intent.Amount.IsZero() {
		intent.Amount = cart.PricingSummary.FinalAmount
	}

	if m.ledger != nil {
		rec := &repository.IntentRecord{
			CheckoutIntent: *intent,
			SessionID:      m.sessionID,
			UserID:         m.userID,
			IdempotencyKey: key,
		}
		if err := m.ledger.CreateIntent(ctx, rec); err != nil {
			m.spent[intent.OrderID] = struct{}{}
			_ = m.moveLocked(domain.CheckoutStateAddressSelection)
			return nil, fmt.Errorf("record checkout intent: %w", err)
		}
	}

	m.intent = intent
	if err := m.moveLocked(domain.CheckoutStatePayment); err != nil {
		return nil, err
	}
	m.log.InfoContext(ctx, "checkout intent created",
		"session_id", m.sessionID, "order_id", intent.OrderID, "expires_at", intent.ExpiresAt)

	cp := *intent
	return &cp, nil
}

// Pay consumes the intent with one payment attempt. Whatever the outcome,
// the order id is never submitted again.
func (m *Machine) Pay(ctx context.Context, method domain.PaymentMethod) (*domain.OrderConfirmation, error) {
	if !method.Valid() {
		return nil, &domain.ValidationError{Fields: map[string]string{"paymentMethod": "Please choose a payment method"}}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expireLocked(ctx) {
		return nil, domain.ErrSessionExpired
	}
	if m.state != domain.CheckoutStatePayment || m.intent == nil {
		return nil, fmt.Errorf("pay in state %s: %w", m.state, domain.ErrIllegalTransition)
	}

	intent := m.intent
	now := m.now()
	if m.ledger != nil {
		if err := m.ledger.ConsumeIntent(ctx, intent.OrderID, now); err != nil {
			if errors.Is(err, domain.ErrIntentUnavailable) {
				m.invalidateLocked(ctx, "intent no longer payable")
				return nil, domain.ErrSessionExpired
			}
			return nil, fmt.Errorf("consume checkout intent: %w", err)
		}
	}
	m.spent[intent.OrderID] = struct{}{}
	intent.Consumed = true

	message, err := m.orders.SubmitPayment(ctx, intent.OrderID, method)
	if err != nil {
		m.message = domain.UserMessage(err)
		_ = m.moveLocked(domain.CheckoutStateFailure)
		m.record(ctx, intent, domain.IntentStatusFailed, domain.EventCheckoutFailed, err.Error())
		return nil, err
	}

	m.confirmation = &domain.OrderConfirmation{
		OrderID:           intent.OrderID,
		Amount:            intent.Amount,
		PaymentMethod:     method.DisplayName(),
		Message:           message,
		EstimatedDelivery: now.Add(domain.DeliveryEstimate),
	}
	m.message = message
	_ = m.moveLocked(domain.CheckoutStateSuccess)
	m.record(ctx, intent, domain.IntentStatusPaid, domain.EventCheckoutSucceeded, "")

	cp := *m.confirmation
	return &cp, nil
}

// Remaining is the time left to pay, or zero outside of payment.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remainingLocked()
}

// Expire closes the payment window if it has run out and reports whether it
// did.
func (m *Machine) Expire(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expireLocked(ctx)
}

// Restart abandons the current attempt and returns to address selection.
// The selected address is kept.
func (m *Machine) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.intent != nil && !m.intent.Consumed {
		m.spent[m.intent.OrderID] = struct{}{}
	}
	m.intent = nil
	m.confirmation = nil
	m.message = ""
	m.state = domain.CheckoutStateAddressSelection
	m.metrics.CheckoutTransition(m.state.String())
}

// Spent reports whether orderID was consumed or abandoned by this machine.
func (m *Machine) Spent(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.spent[orderID]
	return ok
}

func (m *Machine) expireLocked(ctx context.Context) bool {
	if m.state != domain.CheckoutStatePayment || m.intent == nil {
		return false
	}
	if !m.intent.ExpiredAt(m.now()) {
		return false
	}
	m.invalidateLocked(ctx, "payment window elapsed")
	return true
}

func (m *Machine) invalidateLocked(ctx context.Context, reason string) {
	intent := m.intent
	m.spent[intent.OrderID] = struct{}{}
	m.intent = nil
	m.message = domain.UserMessage(domain.ErrSessionExpired)
	_ = m.moveLocked(domain.CheckoutStateAddressSelection)
	m.log.InfoContext(ctx, "checkout intent expired", "session_id", m.sessionID, "order_id", intent.OrderID, "reason", reason)

	if m.ledger == nil || intent.Consumed {
		return
	}
	event := m.event(intent, domain.EventCheckoutExpired, reason)
	if err := m.ledger.ExpireIntent(ctx, intent.OrderID, event); err != nil && !errors.Is(err, domain.ErrIntentUnavailable) {
		m.log.WarnContext(ctx, "failed to expire intent in ledger", "order_id", intent.OrderID, "error", err)
	}
}

func (m *Machine) record(ctx context.Context, intent *domain.CheckoutIntent, status domain.IntentStatus, eventType, reason string) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.CompleteIntent(ctx, intent.OrderID, status, m.event(intent, eventType, reason)); err != nil {
		m.log.ErrorContext(ctx, "failed to record checkout outcome", "order_id", intent.OrderID, "status", status, "error", err)
	}
}

func (m *Machine) event(intent *domain.CheckoutIntent, eventType, reason string) *domain.CheckoutEvent {
	return &domain.CheckoutEvent{
		Type:      eventType,
		OrderID:   intent.OrderID,
		UserID:    m.userID,
		SessionID: m.sessionID,
		Amount:    intent.Amount,
		Reason:    reason,
		At:        m.now(),
	}
}

func (m *Machine) moveLocked(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(m.state, to) {
		return fmt.Errorf("%s -> %s: %w", m.state, to, domain.ErrIllegalTransition)
	}
	m.state = to
	m.metrics.CheckoutTransition(to.String())
	return nil
}

func (m *Machine) remainingLocked() time.Duration {
	if m.state != domain.CheckoutStatePayment || m.intent == nil {
		return 0
	}
	return max(0, m.intent.ExpiresAt.Sub(m.now()))
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     m.state,
		Remaining: int64(m.remainingLocked().Seconds()),
		Message:   m.message,
	}
	if m.address != nil {
		a := *m.address
		s.Address = &a
	}
	if m.intent != nil {
		amount := m.intent.Amount
		expires := m.intent.ExpiresAt
		s.OrderID = m.intent.OrderID
		s.Amount = &amount
		s.ExpiresAt = &expires
	}
	if m.confirmation != nil {
		c := *m.confirmation
		s.Confirmation = &c
		s.OrderID = c.OrderID
	}
	return s
}
