package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutOptions are the buyer's choices sent with intent creation.
type CheckoutOptions struct {
	CouponCode        string          `json:"couponCode,omitempty"`
	CouponDiscount    decimal.Decimal `json:"couponDiscount"`
	WalletPointsToUse int64           `json:"walletPointsToUse"`
}

// IntentRequest is the body sent to the order service to open a checkout intent.
type IntentRequest struct {
	AddressID         string          `json:"addressId"`
	CouponCode        string          `json:"couponCode,omitempty"`
	CouponDiscount    decimal.Decimal `json:"couponDiscount"`
	WalletPointsToUse int64           `json:"walletPointsToUse"`
}

// CheckoutIntent is a server-issued, time-bounded pending order. It is consumed
// by exactly one payment attempt.
type CheckoutIntent struct {
	OrderID          string          `json:"orderId"`
	AddressID        string          `json:"addressId"`
	CouponCode       string          `json:"couponCode,omitempty"`
	WalletPointsUsed int64           `json:"walletPointsUsed"`
	Amount           decimal.Decimal `json:"amount"`
	CreatedAt        time.Time       `json:"createdAt"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	Consumed         bool            `json:"consumed"`
}

func (i *CheckoutIntent) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "COD"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodUPI  PaymentMethod = "UPI"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI:
		return true
	}
	return false
}

func (m PaymentMethod) DisplayName() string {
	if m == PaymentMethodCOD {
		return "Cash on Delivery"
	}
	return string(m)
}

// DeliveryEstimate is added to the placement time for the confirmation view.
const DeliveryEstimate = 5 * 24 * time.Hour

// OrderConfirmation is shown after a successful payment.
type OrderConfirmation struct {
	OrderID           string          `json:"orderId"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentMethod     string          `json:"paymentMethod"`
	Message           string          `json:"message,omitempty"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
}

// CheckoutEvent is published when a checkout attempt reaches a terminal state.
type CheckoutEvent struct {
	Type      string          `json:"type"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	At        time.Time       `json:"at"`
}

const (
	EventCheckoutSucceeded = "CHECKOUT_SUCCEEDED"
	EventCheckoutFailed    = "CHECKOUT_FAILED"
	EventCheckoutExpired   = "CHECKOUT_EXPIRED"
)
