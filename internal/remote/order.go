package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
)

// IdempotencyKeyHeader lets the order service collapse a resubmitted intent
// request into the original one.
const IdempotencyKeyHeader = "Idempotency-Key"

type OrderClient struct {
	*Client
}

func NewOrderClient(opts Options) *OrderClient {
	if opts.Service == "" {
		opts.Service = "order"
	}
	return &OrderClient{Client: NewClient(opts)}
}

type intentResponse struct {
	OrderID     string          `json:"orderId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ExpiresAt   *time.Time      `json:"expiresAt"`
}

type paymentRequest struct {
	OrderID       string               `json:"orderId"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

// CreateIntent opens a pending order for the current server cart. ExpiresAt
// is zero when the service does not report one.
func (c *OrderClient) CreateIntent(ctx context.Context, req domain.IntentRequest, idempotencyKey string) (*domain.CheckoutIntent, error) {
	var resp intentResponse
	cl := call{
		op:     "create_intent",
		method: http.MethodPost,
		path:   "/order/check/checkout",
		body:   req,
		out:    &resp,
	}
	if idempotencyKey != "" {
		cl.headers = map[string]string{IdempotencyKeyHeader: idempotencyKey}
	}
	if _, err := c.do(ctx, cl); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, &domain.ServiceError{Service: c.service, Status: http.StatusOK, Message: "Order ID not found. Please try again."}
	}

	intent := &domain.CheckoutIntent{
		OrderID:          resp.OrderID,
		AddressID:        req.AddressID,
		CouponCode:       req.CouponCode,
		WalletPointsUsed: req.WalletPointsToUse,
		Amount:           resp.TotalAmount,
	}
	if resp.ExpiresAt != nil {
		intent.ExpiresAt = *resp.ExpiresAt
	}
	return intent, nil
}

// SubmitPayment pays a pending order and returns the service's message.
func (c *OrderClient) SubmitPayment(ctx context.Context, orderID string, method domain.PaymentMethod) (string, error) {
	return c.do(ctx, call{
		op:     "submit_payment",
		method: http.MethodPost,
		path:   "/order/check/payment",
		body:   paymentRequest{OrderID: orderID, PaymentMethod: method},
	})
}

func (c *OrderClient) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if _, err := c.do(ctx, call{op: "list_orders", method: http.MethodGet, path: "/order/check/order_item", out: &orders}); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	_, err := c.do(ctx, call{
		op:     "get_order",
		method: http.MethodGet,
		path:   "/order/check/order_item_details/" + url.PathEscape(orderID),
		out:    &order,
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}
