package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderItem struct {
	ProductID    string          `json:"productId"`
	ProductTitle string          `json:"productTitle"`
	Size         string          `json:"size"`
	Color        string          `json:"color"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

type Order struct {
	ID            string          `json:"orderId"`
	Status        string          `json:"status"`
	Items         []OrderItem     `json:"items"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Address       *Address        `json:"address,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
