package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultColor is used when a product is added without a colour selection.
const DefaultColor = "default"

// LineKey identifies a distinct purchasable SKU in the local cart.
type LineKey struct {
	ProductID string
	Size      string
	Color     string
}

func (k LineKey) String() string {
	return k.ProductID + ":" + k.Size + ":" + k.Color
}

// ParseLineKey is the inverse of LineKey.String.
func ParseLineKey(s string) (LineKey, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" {
		return LineKey{}, fmt.Errorf("malformed line key %q", s)
	}
	return LineKey{ProductID: parts[0], Size: parts[1], Color: parts[2]}, nil
}

// CartLineItem is an optimistic, client-held cart line.
type CartLineItem struct {
	ProductID string          `json:"productId"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	ImageRef  string          `json:"imageRef"`
	Quantity  int             `json:"quantity"`
	// ItemID is set once the line has been reconciled with a server cart item.
	ItemID string `json:"itemId,omitempty"`
}

func (l CartLineItem) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type PriceSnapshot struct {
	BasePrice    decimal.Decimal `json:"basePrice"`
	SellingPrice decimal.Decimal `json:"sellingPrice"`
}

// ServerCartItem is a cart line as owned by the remote cart service.
// PriceSnapshot is captured when the item was added and never tracks later
// price changes.
type ServerCartItem struct {
	ItemID        string        `json:"itemId"`
	ProductID     string        `json:"productId"`
	VariantID     string        `json:"variantId"`
	ProductTitle  string        `json:"productTitle"`
	ProductImage  string        `json:"productImage"`
	Color         string        `json:"color"`
	Size          string        `json:"size"`
	Quantity      int           `json:"quantity"`
	PriceSnapshot PriceSnapshot `json:"priceSnapshot"`
}

// PricingSummary is computed by the cart service. FinalAmount must never be
// recomputed from line prices on this side.
type PricingSummary struct {
	BaseTotal      decimal.Decimal `json:"baseTotal"`
	Savings        decimal.Decimal `json:"savings"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

type ServerCart struct {
	Items          []ServerCartItem `json:"items"`
	ItemCount      int              `json:"itemCount"`
	PricingSummary PricingSummary   `json:"pricingSummary"`
}

func (c *ServerCart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// FindItem returns the server item with the given id.
func (c *ServerCart) FindItem(itemID string) (ServerCartItem, bool) {
	if c == nil {
		return ServerCartItem{}, false
	}
	for _, item := range c.Items {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return ServerCartItem{}, false
}

// LineItems converts the server items into local lines, using the selling
// price captured at add time as the unit price.
func (c *ServerCart) LineItems() []CartLineItem {
	if c == nil {
		return nil
	}
	lines := make([]CartLineItem, 0, len(c.Items))
	for _, item := range c.Items {
		color := item.Color
		if color == "" {
			color = DefaultColor
		}
		lines = append(lines, CartLineItem{
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     color,
			Title:     item.ProductTitle,
			UnitPrice: item.PriceSnapshot.SellingPrice,
			ImageRef:  item.ProductImage,
			Quantity:  item.Quantity,
			ItemID:    item.ItemID,
		})
	}
	return lines
}
