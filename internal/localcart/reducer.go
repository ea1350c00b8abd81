// Package localcart holds the optimistic, client-side cart. Mutations are pure
// functions over a slice of lines; Store serializes them for one session.
package localcart

import (
	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
)

// DefaultMaxQuantity is the per-line cap observed in the storefront.
const DefaultMaxQuantity = 5

type Policy struct {
	MaxQuantity int
}

func DefaultPolicy() Policy {
	return Policy{MaxQuantity: DefaultMaxQuantity}
}

func (p Policy) limitError() error {
	return &domain.QuantityLimitError{Max: p.MaxQuantity}
}

func indexOf(lines []domain.CartLineItem, key domain.LineKey) int {
	for i, line := range lines {
		if line.Key() == key {
			return i
		}
	}
	return -1
}

func clone(lines []domain.CartLineItem) []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(lines))
	copy(out, lines)
	return out
}

// AddItem merges into the line for (product, size, color) or appends a new
// line with quantity 1. A line already at the cap is left as is and the
// limit error is returned with the unchanged lines.
func AddItem(lines []domain.CartLineItem, product domain.Product, size, color string, policy Policy) ([]domain.CartLineItem, error) {
	if color == "" {
		color = domain.DefaultColor
	}
	key := domain.LineKey{ProductID: product.ID, Size: size, Color: color}

	if i := indexOf(lines, key); i >= 0 {
		if lines[i].Quantity >= policy.MaxQuantity {
			return lines, policy.limitError()
		}
		out := clone(lines)
		out[i].Quantity++
		return out, nil
	}

	return append(clone(lines), domain.CartLineItem{
		ProductID: product.ID,
		Size:      size,
		Color:     color,
		Title:     product.Title,
		UnitPrice: product.Price(),
		ImageRef:  product.ImageFor(size, color),
		Quantity:  1,
	}), nil
}

// RemoveItem drops the line for key. A missing line is not an error.
func RemoveItem(lines []domain.CartLineItem, key domain.LineKey) []domain.CartLineItem {
	out := make([]domain.CartLineItem, 0, len(lines))
	for _, line := range lines {
		if line.Key() != key {
			out = append(out, line)
		}
	}
	return out
}

// UpdateQuantity sets the quantity of the line for key. Quantities below 1
// remove the line; quantities above the cap are rejected without any change.
func UpdateQuantity(lines []domain.CartLineItem, key domain.LineKey, quantity int, policy Policy) ([]domain.CartLineItem, error) {
	if quantity < 1 {
		return RemoveItem(lines, key), nil
	}
	if quantity > policy.MaxQuantity {
		return lines, policy.limitError()
	}
	i := indexOf(lines, key)
	if i < 0 {
		return lines, nil
	}
	out := clone(lines)
	out[i].Quantity = quantity
	return out, nil
}

// Total folds unit price times quantity. Only meaningful for carts that have
// never been priced by the server.
func Total(lines []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
