package domain

import "github.com/shopspring/decimal"

// WishlistItem is a saved product. At most one item per product.
type WishlistItem struct {
	ProductID string          `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

func NewWishlistItem(p Product) WishlistItem {
	return WishlistItem{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price(),
		Image:     p.ThumbnailImage,
	}
}
