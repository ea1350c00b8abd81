package session

import (
	"context"
	"strings"

	"github.com/fjod/storefront/domain"
)

// Wishlist returns the saved products in the order they were added.
func (s *Session) Wishlist() []domain.WishlistItem {
	return s.wishlist.Items()
}

func (s *Session) InWishlist(productID string) bool {
	return s.wishlist.Contains(productID)
}

// AddToWishlist saves a product. Title and price are taken from the catalog.
// Saving a product twice keeps one entry.
func (s *Session) AddToWishlist(ctx context.Context, productID string) ([]domain.WishlistItem, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"productId": "is required"}}
	}
	if s.wishlist.Contains(productID) {
		return s.wishlist.Items(), nil
	}
	product, err := s.deps.Catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	item := domain.NewWishlistItem(*product)
	item.ProductID = productID
	if s.wishlist.Add(item) {
		s.persistWishlist(ctx)
	}
	return s.wishlist.Items(), nil
}

func (s *Session) RemoveFromWishlist(ctx context.Context, productID string) []domain.WishlistItem {
	if s.wishlist.Remove(productID) {
		s.persistWishlist(ctx)
	}
	return s.wishlist.Items()
}

func (s *Session) persistWishlist(ctx context.Context) {
	if s.deps.Wishlists == nil {
		return
	}
	if err := s.deps.Wishlists.Save(ctx, s.id, s.wishlist.Items()); err != nil {
		s.log.WarnContext(ctx, "failed to persist wishlist", "error", err)
	}
}
