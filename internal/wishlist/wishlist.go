// Package wishlist keeps the saved products of a session. Items survive login
// and logout and are persisted by session id like guest cart lines.
package wishlist

import (
	"slices"
	"sync"

	"github.com/fjod/storefront/domain"
)

// Add appends item unless its product is already saved. It reports whether
// the list changed.
func Add(items []domain.WishlistItem, item domain.WishlistItem) ([]domain.WishlistItem, bool) {
	if Contains(items, item.ProductID) {
		return items, false
	}
	return append(slices.Clone(items), item), true
}

// Remove drops productID; an absent product is a no-op.
func Remove(items []domain.WishlistItem, productID string) ([]domain.WishlistItem, bool) {
	if !Contains(items, productID) {
		return items, false
	}
	return slices.DeleteFunc(slices.Clone(items), func(i domain.WishlistItem) bool {
		return i.ProductID == productID
	}), true
}

func Contains(items []domain.WishlistItem, productID string) bool {
	return slices.ContainsFunc(items, func(i domain.WishlistItem) bool {
		return i.ProductID == productID
	})
}

type Store struct {
	mu    sync.RWMutex
	items []domain.WishlistItem
}

func NewStore(items []domain.WishlistItem) *Store {
	return &Store{items: slices.Clone(items)}
}

func (s *Store) Add(item domain.WishlistItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed bool
	s.items, changed = Add(s.items, item)
	return changed
}

func (s *Store) Remove(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed bool
	s.items, changed = Remove(s.items, productID)
	return changed
}

func (s *Store) Contains(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Contains(s.items, productID)
}

// Items returns a copy in insertion order.
func (s *Store) Items() []domain.WishlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.items == nil {
		return []domain.WishlistItem{}
	}
	return slices.Clone(s.items)
}
