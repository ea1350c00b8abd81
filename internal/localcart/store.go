package localcart

import (
	"sync"

	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu     sync.RWMutex
	lines  []domain.CartLineItem
	policy Policy
}

func NewStore(policy Policy, lines []domain.CartLineItem) *Store {
	if policy.MaxQuantity <= 0 {
		policy = DefaultPolicy()
	}
	return &Store{
		lines:  clone(lines),
		policy: policy,
	}
}

func (s *Store) Policy() Policy {
	return s.policy
}

func (s *Store) AddItem(product domain.Product, size, color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, err := AddItem(s.lines, product, size, color, s.policy)
	s.lines = lines
	return err
}

func (s *Store) RemoveItem(key domain.LineKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = RemoveItem(s.lines, key)
}

func (s *Store) UpdateQuantity(key domain.LineKey, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, err := UpdateQuantity(s.lines, key, quantity, s.policy)
	s.lines = lines
	return err
}

func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.lines)
}

// Lines returns a copy of the current lines.
func (s *Store) Lines() []domain.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.lines)
}

// Replace overwrites the lines, used when reconciling with a server cart.
func (s *Store) Replace(lines []domain.CartLineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = clone(lines)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}
