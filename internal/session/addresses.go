package session

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/fjod/storefront/domain"
)

// Addresses returns the saved addresses, fetching them on first use or when
// refresh is set.
func (s *Session) Addresses(ctx context.Context, refresh bool) ([]domain.Address, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	s.mu.Lock()
	if s.loaded && !refresh {
		out := slices.Clone(s.addresses)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	addresses, err := s.deps.Auth.ListAddresses(s.Context(ctx))
	if err != nil {
		return nil, err
	}
	s.setAddresses(addresses)
	return slices.Clone(addresses), nil
}

func (s *Session) setAddresses(addresses []domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses = slices.Clone(addresses)
	s.loaded = true
}

// editAddresses applies a successful server change to the cached list. A list
// that was never fetched stays unloaded so the next read sees every saved
// address.
func (s *Session) editAddresses(edit func([]domain.Address) []domain.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return
	}
	s.addresses = edit(slices.Clone(s.addresses))
}

func normalizeAddress(addr domain.Address) domain.Address {
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Street = strings.TrimSpace(addr.Street)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.Pincode = strings.TrimSpace(addr.Pincode)
	return addr
}

func (s *Session) AddAddress(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	addr = normalizeAddress(addr)
	addr.ID = ""
	if err := s.validate(addr); err != nil {
		return nil, err
	}

	created, err := s.deps.Auth.AddAddress(s.Context(ctx), addr)
	if err != nil {
		return nil, err
	}

	s.editAddresses(func(list []domain.Address) []domain.Address {
		list = append(list, *created)
		if created.IsDefault {
			list = domain.SetDefault(list, created.ID)
		}
		return list
	})
	return created, nil
}

func (s *Session) UpdateAddress(ctx context.Context, addr domain.Address) (*domain.Address, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if addr.ID == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	addr = normalizeAddress(addr)
	if err := s.validate(addr); err != nil {
		return nil, err
	}

	updated, err := s.deps.Auth.UpdateAddress(s.Context(ctx), addr)
	if err != nil {
		return nil, err
	}

	s.editAddresses(func(list []domain.Address) []domain.Address {
		if i := slices.IndexFunc(list, func(a domain.Address) bool { return a.ID == updated.ID }); i >= 0 {
			list[i] = *updated
		} else {
			list = append(list, *updated)
		}
		if updated.IsDefault {
			list = domain.SetDefault(list, updated.ID)
		}
		return list
	})
	return updated, nil
}

func (s *Session) DeleteAddress(ctx context.Context, id string) error {
	if !s.Authenticated() {
		return domain.ErrUnauthorized
	}
	if err := s.deps.Auth.DeleteAddress(s.Context(ctx), id); err != nil {
		return err
	}
	s.editAddresses(func(list []domain.Address) []domain.Address {
		return slices.DeleteFunc(list, func(a domain.Address) bool { return a.ID == id })
	})
	return nil
}

// SetDefaultAddress makes id the only default. The local list changes only
// after the user service accepts it.
func (s *Session) SetDefaultAddress(ctx context.Context, id string) ([]domain.Address, error) {
	if !s.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	list, err := s.Addresses(ctx, false)
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(list, func(a domain.Address) bool { return a.ID == id }) {
		return nil, fmt.Errorf("address %s: %w", id, domain.ErrNotFound)
	}
	if err := s.deps.Auth.SetDefaultAddress(s.Context(ctx), id); err != nil {
		return nil, err
	}
	list = domain.SetDefault(list, id)
	s.setAddresses(list)
	return slices.Clone(list), nil
}
