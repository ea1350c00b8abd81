package cache

import (
	"context"
	"errors"

	"github.com/fjod/storefront/domain"
)

// SnapshotCache keeps the last server cart seen for a user so the view can
// fall back to it when the cart service is unreachable.
type SnapshotCache interface {
	Get(ctx context.Context, userID string) (*domain.ServerCart, error)
	Set(ctx context.Context, userID string, cart *domain.ServerCart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
