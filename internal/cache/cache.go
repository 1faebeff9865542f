package cache

import (
	"context"
	"errors"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
)

// CartCache holds raw user carts between mutations.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

// GuestStore keeps anonymous carts keyed by a caller-supplied guest id.
// Lists expire after a period of inactivity.
type GuestStore interface {
	// Append adds items to the end of the guest list and returns the list after the append.
	Append(ctx context.Context, guestID string, items ...domain.CartItem) ([]domain.CartItem, error)
	// Items returns the guest list without removing it. Unknown ids yield an empty list.
	Items(ctx context.Context, guestID string) ([]domain.CartItem, error)
	// Drain atomically returns and deletes the guest list.
	Drain(ctx context.Context, guestID string) ([]domain.CartItem, error)
}

var ErrCacheMiss = errors.New("cache miss")
