package repository

import (
	"context"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
)

// CartRepository defines the cart persistence operations.
// Every mutation is a single server-side update so concurrent writers never overwrite each other's items.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AppendItems(ctx context.Context, userID string, items ...domain.CartItem) error
	PatchItems(ctx context.Context, userID, productID string, patch domain.ItemPatch) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearItems(ctx context.Context, userID string) error
}

type UserRepository interface {
	FindBySubject(ctx context.Context, subject string) (*domain.User, error)
}

type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type InsightRepository interface {
	Record(ctx context.Context, insight domain.Insight) error
}
