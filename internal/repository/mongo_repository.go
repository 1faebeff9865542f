package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection(cartsCollection),
		now:        time.Now,
	}
}

func (m *mongoRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"user_id": userID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

// AppendItems pushes items to the end of the user's cart, creating the cart when it does not exist.
// Items with the same product are kept as separate lines.
func (m *mongoRepository) AppendItems(ctx context.Context, userID string, items ...domain.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	now := m.now()

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$push":        bson.M{"items": bson.M{"$each": items}},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// lost a concurrent upsert for the same user; the cart exists now
		_, err = m.collection.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to append items: %w", err)
	}
	return nil
}

// PatchItems applies the patch to every line holding productID.
// An empty patch only bumps updated_at.
func (m *mongoRepository) PatchItems(ctx context.Context, userID, productID string, patch domain.ItemPatch) error {
	set := bson.M{"updated_at": m.now()}
	if patch.Quantity != nil {
		set["items.$[elem].quantity"] = *patch.Quantity
	}
	if patch.Size != nil {
		set["items.$[elem].size"] = *patch.Size
	}
	if patch.CustomSize != nil {
		set["items.$[elem].custom_size"] = patch.CustomSize
	}

	filter := bson.M{"user_id": userID}
	update := bson.M{"$set": set}
	opts := options.Update()
	// mongo rejects an array filter whose identifier no update path uses
	if !patch.IsEmpty() {
		opts.SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": productID},
			},
		})
	}

	result, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to update items: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, userID, productID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$pull": bson.M{
			"items": bson.M{"product_id": productID},
		},
		"$set": bson.M{"updated_at": m.now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrCartNotFound
	}

	return nil
}

// ClearItems empties the cart but keeps the document.
func (m *mongoRepository) ClearItems(ctx context.Context, userID string) error {
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"items":      []domain.CartItem{},
			"updated_at": m.now(),
		},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	if result.MatchedCount == 0 {
		return domain.ErrCartNotFound
	}

	return nil
}
