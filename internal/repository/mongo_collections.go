package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{collection: db.Collection(productsCollection)}
}

func (m *mongoProductRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product

	// only the fields the cart reads
	opts := options.FindOne().SetProjection(bson.M{
		"name":       1,
		"price":      1,
		"image_urls": 1,
		"stock":      1,
	})
	err := m.collection.FindOne(ctx, productIDFilter(id), opts).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// productIDFilter matches a string _id, and also an ObjectID _id when id is its hex form.
func productIDFilter(id string) bson.M {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return bson.M{"_id": id}
	}
	return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
}

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{collection: db.Collection(usersCollection)}
}

func (m *mongoUserRepository) FindBySubject(ctx context.Context, subject string) (*domain.User, error) {
	var user domain.User

	err := m.collection.FindOne(ctx, bson.M{"subject": subject}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

type mongoInsightRepository struct {
	collection *mongo.Collection
}

func NewMongoInsightRepository(db *mongo.Database) InsightRepository {
	return &mongoInsightRepository{collection: db.Collection(insightsCollection)}
}

func (m *mongoInsightRepository) Record(ctx context.Context, insight domain.Insight) error {
	if _, err := m.collection.InsertOne(ctx, insight); err != nil {
		return fmt.Errorf("failed to record insight: %w", err)
	}
	return nil
}
