package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	cartsCollection    = "carts"
	usersCollection    = "users"
	productsCollection = "products"
	insightsCollection = "insights"
)

// ConnectMongoDB opens a client, verifies it against the primary and returns the named database.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("unimart-cart-service").
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// EnsureIndexes creates the indexes every repository relies on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := func(key string) mongo.IndexModel {
		return mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
	}

	if _, err := db.Collection(cartsCollection).Indexes().CreateOne(ctx, unique("user_id")); err != nil {
		return fmt.Errorf("failed to create carts index: %w", err)
	}
	if _, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, unique("subject")); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	if _, err := db.Collection(insightsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "metric", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create insights index: %w", err)
	}

	return nil
}
