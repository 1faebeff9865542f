package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupTestDB(t *testing.T) (*mongo.Database, func()) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	// Start MongoDB container
	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))

	cleanup := func() {
		_ = db.Client().Disconnect(ctx)
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return db, cleanup
}

func TestGetCart_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)

	cart, err := repo.GetCart(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, domain.ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestAppendItems_CreatesCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	item := domain.CartItem{ProductID: "p1", Quantity: 3, Size: "M"}
	require.NoError(t, repo.AppendItems(ctx, "user123", item))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", cart.UserID)
	assert.Equal(t, []domain.CartItem{item}, cart.Items)
	assert.False(t, cart.CreatedAt.IsZero())
	assert.False(t, cart.UpdatedAt.IsZero())
}

func TestAppendItems_SameProductTwiceKeepsTwoLines(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	item := domain.CartItem{ProductID: "p1", Quantity: 2}
	require.NoError(t, repo.AppendItems(ctx, "user123", item))
	require.NoError(t, repo.AppendItems(ctx, "user123", item))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 2, cart.Items[1].Quantity)
}

func TestAppendItems_ConcurrentWritersKeepEveryItem(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	// seed so every writer hits the push path
	require.NoError(t, repo.AppendItems(ctx, "user123", domain.CartItem{ProductID: "seed", Quantity: 1}))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendItems(ctx, "user123", domain.CartItem{ProductID: "p1", Quantity: 1}))
		}()
	}
	wg.Wait()

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, writers+1)
}

func TestPatchItems_UpdatesEveryMatchingLine(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendItems(ctx, "user123",
		domain.CartItem{ProductID: "p1", Quantity: 1, Size: "S"},
		domain.CartItem{ProductID: "p2", Quantity: 7},
		domain.CartItem{ProductID: "p1", Quantity: 2, Size: "M"},
	))

	qty := 5
	require.NoError(t, repo.PatchItems(ctx, "user123", "p1", domain.ItemPatch{Quantity: &qty}))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, "S", cart.Items[0].Size)
	assert.Equal(t, 7, cart.Items[1].Quantity)
	assert.Equal(t, 5, cart.Items[2].Quantity)
	assert.Equal(t, "M", cart.Items[2].Size)
}

func TestPatchItems_CustomSize(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendItems(ctx, "user123", domain.CartItem{ProductID: "p1", Quantity: 1}))

	waist := 71.0
	require.NoError(t, repo.PatchItems(ctx, "user123", "p1", domain.ItemPatch{
		CustomSize: &domain.CustomSize{Waist: &waist, Notes: "hem 2cm"},
	}))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	require.NotNil(t, cart.Items[0].CustomSize)
	assert.Equal(t, 71.0, *cart.Items[0].CustomSize.Waist)
	assert.Equal(t, "hem 2cm", cart.Items[0].CustomSize.Notes)
}

func TestPatchItems_NoCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)

	qty := 1
	err := repo.PatchItems(context.Background(), "nobody", "p1", domain.ItemPatch{Quantity: &qty})
	assert.ErrorIs(t, err, domain.ErrCartNotFound)
}

func TestPatchItems_EmptyPatchOnlyTouchesUpdatedAt(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendItems(ctx, "user123", domain.CartItem{ProductID: "p1", Quantity: 2, Size: "M"}))
	before, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, repo.PatchItems(ctx, "user123", "p1", domain.ItemPatch{}))

	after, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	assert.ErrorIs(t, repo.PatchItems(ctx, "nobody", "p1", domain.ItemPatch{}), domain.ErrCartNotFound)
}

func TestRemoveItem_RemovesEveryMatchingLine(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendItems(ctx, "user123",
		domain.CartItem{ProductID: "p1", Quantity: 2},
		domain.CartItem{ProductID: "p2", Quantity: 3},
		domain.CartItem{ProductID: "p1", Quantity: 4},
	))

	require.NoError(t, repo.RemoveItem(ctx, "user123", "p1"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, "p2", cart.Items[0].ProductID)

	assert.ErrorIs(t, repo.RemoveItem(ctx, "nobody", "p1"), domain.ErrCartNotFound)
}

func TestClearItems_KeepsCartDocument(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.AppendItems(ctx, "user123", domain.CartItem{ProductID: "p1", Quantity: 2}))
	require.NoError(t, repo.ClearItems(ctx, "user123"))

	cart, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.NotNil(t, cart.Items)

	assert.ErrorIs(t, repo.ClearItems(ctx, "nobody"), domain.ErrCartNotFound)
}

func TestProductAndUserLookups(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := db.Collection(productsCollection).InsertOne(ctx, domain.Product{
		ID: "p1", Name: "Blazer", Price: 49.5, ImageURLs: []string{"blazer.png"}, Stock: 4,
	})
	require.NoError(t, err)
	_, err = db.Collection(usersCollection).InsertOne(ctx, domain.User{ID: "u1", Subject: "sub-1"})
	require.NoError(t, err)

	products := NewMongoProductRepository(db)
	p, err := products.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Blazer", p.Name)
	assert.Equal(t, 4, p.Stock)
	_, err = products.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	oid := primitive.NewObjectID()
	_, err = db.Collection(productsCollection).InsertOne(ctx, bson.M{
		"_id": oid, "name": "Pleated Skirt", "price": 20.5, "stock": 2,
	})
	require.NoError(t, err)
	p, err = products.GetProduct(ctx, oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Pleated Skirt", p.Name)
	assert.Equal(t, oid.Hex(), p.ID)

	users := NewMongoUserRepository(db)
	u, err := users.FindBySubject(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	_, err = users.FindBySubject(ctx, "sub-2")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestInsightRecord(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	insights := NewMongoInsightRepository(db)
	require.NoError(t, insights.Record(ctx, domain.Insight{
		Metric: domain.MetricCartUpdate, Value: 1, Timestamp: time.Now(),
	}))

	n, err := db.Collection(insightsCollection).CountDocuments(ctx, map[string]string{"metric": domain.MetricCartUpdate})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestContextCancellation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMongoRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond) // Ensure context is cancelled

	_, err := repo.GetCart(ctx, "user123")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
