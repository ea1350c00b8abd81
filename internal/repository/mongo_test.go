package repository

import (
	"context"
	"testing"

	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupMongoDB(t *testing.T) (*mongo.Database, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return db, cleanup
}

func setupTestMongo(t *testing.T) (*LocalCartRepository, func()) {
	db, cleanup := setupMongoDB(t)
	repo := NewLocalCartRepository(db)
	require.NoError(t, repo.CreateIndexes(context.Background()))
	return repo, cleanup
}

func TestLocalCart_LoadNotFound(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	lines, err := repo.Load(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, lines)
}

func TestLocalCart_SaveAndLoad(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	lines := []domain.CartLineItem{
		{ProductID: "p1", Size: "M", Color: "red", Title: "Tee", UnitPrice: decimal.RequireFromString("499.50"), Quantity: 2},
		{ProductID: "p2", Size: "L", Color: domain.DefaultColor, UnitPrice: decimal.NewFromInt(100), Quantity: 1},
	}
	require.NoError(t, repo.Save(ctx, "sess-1", lines))

	got, err := repo.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Tee", got[0].Title)
	assert.Equal(t, 2, got[0].Quantity)
	assert.True(t, decimal.RequireFromString("499.50").Equal(got[0].UnitPrice))
}

func TestLocalCart_SaveReplaces(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "sess-1", []domain.CartLineItem{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}))
	require.NoError(t, repo.Save(ctx, "sess-1", []domain.CartLineItem{{ProductID: "p2", Quantity: 3, UnitPrice: decimal.NewFromInt(1)}}))

	got, err := repo.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].ProductID)
}

func TestLocalCart_SaveEmptyDeletes(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "sess-1", []domain.CartLineItem{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}))
	require.NoError(t, repo.Save(ctx, "sess-1", nil))

	_, err := repo.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.NoError(t, repo.Delete(ctx, "never-saved"))
}

func TestWishlist_SaveLoadAndDelete(t *testing.T) {
	db, cleanup := setupMongoDB(t)
	defer cleanup()
	ctx := context.Background()
	repo := NewWishlistRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	_, err := repo.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrWishlistNotFound)

	items := []domain.WishlistItem{
		{ProductID: "p1", Title: "Tee", Price: decimal.RequireFromString("499.50"), Image: "tee.jpg"},
		{ProductID: "p2", Title: "Cap", Price: decimal.NewFromInt(199)},
	}
	require.NoError(t, repo.Save(ctx, "sess-1", items))

	got, err := repo.Load(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ProductID)
	assert.True(t, decimal.RequireFromString("499.50").Equal(got[0].Price))

	require.NoError(t, repo.Save(ctx, "sess-1", nil))
	_, err = repo.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrWishlistNotFound)
}
