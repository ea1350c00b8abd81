package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrWishlistNotFound = errors.New("wishlist not found")

type wishlistEntry struct {
	ProductID string `bson:"product_id"`
	Title     string `bson:"title"`
	Price     string `bson:"price"`
	Image     string `bson:"image"`
}

type wishlistDoc struct {
	SessionID string          `bson:"session_id"`
	Items     []wishlistEntry `bson:"items"`
	UpdatedAt time.Time       `bson:"updated_at"`
}

// WishlistRepository persists session wishlists in the wishlists
// collection. Expiry follows the guest cart TTL.
type WishlistRepository struct {
	collection *mongo.Collection
}

func NewWishlistRepository(db *mongo.Database) *WishlistRepository {
	return &WishlistRepository{collection: db.Collection("wishlists")}
}

func (m *WishlistRepository) Load(ctx context.Context, sessionID string) ([]domain.WishlistItem, error) {
	var doc wishlistDoc
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrWishlistNotFound
		}
		return nil, fmt.Errorf("failed to get wishlist: %w", err)
	}

	items := make([]domain.WishlistItem, 0, len(doc.Items))
	for _, e := range doc.Items {
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("decode price of %s: %w", e.ProductID, err)
		}
		items = append(items, domain.WishlistItem{
			ProductID: e.ProductID,
			Title:     e.Title,
			Price:     price,
			Image:     e.Image,
		})
	}
	return items, nil
}

// Save replaces the stored wishlist; an empty list deletes the document.
func (m *WishlistRepository) Save(ctx context.Context, sessionID string, items []domain.WishlistItem) error {
	if len(items) == 0 {
		if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
			return fmt.Errorf("failed to delete wishlist: %w", err)
		}
		return nil
	}

	doc := wishlistDoc{SessionID: sessionID, UpdatedAt: time.Now(), Items: make([]wishlistEntry, 0, len(items))}
	for _, i := range items {
		doc.Items = append(doc.Items, wishlistEntry{
			ProductID: i.ProductID,
			Title:     i.Title,
			Price:     i.Price.String(),
			Image:     i.Image,
		})
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.collection.UpdateOne(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": doc}, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert wishlist: %w", err)
	}
	return nil
}

func (m *WishlistRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(guestCartTTL.Seconds())),
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create wishlist indexes: %w", err)
	}
	return nil
}
