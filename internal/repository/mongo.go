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

var ErrCartNotFound = errors.New("local cart not found")

// guestCartTTL bounds how long an abandoned guest cart is kept.
const guestCartTTL = 30 * 24 * time.Hour

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type localLine struct {
	ProductID string `bson:"product_id"`
	Size      string `bson:"size"`
	Color     string `bson:"color"`
	Title     string `bson:"title"`
	UnitPrice string `bson:"unit_price"`
	ImageRef  string `bson:"image_ref"`
	Quantity  int    `bson:"quantity"`
	ItemID    string `bson:"item_id,omitempty"`
}

type localCart struct {
	SessionID string      `bson:"session_id"`
	Lines     []localLine `bson:"lines"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

// LocalCartRepository persists the optimistic lines of guest sessions, keyed
// by session id.
type LocalCartRepository struct {
	collection *mongo.Collection
}

func NewLocalCartRepository(db *mongo.Database) *LocalCartRepository {
	return &LocalCartRepository{collection: db.Collection("local_carts")}
}

func (m *LocalCartRepository) Load(ctx context.Context, sessionID string) ([]domain.CartLineItem, error) {
	var doc localCart
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get local cart: %w", err)
	}

	lines := make([]domain.CartLineItem, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("decode unit price of %s: %w", l.ProductID, err)
		}
		lines = append(lines, domain.CartLineItem{
			ProductID: l.ProductID,
			Size:      l.Size,
			Color:     l.Color,
			Title:     l.Title,
			UnitPrice: price,
			ImageRef:  l.ImageRef,
			Quantity:  l.Quantity,
			ItemID:    l.ItemID,
		})
	}
	return lines, nil
}

// Save replaces the stored lines of a session. Saving no lines deletes the
// document.
func (m *LocalCartRepository) Save(ctx context.Context, sessionID string, lines []domain.CartLineItem) error {
	if len(lines) == 0 {
		return m.Delete(ctx, sessionID)
	}

	doc := localCart{SessionID: sessionID, UpdatedAt: time.Now(), Lines: make([]localLine, 0, len(lines))}
	for _, l := range lines {
		doc.Lines = append(doc.Lines, localLine{
			ProductID: l.ProductID,
			Size:      l.Size,
			Color:     l.Color,
			Title:     l.Title,
			UnitPrice: l.UnitPrice.String(),
			ImageRef:  l.ImageRef,
			Quantity:  l.Quantity,
			ItemID:    l.ItemID,
		})
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.collection.UpdateOne(ctx, bson.M{"session_id": sessionID}, bson.M{"$set": doc}, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert local cart: %w", err)
	}
	return nil
}

func (m *LocalCartRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete local cart: %w", err)
	}
	return nil
}

func (m *LocalCartRepository) CreateIndexes(ctx context.Context) error {
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
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
