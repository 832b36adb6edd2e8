package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ordbot/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrReviewNotFound = errors.New("review not found")

type Repository interface {
	// Upsert writes the review keyed by order id; a resubmission replaces the
	// stored document in place.
	Upsert(ctx context.Context, review *domain.Review) error
	GetByOrder(ctx context.Context, orderID string) (*domain.Review, error)
	ListRecent(ctx context.Context, limit int64) ([]domain.Review, error)
	CreateIndexes(ctx context.Context) error
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{
		collection: db.Collection("reviews"),
	}
}

func (m *mongoRepository) Upsert(ctx context.Context, review *domain.Review) error {
	now := time.Now()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	filter := bson.M{"order_id": review.OrderID}
	update := bson.M{"$set": review}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert review: %w", err)
	}

	return nil
}

func (m *mongoRepository) GetByOrder(ctx context.Context, orderID string) (*domain.Review, error) {
	var review domain.Review

	filter := bson.M{"order_id": orderID}
	err := m.collection.FindOne(ctx, filter).Decode(&review)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return &review, nil
}

func (m *mongoRepository) ListRecent(ctx context.Context, limit int64) ([]domain.Review, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var reviews []domain.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	return reviews, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
