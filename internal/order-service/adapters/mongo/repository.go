// Package mongo stores Order aggregates as documents, one per order, with a
// version field for optimistic concurrency.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jcmexdev/order-fulfillment/internal/order-service/domain"
)

const CollectionName = "orders"

// Connect opens a client and checks the primary is reachable.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return client, nil
}

type OrderRepository struct {
	orders *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{orders: db.Collection(CollectionName)}
}

func (r *OrderRepository) Load(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDocument
	err := r.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: load order %s: %w", id, err)
	}

	s, err := fromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("mongo: decode order: %w", err)
	}
	return domain.Rehydrate(s), nil
}

// Save inserts a new order (version 0) or replaces the stored one when its
// version still matches. Either way the order's version is bumped.
func (r *OrderRepository) Save(ctx context.Context, o *domain.Order) error {
	expected := o.Version()
	doc := toDocument(o.Snapshot())
	doc.Version = expected + 1

	if expected == 0 {
		if _, err := r.orders.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrConcurrentModification
			}
			return fmt.Errorf("mongo: insert order %s: %w", doc.ID, err)
		}
		o.SetVersion(doc.Version)
		return nil
	}

	res, err := r.orders.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": expected}, doc)
	if err != nil {
		return fmt.Errorf("mongo: replace order %s: %w", doc.ID, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrConcurrentModification
	}
	o.SetVersion(doc.Version)
	return nil
}

func (r *OrderRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.orders.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo: count order %s: %w", id, err)
	}
	return n > 0, nil
}
