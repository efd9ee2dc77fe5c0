package seed

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoTracker stores seed records in a collection.
type MongoTracker struct {
	collection *mongo.Collection
}

func NewMongoTracker(db *mongo.Database) *MongoTracker {
	return &MongoTracker{collection: db.Collection(defaultTableName)}
}

func (t *MongoTracker) HasRun(ctx context.Context, id string) (bool, error) {
	if t == nil || t.collection == nil {
		return false, errors.New("mongo tracker is not initialized")
	}

	err := t.collection.FindOne(ctx, bson.M{"_id": id}).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, fmt.Errorf("query seed %s: %w", id, err)
}

func (t *MongoTracker) MarkRun(ctx context.Context, record Record) error {
	if t == nil || t.collection == nil {
		return errors.New("mongo tracker is not initialized")
	}
	if record.ID == "" {
		return errors.New("seed record ID is required")
	}

	if _, err := t.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert seed record %s: %w", record.ID, err)
	}
	return nil
}
