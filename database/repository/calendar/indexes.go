package calendarRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the necessary indexes on the commitments collection.
func (repo *MongoCalendarRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		// Primary query pattern: one day's confirmed entries
		{
			Keys:    bson.D{{Key: "date", Value: 1}, {Key: "status", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetName("date_status_start_idx"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetName("status_start_idx"),
		},
	}

	if _, err := repo.commitmentsColl.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create commitment indexes: %w", err)
	}
	return nil
}
