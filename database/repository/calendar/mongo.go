package calendarRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicebook/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	commitmentsCollection = "commitments"
	// calendarDaysCollection holds one guard document per date. Every create
	// bumps it inside the transaction so concurrent creates for a date conflict.
	calendarDaysCollection = "calendar_days"
)

// MongoCalendarRepo implements CalendarRepository using MongoDB.
type MongoCalendarRepo struct {
	client          *mongo.Client
	commitmentsColl *mongo.Collection
	daysColl        *mongo.Collection
}

// NewMongoCalendarRepo constructs a new instance of MongoCalendarRepo.
func NewMongoCalendarRepo(db *mongo.Database) *MongoCalendarRepo {
	return &MongoCalendarRepo{
		client:          db.Client(),
		commitmentsColl: db.Collection(commitmentsCollection),
		daysColl:        db.Collection(calendarDaysCollection),
	}
}

// ListCommitments returns the confirmed commitments of a date, earliest first.
func (repo *MongoCalendarRepo) ListCommitments(ctx context.Context, date string) ([]models.Commitment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"date": date, "status": models.CommitmentConfirmed}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}})
	cursor, err := repo.commitmentsColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching commitments for %s: %w", date, err)
	}
	defer cursor.Close(ctx)

	var out []models.Commitment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("error decoding commitments: %w", err)
	}
	return out, nil
}

// CreateCommitment inserts the commitment unless a confirmed one overlaps it.
// The overlap check and the insert share one transaction.
func (repo *MongoCalendarRepo) CreateCommitment(ctx context.Context, interval models.Interval, meta models.CommitmentMetadata) (models.Commitment, error) {
	if !interval.Start.Before(interval.End) {
		return models.Commitment{}, fmt.Errorf("empty interval %s-%s", interval.Start, interval.End)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sess, err := repo.client.StartSession()
	if err != nil {
		return models.Commitment{}, fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	commitment := models.Commitment{
		ID:        uuid.NewString(),
		Date:      interval.Date,
		Start:     interval.Start.UTC(),
		End:       interval.End.UTC(),
		Status:    models.CommitmentConfirmed,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}

	txnFn := func(sc mongo.SessionContext) (interface{}, error) {
		guard := bson.M{
			"$inc": bson.M{"version": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		}
		if _, err := repo.daysColl.UpdateOne(sc, bson.M{"_id": interval.Date}, guard, options.Update().SetUpsert(true)); err != nil {
			return nil, fmt.Errorf("bump day guard failed: %w", err)
		}

		overlap := bson.M{
			"date":   interval.Date,
			"status": models.CommitmentConfirmed,
			"start":  bson.M{"$lt": commitment.End},
			"end":    bson.M{"$gt": commitment.Start},
		}
		n, err := repo.commitmentsColl.CountDocuments(sc, overlap)
		if err != nil {
			return nil, fmt.Errorf("overlap check failed: %w", err)
		}
		if n > 0 {
			return nil, models.ErrCommitmentOverlap
		}

		if _, err := repo.commitmentsColl.InsertOne(sc, commitment); err != nil {
			return nil, fmt.Errorf("insert commitment failed: %w", err)
		}
		return nil, nil
	}

	if _, err := sess.WithTransaction(ctx, txnFn); err != nil {
		if errors.Is(err, models.ErrCommitmentOverlap) {
			return models.Commitment{}, models.ErrCommitmentOverlap
		}
		return models.Commitment{}, fmt.Errorf("commitment transaction failed: %w", err)
	}
	return commitment, nil
}

func (repo *MongoCalendarRepo) GetCommitment(ctx context.Context, id string) (models.Commitment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c models.Commitment
	if err := repo.commitmentsColl.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Commitment{}, models.ErrCommitmentNotFound
		}
		return models.Commitment{}, fmt.Errorf("error fetching commitment %s: %w", id, err)
	}
	return c, nil
}

// CancelCommitment marks a confirmed commitment cancelled, freeing its interval.
func (repo *MongoCalendarRepo) CancelCommitment(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": id, "status": models.CommitmentConfirmed}
	update := bson.M{"$set": bson.M{"status": models.CommitmentCancelled}}
	res, err := repo.commitmentsColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to cancel commitment %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrCommitmentNotFound
	}
	return nil
}

func (repo *MongoCalendarRepo) Stats(ctx context.Context, now time.Time) (models.CalendarStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var s models.CalendarStats
	var err error
	if s.Confirmed, err = repo.commitmentsColl.CountDocuments(ctx, bson.M{"status": models.CommitmentConfirmed}); err != nil {
		return s, fmt.Errorf("count confirmed: %w", err)
	}
	if s.Cancelled, err = repo.commitmentsColl.CountDocuments(ctx, bson.M{"status": models.CommitmentCancelled}); err != nil {
		return s, fmt.Errorf("count cancelled: %w", err)
	}
	today := bson.M{"status": models.CommitmentConfirmed, "date": now.Format(models.DateLayout)}
	if s.Today, err = repo.commitmentsColl.CountDocuments(ctx, today); err != nil {
		return s, fmt.Errorf("count today: %w", err)
	}
	upcoming := bson.M{"status": models.CommitmentConfirmed, "start": bson.M{"$gt": now.UTC()}}
	if s.Upcoming, err = repo.commitmentsColl.CountDocuments(ctx, upcoming); err != nil {
		return s, fmt.Errorf("count upcoming: %w", err)
	}
	return s, nil
}
