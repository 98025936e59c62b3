package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/database"
)

type AcknowledgmentRepository struct {
	collection *mongo.Collection
}

func NewAcknowledgmentRepository(db *mongo.Database) *AcknowledgmentRepository {
	return &AcknowledgmentRepository{collection: db.Collection(database.CollectionAcknowledgments)}
}

// Upsert records ack unless the user already acknowledged the alert, in which
// case the stored record is returned and created is false. The unique
// (alert_id, user_id) index makes concurrent first calls converge.
func (r *AcknowledgmentRepository) Upsert(ctx context.Context, ack *models.Acknowledgment) (*models.Acknowledgment, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"alert_id": ack.AlertID, "user_id": ack.UserID}
	insert := bson.M{"acknowledged_at": ack.AcknowledgedAt}
	if ack.Location != nil {
		insert["location"] = ack.Location
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$setOnInsert": insert},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, false, err
	}
	created := err == nil && result.UpsertedCount == 1

	var stored models.Acknowledgment
	if err := r.collection.FindOne(ctx, filter).Decode(&stored); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}
	return &stored, created, nil
}

func (r *AcknowledgmentRepository) ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.Acknowledgment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"alert_id": alertID},
		options.Find().SetSort(bson.D{{Key: "acknowledged_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	acks := make([]models.Acknowledgment, 0)
	if err := cursor.All(ctx, &acks); err != nil {
		return nil, err
	}
	return acks, nil
}

// CountForAlerts counts acknowledgments across the given alerts.
func (r *AcknowledgmentRepository) CountForAlerts(ctx context.Context, alertIDs []primitive.ObjectID) (int64, error) {
	if len(alertIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.collection.CountDocuments(ctx, bson.M{"alert_id": bson.M{"$in": alertIDs}})
}
