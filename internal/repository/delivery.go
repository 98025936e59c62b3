package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/database"
)

type DeliveryRepository struct {
	collection *mongo.Collection
}

func NewDeliveryRepository(db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{collection: db.Collection(database.CollectionDeliveries)}
}

// InsertPending records one pending delivery per recipient and fills in their IDs.
func (r *DeliveryRepository) InsertPending(ctx context.Context, deliveries []*models.Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	docs := make([]interface{}, len(deliveries))
	for i, d := range deliveries {
		if d.ID.IsZero() {
			d.ID = primitive.NewObjectID()
		}
		d.Status = models.DeliveryPending
		docs[i] = d
	}
	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// MarkResult moves one delivery from pending to sent or failed.
func (r *DeliveryRepository) MarkResult(ctx context.Context, id primitive.ObjectID, status, errMsg string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": status}
	if status == models.DeliverySent {
		set["sent_at"] = at
	}
	if errMsg != "" {
		set["error"] = errMsg
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DeliveryRepository) ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"alert_id": alertID},
		options.Find().SetSort(bson.D{{Key: "channel", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	deliveries := make([]models.Delivery, 0)
	if err := cursor.All(ctx, &deliveries); err != nil {
		return nil, err
	}
	return deliveries, nil
}
