package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/database"
	"bantay-backend/pkg/geo"
)

type RescueRepository struct {
	collection *mongo.Collection
}

func NewRescueRepository(db *mongo.Database) *RescueRepository {
	return &RescueRepository{collection: db.Collection(database.CollectionRescueRequests)}
}

func (r *RescueRepository) Create(ctx context.Context, req *models.RescueRequest) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, req)
	if err != nil {
		return translate(err)
	}
	req.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *RescueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.RescueRequest, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *RescueRepository) FindByNumber(ctx context.Context, number string) (*models.RescueRequest, error) {
	return r.findOne(ctx, bson.M{"request_number": number})
}

func (r *RescueRepository) findOne(ctx context.Context, filter bson.M) (*models.RescueRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var req models.RescueRequest
	if err := r.collection.FindOne(ctx, filter).Decode(&req); err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *RescueRepository) List(ctx context.Context, filter models.RescueFilter) ([]*models.RescueRequest, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := RescueListFilter(filter)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := r.collection.Find(ctx, query, pageOptions(filter.Page, filter.Limit,
		bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	items, err := decodeAll[models.RescueRequest](ctx, cursor)
	return items, total, err
}

func RescueListFilter(f models.RescueFilter) bson.M {
	query := bson.M{"is_archived": false}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Requester != nil {
		query["requester"] = *f.Requester
	}
	return query
}

// TransitionStatus moves a request from one status to another only if it is still in from.
// The change is appended to the status history; set carries any extra fields to write.
func (r *RescueRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, from string, change models.StatusChange, set bson.M) (*models.RescueRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	fields := bson.M{"status": change.Status, "updated_at": change.UpdatedAt}
	for k, v := range set {
		fields[k] = v
	}
	update := bson.M{
		"$set":  fields,
		"$push": bson.M{"status_history": change},
	}

	var req models.RescueRequest
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&req)
	if err != nil {
		if translate(err) == ErrNotFound {
			return nil, ErrNoMatch
		}
		return nil, err
	}
	return &req, nil
}

func (r *RescueRepository) AddNote(ctx context.Context, id primitive.ObjectID, note models.RescueNote) (*models.RescueRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var req models.RescueRequest
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id},
		bson.M{"$push": bson.M{"notes": note}, "$set": bson.M{"updated_at": note.CreatedAt}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&req)
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// FindWithinRadius returns open requests inside the circle, highest priority first.
func (r *RescueRepository) FindWithinRadius(ctx context.Context, center geo.Point, km float64) ([]*models.RescueRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"is_archived": false,
		"status":      bson.M{"$nin": bson.A{models.RescueCompleted, models.RescueCancelled}},
		"location": bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{center.Lon, center.Lat}, geo.RadiansForKm(km)},
		}},
	}
	cursor, err := r.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.RescueRequest](ctx, cursor)
}
