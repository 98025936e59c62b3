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
	"bantay-backend/pkg/geo"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{collection: db.Collection(database.CollectionUsers)}
}

// recipientProjection keeps resolver queries to the fields dispatch needs.
var recipientProjection = bson.M{
	"_id":            1,
	"email":          1,
	"contact_number": 1,
	"location":       1,
	"address.sitio":  1,
	"preferences":    1,
	"is_active":      1,
	"role":           1,
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return translate(err)
	}
	user.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByResetToken returns the user holding token, provided it has not expired at now.
func (r *UserRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	return r.findOne(ctx, bson.M{
		"password_reset_token":  token,
		"password_reset_expiry": bson.M{"$gt": now},
	})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindActive(ctx context.Context) ([]*models.User, error) {
	return r.findRecipients(ctx, bson.M{"is_active": true})
}

func (r *UserRepository) FindActiveBySitios(ctx context.Context, sitios []string) ([]*models.User, error) {
	if len(sitios) == 0 {
		return []*models.User{}, nil
	}
	return r.findRecipients(ctx, bson.M{"is_active": true, "address.sitio": bson.M{"$in": sitios}})
}

// FindActiveWithinRadius is a spherical pre-filter; callers apply the exact distance check.
func (r *UserRepository) FindActiveWithinRadius(ctx context.Context, center geo.Point, km float64) ([]*models.User, error) {
	return r.findRecipients(ctx, bson.M{
		"is_active": true,
		"location": bson.M{"$geoWithin": bson.M{
			"$centerSphere": bson.A{bson.A{center.Lon, center.Lat}, geo.RadiansForKm(km)},
		}},
	})
}

func (r *UserRepository) findRecipients(ctx context.Context, filter bson.M) ([]*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(recipientProjection))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.User](ctx, cursor)
}

func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]*models.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := UserListFilter(filter)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	cursor, err := r.collection.Find(ctx, query,
		pageOptions(filter.Page, filter.Limit, bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	users, err := decodeAll[models.User](ctx, cursor)
	return users, total, err
}

func UserListFilter(f models.UserFilter) bson.M {
	query := bson.M{}
	if f.Role != "" {
		query["role"] = f.Role
	}
	if f.IsActive != nil {
		query["is_active"] = *f.IsActive
	}
	if f.Sitio != "" {
		query["address.sitio"] = f.Sitio
	}
	return query
}

// UpdateProfile applies set and returns the updated user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{
		"password_reset_token":  token,
		"password_reset_expiry": expiry,
		"updated_at":            time.Now(),
	}})
}

// ResetPassword stores the new hash and clears the reset token.
func (r *UserRepository) ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string, now time.Time) error {
	return r.updateOne(ctx, id, bson.M{
		"$set":   bson.M{"password": passwordHash, "updated_at": now},
		"$unset": bson.M{"password_reset_token": "", "password_reset_expiry": ""},
	})
}

func (r *UserRepository) SetVerificationToken(ctx context.Context, id primitive.ObjectID, token string, now time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"verification_token": token, "updated_at": now}})
}

// VerifyEmail marks the unverified account holding token as verified and
// consumes the token. ErrNotFound means no such pending verification.
func (r *UserRepository) VerifyEmail(ctx context.Context, token string, now time.Time) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"verification_token": token, "is_verified": false},
		bson.M{
			"$set":   bson.M{"is_verified": true, "updated_at": now},
			"$unset": bson.M{"verification_token": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"last_login": at}})
}

func (r *UserRepository) SetActive(ctx context.Context, id primitive.ObjectID, active bool, now time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"is_active": active, "updated_at": now}})
}

func (r *UserRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearExpiredResetTokens removes reset tokens whose expiry is before now.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx,
		bson.M{"password_reset_expiry": bson.M{"$lt": now}},
		bson.M{"$unset": bson.M{"password_reset_token": "", "password_reset_expiry": ""}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
