package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.uber.org/zap"

	"bantay-backend/internal/config"
)

const defaultDatabase = "bantay_barangay"

// Collection names shared by the repositories.
const (
	CollectionAlerts          = "alerts"
	CollectionAuditTrail      = "alert_audit"
	CollectionDeliveries      = "alert_deliveries"
	CollectionAcknowledgments = "alert_acknowledgments"
	CollectionUsers           = "users"
	CollectionRescueRequests  = "rescue_requests"
	CollectionCounters        = "counters"
)

// Connect dials MongoDB, verifies the connection and returns the configured database.
// The database name comes from cfg.Database, then the URI path, then a default.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*mongo.Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cs, err := connstring.ParseAndValidate(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := DatabaseName(cfg.Database, cs.Database)
	logger.Info("connected to MongoDB", zap.String("database", dbName))
	return client.Database(dbName), nil
}

// DatabaseName picks the configured name, then the one from the URI, then the default.
func DatabaseName(configured, fromURI string) string {
	switch {
	case configured != "":
		return configured
	case fromURI != "":
		return fromURI
	default:
		return defaultDatabase
	}
}

// IndexPlan lists the indexes EnsureIndexes creates, per collection.
func IndexPlan() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		CollectionAlerts: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "is_published", Value: 1}, {Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "target_area.areas", Value: 1}}},
			{Keys: bson.D{{Key: "target_area.radius.center", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "alert_type", Value: 1}, {Key: "severity", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		CollectionAuditTrail: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		CollectionDeliveries: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "channel", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		CollectionAcknowledgments: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "acknowledged_at", Value: -1}}},
		},
		CollectionUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "address.sitio", Value: 1}}},
			{Keys: bson.D{{Key: "role", Value: 1}}},
			{Keys: bson.D{{Key: "password_reset_token", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "verification_token", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		CollectionRescueRequests: {
			{Keys: bson.D{{Key: "request_number", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "requester", Value: 1}}},
		},
	}
}

// EnsureIndexes creates every index in IndexPlan. Failures are collected so one
// bad collection does not stop the rest.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var failed []string
	for collection, models := range IndexPlan() {
		names, err := db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			logger.Error("failed to create indexes", zap.String("collection", collection), zap.Error(err))
			failed = append(failed, collection)
			continue
		}
		logger.Debug("indexes ensured", zap.String("collection", collection), zap.Strings("indexes", names))
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to create indexes for %v", failed)
	}
	logger.Info("database indexes ensured")
	return nil
}

func Disconnect(ctx context.Context, client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// Health pings the primary.
func Health(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.Client().Ping(ctx, nil)
}
