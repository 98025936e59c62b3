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

// statFields maps a channel to its counter under statistics.
var statFields = map[string]string{
	models.ChannelSMS:   "statistics.sms_sent",
	models.ChannelEmail: "statistics.emails_sent",
	models.ChannelPush:  "statistics.push_notifications_sent",
}

type AlertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		collection: db.Collection(database.CollectionAlerts),
	}
}

func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return translate(err)
	}
	alert.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *AlertRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AlertRepository) FindByCode(ctx context.Context, code string) (*models.Alert, error) {
	return r.findOne(ctx, bson.M{"alert_id": code})
}

func (r *AlertRepository) findOne(ctx context.Context, filter bson.M) (*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var alert models.Alert
	if err := r.collection.FindOne(ctx, filter).Decode(&alert); err != nil {
		return nil, translate(err)
	}
	return &alert, nil
}

// UpdateContent replaces the editable fields of an active draft.
func (r *AlertRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, content models.AlertContent, now time.Time) (*models.Alert, error) {
	set := bson.M{
		"title":             content.Title,
		"message":           content.Message,
		"alert_type":        content.AlertType,
		"severity":          content.Severity,
		"target_area":       content.TargetArea,
		"instructions":      content.Instructions,
		"media":             content.Media,
		"related_incidents": content.RelatedIncidents,
		"scheduled_at":      content.ScheduledAt,
		"expires_at":        content.ExpiresAt,
		"updated_at":        now,
	}
	if content.Channels != nil {
		set["channels"] = *content.Channels
	}

	filter := bson.M{"_id": id, "is_active": true, "is_published": false}
	return r.conditionalUpdate(ctx, filter, bson.M{"$set": set}, options.After)
}

// Publish flips an active, unexpired draft to published in one write.
func (r *AlertRepository) Publish(ctx context.Context, id, publisher primitive.ObjectID, recipients int64, now time.Time) (*models.Alert, error) {
	filter := bson.M{
		"_id":          id,
		"is_active":    true,
		"is_published": false,
		"expires_at":   bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{
		"is_published":                true,
		"published_at":                now,
		"authorized_by":               publisher,
		"statistics.total_recipients": recipients,
		"updated_at":                  now,
	}}
	return r.conditionalUpdate(ctx, filter, update, options.After)
}

// Extend moves the expiry of an active, unexpired alert and returns the document as it was before.
func (r *AlertRepository) Extend(ctx context.Context, id primitive.ObjectID, expiresAt, now time.Time) (*models.Alert, error) {
	filter := bson.M{
		"_id":        id,
		"is_active":  true,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"expires_at": expiresAt, "updated_at": now}}
	return r.conditionalUpdate(ctx, filter, update, options.Before)
}

func (r *AlertRepository) Deactivate(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Alert, error) {
	filter := bson.M{"_id": id, "is_active": true}
	update := bson.M{"$set": bson.M{"is_active": false, "updated_at": now}}
	return r.conditionalUpdate(ctx, filter, update, options.After)
}

// Cancel retires a draft that was never published.
func (r *AlertRepository) Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Alert, error) {
	filter := bson.M{"_id": id, "is_active": true, "is_published": false}
	update := bson.M{"$set": bson.M{"is_active": false, "updated_at": now}}
	return r.conditionalUpdate(ctx, filter, update, options.After)
}

func (r *AlertRepository) conditionalUpdate(ctx context.Context, filter, update bson.M, doc options.ReturnDocument) (*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var alert models.Alert
	err := r.collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(doc)).Decode(&alert)
	if err != nil {
		if translate(err) == ErrNotFound {
			return nil, ErrNoMatch
		}
		return nil, translate(err)
	}
	return &alert, nil
}

// IncrementStat adds n to the channel's sent counter.
func (r *AlertRepository) IncrementStat(ctx context.Context, id primitive.ObjectID, channel string, n int64) error {
	field, ok := statFields[channel]
	if !ok || n == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: n}})
	return err
}

func (r *AlertRepository) MarkChannelSent(ctx context.Context, id primitive.ObjectID, channel string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	prefix := "channels." + channel
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		prefix + ".sent":    true,
		prefix + ".sent_at": at,
	}})
	return err
}

func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := AlertListFilter(filter)
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.collection.Find(ctx, query,
		pageOptions(filter.Page, filter.Limit, bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, 0, err
	}
	alerts, err := decodeAll[models.Alert](ctx, cursor)
	return alerts, total, err
}

// AlertListFilter builds the query for an admin listing.
func AlertListFilter(f models.AlertFilter) bson.M {
	query := bson.M{}
	if f.AlertType != "" {
		query["alert_type"] = f.AlertType
	}
	if f.Severity != "" {
		query["severity"] = f.Severity
	}
	if f.IsActive != nil {
		query["is_active"] = *f.IsActive
	}
	if f.IsPublished != nil {
		query["is_published"] = *f.IsPublished
	}
	return query
}

// ActiveFilter matches alerts that are live at now. When area is set, only
// barangay-wide alerts and those naming the area match.
func ActiveFilter(area string, now time.Time) bson.M {
	query := bson.M{
		"is_active":    true,
		"is_published": true,
		"expires_at":   bson.M{"$gt": now},
	}
	if area != "" {
		query["$or"] = bson.A{
			bson.M{"target_area.type": models.TargetBarangayWide},
			bson.M{"target_area.areas": area},
		}
	}
	return query
}

func (r *AlertRepository) FindActive(ctx context.Context, area string, now time.Time) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, ActiveFilter(area, now),
		options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Alert](ctx, cursor)
}

// RadiusFilter matches live alerts that are barangay-wide or whose radius centre lies inside the circle.
func RadiusFilter(center geo.Point, km float64, now time.Time) bson.M {
	query := ActiveFilter("", now)
	query["$or"] = bson.A{
		bson.M{"target_area.type": models.TargetBarangayWide},
		bson.M{"target_area.radius.center": bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": bson.A{bson.A{center.Lon, center.Lat}, geo.RadiansForKm(km)},
			},
		}},
	}
	return query
}

func (r *AlertRepository) FindWithinRadius(ctx context.Context, center geo.Point, km float64, now time.Time) ([]*models.Alert, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, RadiusFilter(center, km, now),
		options.Find().SetSort(bson.D{{Key: "published_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Alert](ctx, cursor)
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

// Statistics aggregates alerts created in [from, to). Acknowledgments are counted by the caller.
func (r *AlertRepository) Statistics(ctx context.Context, from, to time.Time) (*models.AlertStatistics, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	match := bson.M{"$match": bson.M{"created_at": bson.M{"$gte": from, "$lt": to}}}
	pipeline := bson.A{
		match,
		bson.M{"$facet": bson.M{
			"totals": bson.A{bson.M{"$group": bson.M{
				"_id":                     nil,
				"total":                   bson.M{"$sum": 1},
				"total_recipients":        bson.M{"$sum": "$statistics.total_recipients"},
				"sms_sent":                bson.M{"$sum": "$statistics.sms_sent"},
				"emails_sent":             bson.M{"$sum": "$statistics.emails_sent"},
				"push_notifications_sent": bson.M{"$sum": "$statistics.push_notifications_sent"},
			}}},
			"by_type":     bson.A{bson.M{"$group": bson.M{"_id": "$alert_type", "count": bson.M{"$sum": 1}}}},
			"by_severity": bson.A{bson.M{"$group": bson.M{"_id": "$severity", "count": bson.M{"$sum": 1}}}},
		}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var facet struct {
		Totals []struct {
			Total                 int64 `bson:"total"`
			TotalRecipients       int64 `bson:"total_recipients"`
			SMSSent               int64 `bson:"sms_sent"`
			EmailsSent            int64 `bson:"emails_sent"`
			PushNotificationsSent int64 `bson:"push_notifications_sent"`
		} `bson:"totals"`
		ByType     []groupCount `bson:"by_type"`
		BySeverity []groupCount `bson:"by_severity"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&facet); err != nil {
			return nil, err
		}
	}

	stats := &models.AlertStatistics{
		ByType:     make(map[string]int64, len(facet.ByType)),
		BySeverity: make(map[string]int64, len(facet.BySeverity)),
	}
	if len(facet.Totals) > 0 {
		t := facet.Totals[0]
		stats.Total = t.Total
		stats.TotalRecipients = t.TotalRecipients
		stats.SMSSent = t.SMSSent
		stats.EmailsSent = t.EmailsSent
		stats.PushNotificationsSent = t.PushNotificationsSent
	}
	for _, g := range facet.ByType {
		stats.ByType[g.Key] = g.Count
	}
	for _, g := range facet.BySeverity {
		stats.BySeverity[g.Key] = g.Count
	}
	return stats, nil
}

// IDsCreatedBetween returns the _id of every alert created in [from, to).
func (r *AlertRepository) IDsCreatedBetween(ctx context.Context, from, to time.Time) ([]primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx,
		bson.M{"created_at": bson.M{"$gte": from, "$lt": to}},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}
