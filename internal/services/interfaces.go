package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/geo"
)

// Conditional mutations return repository.ErrNoMatch when the document exists
// but is not in the state the filter requires, and repository.ErrNotFound on lookups.

type AlertStore interface {
	Create(ctx context.Context, alert *models.Alert) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error)
	FindByCode(ctx context.Context, code string) (*models.Alert, error)

	UpdateContent(ctx context.Context, id primitive.ObjectID, content models.AlertContent, now time.Time) (*models.Alert, error)
	Publish(ctx context.Context, id, publisher primitive.ObjectID, recipients int64, now time.Time) (*models.Alert, error)
	Extend(ctx context.Context, id primitive.ObjectID, expiresAt, now time.Time) (*models.Alert, error)
	Deactivate(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Alert, error)
	Cancel(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.Alert, error)

	IncrementStat(ctx context.Context, id primitive.ObjectID, channel string, n int64) error
	MarkChannelSent(ctx context.Context, id primitive.ObjectID, channel string, at time.Time) error

	List(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, int64, error)
	FindActive(ctx context.Context, area string, now time.Time) ([]*models.Alert, error)
	FindWithinRadius(ctx context.Context, center geo.Point, km float64, now time.Time) ([]*models.Alert, error)
	Statistics(ctx context.Context, from, to time.Time) (*models.AlertStatistics, error)
	IDsCreatedBetween(ctx context.Context, from, to time.Time) ([]primitive.ObjectID, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.AuditEntry, error)
}

type DeliveryStore interface {
	InsertPending(ctx context.Context, deliveries []*models.Delivery) error
	MarkResult(ctx context.Context, id primitive.ObjectID, status, errMsg string, at time.Time) error
	ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.Delivery, error)
}

type AckStore interface {
	Upsert(ctx context.Context, ack *models.Acknowledgment) (*models.Acknowledgment, bool, error)
	ListByAlert(ctx context.Context, alertID primitive.ObjectID) ([]models.Acknowledgment, error)
	CountForAlerts(ctx context.Context, alertIDs []primitive.ObjectID) (int64, error)
}

// RecipientDirectory is the part of the user store the resolver reads.
type RecipientDirectory interface {
	FindActive(ctx context.Context) ([]*models.User, error)
	FindActiveBySitios(ctx context.Context, sitios []string) ([]*models.User, error)
	FindActiveWithinRadius(ctx context.Context, center geo.Point, km float64) ([]*models.User, error)
}

type UserStore interface {
	RecipientDirectory

	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, int64, error)

	UpdateProfile(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.User, error)
	SetPasswordReset(ctx context.Context, id primitive.ObjectID, token string, expiry time.Time) error
	ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string, now time.Time) error
	SetVerificationToken(ctx context.Context, id primitive.ObjectID, token string, now time.Time) error
	VerifyEmail(ctx context.Context, token string, now time.Time) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
	SetActive(ctx context.Context, id primitive.ObjectID, active bool, now time.Time) error
}

type RescueStore interface {
	Create(ctx context.Context, req *models.RescueRequest) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.RescueRequest, error)
	FindByNumber(ctx context.Context, number string) (*models.RescueRequest, error)
	List(ctx context.Context, filter models.RescueFilter) ([]*models.RescueRequest, int64, error)
	TransitionStatus(ctx context.Context, id primitive.ObjectID, from string, change models.StatusChange, set bson.M) (*models.RescueRequest, error)
	AddNote(ctx context.Context, id primitive.ObjectID, note models.RescueNote) (*models.RescueRequest, error)
	FindWithinRadius(ctx context.Context, center geo.Point, km float64) ([]*models.RescueRequest, error)
}

// IDGenerator hands out PREFIX-YYYYMMDD-NNN codes.
type IDGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type SMSSender interface {
	Send(ctx context.Context, number, message string) error
}

type AlertMailer interface {
	SendAlertEmail(ctx context.Context, to string, alert *models.Alert, loc *time.Location) error
}

// AccountMailer sends the account emails: password resets and address verification.
type AccountMailer interface {
	SendPasswordResetEmail(ctx context.Context, to, token string) error
	SendVerificationEmail(ctx context.Context, to, token string) error
}

// Broadcaster pushes an event to every connection in a room and reports how many received it.
type Broadcaster interface {
	BroadcastToRoom(room, event string, payload interface{}) int
}

// AlertListCache is the slice of pkg/cache the lifecycle manager needs.
type AlertListCache interface {
	GetAlertList(ctx context.Context, key string) ([]*models.Alert, bool, error)
	SetAlertList(ctx context.Context, key string, alerts []*models.Alert, ttl time.Duration, tags ...string) error
	InvalidateByTag(ctx context.Context, tag string) error
}

// DispatchSubmitter starts delivery of a published alert without waiting for it.
type DispatchSubmitter interface {
	Submit(ctx context.Context, alert *models.Alert, recipients []models.Recipient) error
}

// Rooms used by the realtime hub.
const (
	RoomBarangay  = "barangay-malagutay"
	RoomOfficials = "officials"
)

func UserRoom(id primitive.ObjectID) string {
	return "user-" + id.Hex()
}

// Events emitted over the realtime hub.
const (
	EventAlertNew          = "alert:new"
	EventAlertUpdated      = "alert:updated"
	EventAlertDeactivated  = "alert:deactivated"
	EventAlertAcknowledged = "alert:acknowledged"
	EventRescueCreated     = "rescue:created"
	EventRescueUpdated     = "rescue:updated"
	EventRescueNoteAdded   = "rescue:note_added"
)
