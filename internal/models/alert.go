package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AlertTypeFlood      = "flood"
	AlertTypeLandslide  = "landslide"
	AlertTypeStorm      = "storm"
	AlertTypeEarthquake = "earthquake"
	AlertTypeFire       = "fire"
	AlertTypeHealth     = "health"
	AlertTypeSecurity   = "security"
	AlertTypeGeneral    = "general"
	AlertTypeEvacuation = "evacuation"
)

const (
	SeverityInfo     = "info"
	SeverityWatch    = "watch"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SeverityRank orders severities for sorting, highest first.
var SeverityRank = map[string]int{
	SeverityCritical: 4,
	SeverityWarning:  3,
	SeverityWatch:    2,
	SeverityInfo:     1,
}

const (
	TargetBarangayWide = "barangay_wide"
	TargetSpecific     = "specific"
	TargetRadius       = "radius"
)

const (
	AuditCreated     = "created"
	AuditModified    = "modified"
	AuditPublished   = "published"
	AuditDeactivated = "deactivated"
	AuditExtended    = "extended"
	AuditCancelled   = "cancelled"
)

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelWeb   = "web"
)

const (
	DeliveryPending   = "pending"
	DeliverySent      = "sent"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

type Alert struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	AlertID          string               `bson:"alert_id" json:"alertId"`
	Title            string               `bson:"title" json:"title"`
	Message          string               `bson:"message" json:"message"`
	AlertType        string               `bson:"alert_type" json:"alertType"`
	Severity         string               `bson:"severity" json:"severity"`
	TargetArea       TargetArea           `bson:"target_area" json:"targetArea"`
	Instructions     Instructions         `bson:"instructions" json:"instructions"`
	Media            []Media              `bson:"media,omitempty" json:"media,omitempty"`
	RelatedIncidents []primitive.ObjectID `bson:"related_incidents,omitempty" json:"relatedIncidents,omitempty"`
	CreatedBy        primitive.ObjectID   `bson:"created_by" json:"createdBy"`
	AuthorizedBy     *primitive.ObjectID  `bson:"authorized_by,omitempty" json:"authorizedBy,omitempty"`
	IsActive         bool                 `bson:"is_active" json:"isActive"`
	IsPublished      bool                 `bson:"is_published" json:"isPublished"`
	PublishedAt      *time.Time           `bson:"published_at,omitempty" json:"publishedAt,omitempty"`
	ScheduledAt      *time.Time           `bson:"scheduled_at,omitempty" json:"scheduledAt,omitempty"`
	ExpiresAt        time.Time            `bson:"expires_at" json:"expiresAt"`
	Channels         Channels             `bson:"channels" json:"channels"`
	Statistics       Statistics           `bson:"statistics" json:"statistics"`
	CreatedAt        time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updatedAt"`

	// Computed on read, never stored.
	IsExpired     bool  `bson:"-" json:"isExpired"`
	TimeRemaining int64 `bson:"-" json:"timeRemaining"`
}

// IsExpiredAt reports whether the alert's expiry has passed at now.
func (a *Alert) IsExpiredAt(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// Hydrate fills the derived read fields. TimeRemaining is in milliseconds.
func (a *Alert) Hydrate(now time.Time) {
	a.IsExpired = a.IsExpiredAt(now)
	if a.IsExpired {
		a.TimeRemaining = 0
		return
	}
	a.TimeRemaining = a.ExpiresAt.Sub(now).Milliseconds()
}

// State names the lifecycle position: draft, published, deactivated or expired.
func (a *Alert) State(now time.Time) string {
	switch {
	case !a.IsActive:
		return "deactivated"
	case a.IsExpiredAt(now):
		return "expired"
	case a.IsPublished:
		return "published"
	default:
		return "draft"
	}
}

type TargetArea struct {
	Type   string        `bson:"type" json:"type" validate:"required,oneof=barangay_wide specific radius"`
	Areas  []string      `bson:"areas,omitempty" json:"areas,omitempty"`
	Radius *RadiusTarget `bson:"radius,omitempty" json:"radius,omitempty"`
}

type RadiusTarget struct {
	Center   GeoPoint `bson:"center" json:"center"`
	RadiusKm float64  `bson:"radius_km" json:"radiusKm"`
}

// GeoPoint is a GeoJSON Point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

func (p GeoPoint) Lon() float64 { return p.Coordinates[0] }
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

type Instructions struct {
	Immediate   []string   `bson:"immediate,omitempty" json:"immediate,omitempty"`
	Preparation []string   `bson:"preparation,omitempty" json:"preparation,omitempty"`
	Evacuation  Evacuation `bson:"evacuation" json:"evacuation"`
}

type Evacuation struct {
	Required bool               `bson:"required" json:"required"`
	Centers  []EvacuationCenter `bson:"centers,omitempty" json:"centers,omitempty"`
	Routes   []string           `bson:"routes,omitempty" json:"routes,omitempty"`
}

type EvacuationCenter struct {
	Name        string    `bson:"name" json:"name"`
	Address     string    `bson:"address" json:"address"`
	Coordinates *GeoPoint `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Capacity    int       `bson:"capacity" json:"capacity"`
	Contact     string    `bson:"contact" json:"contact"`
}

type Media struct {
	Type    string `bson:"type" json:"type"`
	URL     string `bson:"url" json:"url"`
	Caption string `bson:"caption,omitempty" json:"caption,omitempty"`
}

type Channels struct {
	SMS   ChannelState `bson:"sms" json:"sms"`
	Email ChannelState `bson:"email" json:"email"`
	Push  ChannelState `bson:"push" json:"push"`
	Web   ChannelState `bson:"web" json:"web"`
}

type ChannelState struct {
	Enabled bool       `bson:"enabled" json:"enabled"`
	Sent    bool       `bson:"sent" json:"sent"`
	SentAt  *time.Time `bson:"sent_at,omitempty" json:"sentAt,omitempty"`
}

// DefaultChannels enables every channel.
func DefaultChannels() Channels {
	return Channels{
		SMS:   ChannelState{Enabled: true},
		Email: ChannelState{Enabled: true},
		Push:  ChannelState{Enabled: true},
		Web:   ChannelState{Enabled: true},
	}
}

type Statistics struct {
	TotalRecipients       int64 `bson:"total_recipients" json:"totalRecipients"`
	SMSSent               int64 `bson:"sms_sent" json:"smsSent"`
	EmailsSent            int64 `bson:"emails_sent" json:"emailsSent"`
	PushNotificationsSent int64 `bson:"push_notifications_sent" json:"pushNotificationsSent"`
}

// AuditEntry is one row of an alert's append-only audit trail.
type AuditEntry struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	AlertID   primitive.ObjectID     `bson:"alert_id" json:"alertId"`
	Actor     primitive.ObjectID     `bson:"actor" json:"actor"`
	Type      string                 `bson:"type" json:"type"`
	Changes   map[string]interface{} `bson:"changes,omitempty" json:"changes,omitempty"`
	Notes     string                 `bson:"notes,omitempty" json:"notes,omitempty"`
	Timestamp time.Time              `bson:"timestamp" json:"timestamp"`
}

// Delivery is the per-recipient outcome of one channel send.
type Delivery struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AlertID     primitive.ObjectID `bson:"alert_id" json:"alertId"`
	Channel     string             `bson:"channel" json:"channel"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	Recipient   string             `bson:"recipient" json:"recipient"`
	Status      string             `bson:"status" json:"status"`
	SentAt      *time.Time         `bson:"sent_at,omitempty" json:"sentAt,omitempty"`
	DeliveredAt *time.Time         `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	Error       string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

type Acknowledgment struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AlertID        primitive.ObjectID `bson:"alert_id" json:"alertId"`
	UserID         primitive.ObjectID `bson:"user_id" json:"userId"`
	AcknowledgedAt time.Time          `bson:"acknowledged_at" json:"acknowledgedAt"`
	Location       *GeoPoint          `bson:"location,omitempty" json:"location,omitempty"`
}

// AlertDetail is the joined read model: the alert plus its side collections.
type AlertDetail struct {
	*Alert
	AuditTrail      []AuditEntry     `json:"auditTrail"`
	Deliveries      []Delivery       `json:"deliveries"`
	Acknowledgments []Acknowledgment `json:"acknowledgments"`
}

type AlertFilter struct {
	AlertType   string
	Severity    string
	IsActive    *bool
	IsPublished *bool
	Page        int
	Limit       int
}

type AlertStatistics struct {
	Total                 int64            `json:"total"`
	ByType                map[string]int64 `json:"byType"`
	BySeverity            map[string]int64 `json:"bySeverity"`
	TotalRecipients       int64            `json:"totalRecipients"`
	SMSSent               int64            `json:"smsSent"`
	EmailsSent            int64            `json:"emailsSent"`
	PushNotificationsSent int64            `json:"pushNotificationsSent"`
	Acknowledgments       int64            `json:"acknowledgments"`
}

// AlertContent is the caller-supplied part of an alert, used by create and update.
type AlertContent struct {
	Title            string               `json:"title" validate:"required,max=200"`
	Message          string               `json:"message" validate:"required,max=2000"`
	AlertType        string               `json:"alertType" validate:"required,oneof=flood landslide storm earthquake fire health security general evacuation"`
	Severity         string               `json:"severity" validate:"required,oneof=info watch warning critical"`
	TargetArea       TargetArea           `json:"targetArea" validate:"required"`
	Instructions     Instructions         `json:"instructions"`
	Media            []Media              `json:"media,omitempty"`
	RelatedIncidents []primitive.ObjectID `json:"relatedIncidents,omitempty"`
	Channels         *Channels            `json:"channels,omitempty"`
	ScheduledAt      *time.Time           `json:"scheduledAt,omitempty"`
	ExpiresAt        time.Time            `json:"expiresAt" validate:"required"`
}

type ExtendAlertRequest struct {
	ExpiresAt time.Time `json:"expiresAt" validate:"required"`
	Reason    string    `json:"reason" validate:"max=500"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AcknowledgeRequest struct {
	Location *GeoPoint `json:"location,omitempty"`
}

type PublishResult struct {
	Alert           *Alert `json:"alert"`
	RecipientCount  int    `json:"recipientCount"`
	DispatchStarted bool   `json:"dispatchStarted"`
}
