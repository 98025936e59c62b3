package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/geo"
	"bantay-backend/pkg/metrics"
)

// AcknowledgmentTracker records that a resident has seen an alert. Only the
// first acknowledgment per user is stored; repeats return it unchanged.
type AcknowledgmentTracker struct {
	alerts  AlertStore
	acks    AckStore
	hub     Broadcaster
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewAcknowledgmentTracker(alerts AlertStore, acks AckStore, hub Broadcaster, m *metrics.Metrics, logger *zap.Logger) *AcknowledgmentTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcknowledgmentTracker{
		alerts:  alerts,
		acks:    acks,
		hub:     hub,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// AcknowledgmentEvent is what officials see when a resident acknowledges.
type AcknowledgmentEvent struct {
	AlertID        string           `json:"alertId"`
	UserID         string           `json:"userId"`
	AcknowledgedAt time.Time        `json:"acknowledgedAt"`
	Location       *models.GeoPoint `json:"location,omitempty"`
}

// Acknowledge returns the stored acknowledgment and whether this call created it.
func (t *AcknowledgmentTracker) Acknowledge(ctx context.Context, ref string, actor models.Actor, location *models.GeoPoint) (*models.Acknowledgment, bool, error) {
	if location != nil {
		p := geo.Point{Lon: location.Lon(), Lat: location.Lat()}
		if !p.Valid() {
			return nil, false, apperrors.Validation("location is not a valid coordinate")
		}
		normalized := models.NewGeoPoint(p.Lon, p.Lat)
		location = &normalized
	}

	alert, err := findAlert(ctx, t.alerts, ref)
	if err != nil {
		return nil, false, err
	}
	now := t.now()
	switch {
	case !alert.IsActive:
		return nil, false, apperrors.ErrInactiveAlert
	case !alert.IsPublished:
		return nil, false, apperrors.Clone(apperrors.ErrInactiveAlert, "alert has not been published")
	case alert.IsExpiredAt(now):
		return nil, false, apperrors.Clone(apperrors.ErrInactiveAlert, "alert has expired")
	}

	ack, created, err := t.acks.Upsert(ctx, &models.Acknowledgment{
		AlertID:        alert.ID,
		UserID:         actor.UserID,
		AcknowledgedAt: now,
		Location:       location,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, apperrors.ErrConcurrentModification
		}
		return nil, false, fmt.Errorf("failed to record acknowledgment: %w", err)
	}

	if created {
		t.metrics.AcknowledgmentRecorded()
		if t.hub != nil {
			t.hub.BroadcastToRoom(RoomOfficials, EventAlertAcknowledged, AcknowledgmentEvent{
				AlertID:        alert.AlertID,
				UserID:         actor.UserID.Hex(),
				AcknowledgedAt: ack.AcknowledgedAt,
				Location:       ack.Location,
			})
		}
		t.logger.Info("alert acknowledged",
			zap.String("alert_id", alert.AlertID),
			zap.String("user_id", actor.UserID.Hex()))
	}
	return ack, created, nil
}
