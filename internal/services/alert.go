package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	"bantay-backend/pkg/cache"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/geo"
	"bantay-backend/pkg/metrics"
	"bantay-backend/pkg/utils"
)

const (
	AlertCodePrefix = "ALT"

	// createAttempts bounds retries when a generated code collides with the unique index.
	createAttempts = 3
)

var alertEditors = []string{models.RoleAdmin, models.RoleOfficial}

type AlertServiceDeps struct {
	Alerts      AlertStore
	Audit       AuditStore
	Deliveries  DeliveryStore
	Acks        AckStore
	Resolver    *RecipientResolver
	IDs         IDGenerator
	Dispatch    DispatchSubmitter
	Cache       AlertListCache
	Broadcaster Broadcaster
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	CacheTTL    time.Duration
	Now         func() time.Time
}

// AlertService is the alert lifecycle manager: draft, publish, extend, deactivate, cancel.
// Every state change is one conditional write on the alert document, and only the
// caller whose write matched appends the audit entry.
type AlertService struct {
	alerts     AlertStore
	audit      AuditStore
	deliveries DeliveryStore
	acks       AckStore
	resolver   *RecipientResolver
	ids        IDGenerator
	dispatch   DispatchSubmitter
	cache      AlertListCache
	hub        Broadcaster
	metrics    *metrics.Metrics
	logger     *zap.Logger
	validate   *validator.Validate
	cacheTTL   time.Duration
	now        func() time.Time
}

func NewAlertService(deps AlertServiceDeps) *AlertService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = cache.DefaultCacheConfig().ActiveAlertsTTL
	}
	return &AlertService{
		alerts:     deps.Alerts,
		audit:      deps.Audit,
		deliveries: deps.Deliveries,
		acks:       deps.Acks,
		resolver:   deps.Resolver,
		ids:        deps.IDs,
		dispatch:   deps.Dispatch,
		cache:      deps.Cache,
		hub:        deps.Broadcaster,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		validate:   utils.NewValidator(),
		cacheTTL:   deps.CacheTTL,
		now:        deps.Now,
	}
}

func (s *AlertService) Create(ctx context.Context, content models.AlertContent, actor models.Actor) (*models.Alert, error) {
	if !actor.HasRole(alertEditors...) {
		return nil, apperrors.ErrForbidden
	}
	now := s.now()
	if err := s.validateContent(content, now); err != nil {
		return nil, err
	}

	channels := models.DefaultChannels()
	if content.Channels != nil {
		channels = *content.Channels
	}

	alert := &models.Alert{
		Title:            content.Title,
		Message:          content.Message,
		AlertType:        content.AlertType,
		Severity:         content.Severity,
		TargetArea:       content.TargetArea,
		Instructions:     content.Instructions,
		Media:            content.Media,
		RelatedIncidents: content.RelatedIncidents,
		CreatedBy:        actor.UserID,
		IsActive:         true,
		IsPublished:      false,
		ScheduledAt:      content.ScheduledAt,
		ExpiresAt:        content.ExpiresAt,
		Channels:         channels,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		alert.ID = primitive.NilObjectID
		alert.AlertID, err = s.ids.Next(ctx, AlertCodePrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to generate alert code: %w", err)
		}
		err = s.alerts.Create(ctx, alert)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		s.logger.Warn("alert code collision, retrying", zap.String("alert_id", alert.AlertID), zap.Int("attempt", attempt))
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Clone(apperrors.ErrConcurrentModification, "could not allocate a unique alert code")
		}
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	s.appendAudit(ctx, alert.ID, actor, models.AuditCreated, nil, "")
	s.metrics.AlertCreated(alert.AlertType)
	s.logger.Info("alert created",
		zap.String("alert_id", alert.AlertID),
		zap.String("type", alert.AlertType),
		zap.String("severity", alert.Severity),
		zap.String("actor", actor.UserID.Hex()))

	alert.Hydrate(now)
	return alert, nil
}

// Update replaces the content of a draft. Published alerts are frozen.
func (s *AlertService) Update(ctx context.Context, ref string, content models.AlertContent, actor models.Actor) (*models.Alert, error) {
	if !actor.HasRole(alertEditors...) {
		return nil, apperrors.ErrForbidden
	}
	now := s.now()
	if err := s.validateContent(content, now); err != nil {
		return nil, err
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}

	updated, err := s.alerts.UpdateContent(ctx, current.ID, content, now)
	if err != nil {
		return nil, s.classify(ctx, current.ID, err, func(a *models.Alert) error {
			if !a.IsActive {
				return apperrors.ErrInactiveAlert
			}
			if a.IsPublished {
				return apperrors.ErrAlreadyPublished
			}
			return nil
		})
	}

	s.appendAudit(ctx, updated.ID, actor, models.AuditModified, contentChanges(current, updated), "")
	updated.Hydrate(now)
	return updated, nil
}

// Publish marks a draft published, records the audience size and hands the
// recipients to the dispatcher. Delivery runs after this returns. If the
// dispatcher refuses the job, the deliveries are recorded as failed and
// DispatchStarted is false.
func (s *AlertService) Publish(ctx context.Context, ref string, actor models.Actor) (*models.PublishResult, error) {
	if !actor.HasRole(alertEditors...) {
		return nil, apperrors.ErrForbidden
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := publishable(current, now); err != nil {
		return nil, err
	}

	recipients, err := s.resolver.Resolve(ctx, current.TargetArea)
	if err != nil {
		return nil, err
	}

	published, err := s.alerts.Publish(ctx, current.ID, actor.UserID, int64(len(recipients)), now)
	if err != nil {
		return nil, s.classify(ctx, current.ID, err, func(a *models.Alert) error {
			return publishable(a, now)
		})
	}

	s.appendAudit(ctx, published.ID, actor, models.AuditPublished,
		map[string]interface{}{"recipients": len(recipients)}, "")
	s.invalidateActive(ctx)
	s.metrics.AlertPublished(published.Severity)
	s.logger.Info("alert published",
		zap.String("alert_id", published.AlertID),
		zap.Int("recipients", len(recipients)),
		zap.String("actor", actor.UserID.Hex()))

	published.Hydrate(now)
	result := &models.PublishResult{Alert: published, RecipientCount: len(recipients)}
	if s.dispatch != nil {
		// The dispatch worker gets its own copy; the caller keeps published.
		snapshot := *published
		if err := s.dispatch.Submit(ctx, &snapshot, recipients); err != nil {
			s.logger.Error("failed to start dispatch", zap.String("alert_id", published.AlertID), zap.Error(err))
		} else {
			result.DispatchStarted = true
		}
	}
	return result, nil
}

func publishable(a *models.Alert, now time.Time) error {
	switch {
	case !a.IsActive:
		return apperrors.ErrInactiveAlert
	case a.IsPublished:
		return apperrors.ErrAlreadyPublished
	case !a.ExpiresAt.After(now):
		return apperrors.Validation("alert has expired; update expiresAt before publishing")
	}
	return nil
}

// Extend moves the expiry of a live alert forward.
func (s *AlertService) Extend(ctx context.Context, ref string, req models.ExtendAlertRequest, actor models.Actor) (*models.Alert, error) {
	if !actor.HasRole(alertEditors...) {
		return nil, apperrors.ErrForbidden
	}
	now := s.now()
	if !req.ExpiresAt.After(now) {
		return nil, apperrors.Validation("expiresAt must be in the future")
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}

	before, err := s.alerts.Extend(ctx, current.ID, req.ExpiresAt, now)
	if err != nil {
		return nil, s.classify(ctx, current.ID, err, func(a *models.Alert) error {
			if !a.IsActive || !a.ExpiresAt.After(now) {
				return apperrors.ErrInactiveAlert
			}
			return nil
		})
	}

	s.appendAudit(ctx, before.ID, actor, models.AuditExtended, map[string]interface{}{
		"previousExpiresAt": before.ExpiresAt,
		"newExpiresAt":      req.ExpiresAt,
	}, req.Reason)

	extended := *before
	extended.ExpiresAt = req.ExpiresAt
	extended.UpdatedAt = now
	extended.Hydrate(now)

	if extended.IsPublished {
		s.invalidateActive(ctx)
		s.broadcast(RoomBarangay, EventAlertUpdated, &extended)
	}
	return &extended, nil
}

// Deactivate retires an alert. It is allowed after expiry.
func (s *AlertService) Deactivate(ctx context.Context, ref string, reason string, actor models.Actor) (*models.Alert, error) {
	if !actor.HasRole(alertEditors...) {
		return nil, apperrors.ErrForbidden
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := s.now()

	deactivated, err := s.alerts.Deactivate(ctx, current.ID, now)
	if err != nil {
		return nil, s.classify(ctx, current.ID, err, func(a *models.Alert) error {
			if !a.IsActive {
				return apperrors.Clone(apperrors.ErrInactiveAlert, "alert is already deactivated")
			}
			return nil
		})
	}

	s.appendAudit(ctx, deactivated.ID, actor, models.AuditDeactivated, nil, reason)
	deactivated.Hydrate(now)
	if deactivated.IsPublished {
		s.invalidateActive(ctx)
		s.broadcast(RoomBarangay, EventAlertDeactivated, deactivated)
	}
	s.logger.Info("alert deactivated", zap.String("alert_id", deactivated.AlertID), zap.String("actor", actor.UserID.Hex()))
	return deactivated, nil
}

// Cancel retires a draft that was never published.
func (s *AlertService) Cancel(ctx context.Context, ref string, reason string, actor models.Actor) (*models.Alert, error) {
	if !actor.HasRole(alertEditors...) {
		return nil, apperrors.ErrForbidden
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := s.now()

	cancelled, err := s.alerts.Cancel(ctx, current.ID, now)
	if err != nil {
		return nil, s.classify(ctx, current.ID, err, func(a *models.Alert) error {
			if !a.IsActive {
				return apperrors.ErrInactiveAlert
			}
			if a.IsPublished {
				return apperrors.Clone(apperrors.ErrAlreadyPublished, "published alerts must be deactivated, not cancelled")
			}
			return nil
		})
	}

	s.appendAudit(ctx, cancelled.ID, actor, models.AuditCancelled, nil, reason)
	cancelled.Hydrate(now)
	return cancelled, nil
}

// Get returns the alert joined with its audit trail, deliveries and acknowledgments.
func (s *AlertService) Get(ctx context.Context, ref string) (*models.AlertDetail, error) {
	alert, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	alert.Hydrate(s.now())

	detail := &models.AlertDetail{Alert: alert}
	if detail.AuditTrail, err = s.audit.ListByAlert(ctx, alert.ID); err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	if detail.Deliveries, err = s.deliveries.ListByAlert(ctx, alert.ID); err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	if detail.Acknowledgments, err = s.acks.ListByAlert(ctx, alert.ID); err != nil {
		return nil, fmt.Errorf("failed to load acknowledgments: %w", err)
	}
	return detail, nil
}

func (s *AlertService) List(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, int64, error) {
	alerts, total, err := s.alerts.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	now := s.now()
	for _, a := range alerts {
		a.Hydrate(now)
	}
	return alerts, total, nil
}

// ListActiveForArea returns live alerts for a sitio (or every live alert when
// area is empty), most severe first. Results are cached until the next lifecycle change.
func (s *AlertService) ListActiveForArea(ctx context.Context, area string) ([]*models.Alert, error) {
	now := s.now()
	key := "active:" + area
	if area == "" {
		key = "active:*"
	}

	if s.cache != nil {
		cached, ok, err := s.cache.GetAlertList(ctx, key)
		if err != nil {
			s.logger.Warn("active alert cache read failed", zap.Error(err))
		} else if ok {
			return liveOnly(cached, now), nil
		}
	}

	alerts, err := s.alerts.FindActive(ctx, area, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	SortBySeverity(alerts)

	if s.cache != nil {
		if err := s.cache.SetAlertList(ctx, key, alerts, s.cacheTTL, cache.TagActiveAlerts); err != nil {
			s.logger.Warn("active alert cache write failed", zap.Error(err))
		}
	}
	return liveOnly(alerts, now), nil
}

// ListWithinRadius returns live alerts that are barangay-wide or centred inside the circle.
func (s *AlertService) ListWithinRadius(ctx context.Context, lon, lat, km float64) ([]*models.Alert, error) {
	center := geo.Point{Lon: lon, Lat: lat}
	if !center.Valid() {
		return nil, apperrors.Validation("lon and lat must be valid coordinates")
	}
	if !geo.RadiusInRange(km) {
		return nil, apperrors.Validation(fmt.Sprintf("radiusKm must be between %.1f and %.0f", geo.MinRadiusKm, geo.MaxRadiusKm))
	}

	now := s.now()
	alerts, err := s.alerts.FindWithinRadius(ctx, center, km, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list nearby alerts: %w", err)
	}
	SortBySeverity(alerts)
	return liveOnly(alerts, now), nil
}

// GetStatistics aggregates alerts created in [from, to).
func (s *AlertService) GetStatistics(ctx context.Context, from, to time.Time) (*models.AlertStatistics, error) {
	if !from.Before(to) {
		return nil, apperrors.Validation("from must be before to")
	}
	stats, err := s.alerts.Statistics(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate alert statistics: %w", err)
	}
	ids, err := s.alerts.IDsCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate alert statistics: %w", err)
	}
	if stats.Acknowledgments, err = s.acks.CountForAlerts(ctx, ids); err != nil {
		return nil, fmt.Errorf("failed to count acknowledgments: %w", err)
	}
	return stats, nil
}

// SortBySeverity orders alerts most severe first, then newest first.
func SortBySeverity(alerts []*models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := models.SeverityRank[alerts[i].Severity], models.SeverityRank[alerts[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return publishedAt(alerts[i]).After(publishedAt(alerts[j]))
	})
}

func publishedAt(a *models.Alert) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}

func liveOnly(alerts []*models.Alert, now time.Time) []*models.Alert {
	out := make([]*models.Alert, 0, len(alerts))
	for _, a := range alerts {
		a.Hydrate(now)
		if !a.IsExpired {
			out = append(out, a)
		}
	}
	return out
}

// find accepts either the Mongo ObjectID or the ALT-YYYYMMDD-NNN code.
func (s *AlertService) find(ctx context.Context, ref string) (*models.Alert, error) {
	return findAlert(ctx, s.alerts, ref)
}

func findAlert(ctx context.Context, alerts AlertStore, ref string) (*models.Alert, error) {
	var (
		alert *models.Alert
		err   error
	)
	if id, parseErr := primitive.ObjectIDFromHex(ref); parseErr == nil {
		alert, err = alerts.FindByID(ctx, id)
	} else {
		alert, err = alerts.FindByCode(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("alert")
		}
		return nil, fmt.Errorf("failed to load alert: %w", err)
	}
	return alert, nil
}

// classify explains why a conditional write matched nothing. check inspects the
// re-read document and returns the state error; if it finds none, another writer
// changed the alert between our read and our write.
func (s *AlertService) classify(ctx context.Context, id primitive.ObjectID, err error, check func(*models.Alert) error) error {
	if !errors.Is(err, repository.ErrNoMatch) {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	current, findErr := s.alerts.FindByID(ctx, id)
	if findErr != nil {
		if errors.Is(findErr, repository.ErrNotFound) {
			return apperrors.NotFound("alert")
		}
		return fmt.Errorf("failed to reload alert: %w", findErr)
	}
	if stateErr := check(current); stateErr != nil {
		return stateErr
	}
	return apperrors.ErrConcurrentModification
}

func (s *AlertService) validateContent(content models.AlertContent, now time.Time) error {
	if err := s.validate.Struct(content); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid alert content")
	}
	if !content.ExpiresAt.After(now) {
		return apperrors.Validation("expiresAt must be in the future")
	}
	if content.ScheduledAt != nil && !content.ScheduledAt.Before(content.ExpiresAt) {
		return apperrors.Validation("scheduledAt must be before expiresAt")
	}
	return ValidateTarget(content.TargetArea)
}

// appendAudit records a transition. The state change is already committed, so a
// failed append is logged rather than returned.
func (s *AlertService) appendAudit(ctx context.Context, alertID primitive.ObjectID, actor models.Actor, kind string, changes map[string]interface{}, notes string) {
	entry := &models.AuditEntry{
		AlertID:   alertID,
		Actor:     actor.UserID,
		Type:      kind,
		Changes:   changes,
		Notes:     notes,
		Timestamp: s.now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("failed to append audit entry",
			zap.String("alert", alertID.Hex()),
			zap.String("type", kind),
			zap.Error(err))
	}
}

func (s *AlertService) invalidateActive(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateByTag(ctx, cache.TagActiveAlerts); err != nil {
		s.logger.Warn("failed to invalidate active alert cache", zap.Error(err))
	}
}

func (s *AlertService) broadcast(room, event string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(room, event, payload)
}

// contentChanges lists the fields an update touched as {from, to} pairs.
func contentChanges(before, after *models.Alert) map[string]interface{} {
	changes := map[string]interface{}{}
	diff := func(field string, from, to interface{}, changed bool) {
		if changed {
			changes[field] = map[string]interface{}{"from": from, "to": to}
		}
	}
	diff("title", before.Title, after.Title, before.Title != after.Title)
	diff("message", before.Message, after.Message, before.Message != after.Message)
	diff("alertType", before.AlertType, after.AlertType, before.AlertType != after.AlertType)
	diff("severity", before.Severity, after.Severity, before.Severity != after.Severity)
	diff("expiresAt", before.ExpiresAt, after.ExpiresAt, !before.ExpiresAt.Equal(after.ExpiresAt))
	diff("targetArea", before.TargetArea.Type, after.TargetArea.Type, before.TargetArea.Type != after.TargetArea.Type)
	if len(changes) == 0 {
		return nil
	}
	return changes
}
