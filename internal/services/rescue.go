package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/geo"
	"bantay-backend/pkg/utils"
)

const RescueCodePrefix = "RR"

var (
	rescueStaff     = []string{models.RoleAdmin, models.RoleOfficial, models.RoleResponder}
	rescueAssigners = []string{models.RoleAdmin, models.RoleOfficial}
)

// severityPriority is the default priority when a request does not set one.
var severityPriority = map[string]int{
	"critical": 5,
	"high":     4,
	"medium":   3,
	"low":      2,
}

type RescueService struct {
	rescues  RescueStore
	users    UserStore
	ids      IDGenerator
	hub      Broadcaster
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewRescueService(rescues RescueStore, users UserStore, ids IDGenerator, hub Broadcaster, logger *zap.Logger) *RescueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescueService{
		rescues:  rescues,
		users:    users,
		ids:      ids,
		hub:      hub,
		logger:   logger,
		validate: utils.NewValidator(),
		now:      time.Now,
	}
}

func (s *RescueService) Create(ctx context.Context, req models.CreateRescueRequest, actor models.Actor) (*models.RescueRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid rescue request")
	}
	point := geo.Point{Lon: req.Longitude, Lat: req.Latitude}
	if !point.Valid() {
		return nil, apperrors.Validation("longitude and latitude must be valid coordinates")
	}

	severity := req.Severity
	if severity == "" {
		severity = "medium"
	}
	priority := req.Priority
	if priority == 0 {
		priority = severityPriority[severity]
	}

	now := s.now()
	rescue := &models.RescueRequest{
		Requester:       actor.UserID,
		ContactInfo:     req.ContactInfo,
		Location:        models.NewGeoPoint(point.Lon, point.Lat),
		Address:         req.Address.WithDefaults(),
		EmergencyType:   req.EmergencyType,
		Severity:        severity,
		Description:     req.Description,
		PersonsAffected: req.PersonsAffected,
		MedicalInfo:     req.MedicalInfo,
		Photos:          req.Photos,
		Status:          models.RescuePending,
		Priority:        priority,
		StatusHistory: []models.StatusChange{{
			Status:    models.RescuePending,
			UpdatedBy: actor.UserID,
			UpdatedAt: now,
			Notes:     "Request submitted",
		}},
		Notes:     []models.RescueNote{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i := range rescue.Photos {
		if rescue.Photos[i].UploadedAt.IsZero() {
			rescue.Photos[i].UploadedAt = now
		}
	}

	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		rescue.ID = primitive.NilObjectID
		rescue.RequestNumber, err = s.ids.Next(ctx, RescueCodePrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to generate request number: %w", err)
		}
		if err = s.rescues.Create(ctx, rescue); !errors.Is(err, repository.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Clone(apperrors.ErrConcurrentModification, "could not allocate a unique request number")
		}
		return nil, fmt.Errorf("failed to create rescue request: %w", err)
	}

	s.logger.Info("rescue request created",
		zap.String("request_number", rescue.RequestNumber),
		zap.String("emergency_type", rescue.EmergencyType),
		zap.Int("priority", rescue.Priority))
	s.broadcast(EventRescueCreated, rescue)
	return rescue, nil
}

// UpdateStatus applies one step of the rescue state machine. The write only
// lands if the request is still in the status it was read in.
func (s *RescueService) UpdateStatus(ctx context.Context, ref string, req models.UpdateRescueStatusRequest, actor models.Actor) (*models.RescueRequest, error) {
	if !actor.HasRole(rescueStaff...) {
		return nil, apperrors.ErrForbidden
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid status update")
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, req.Status) {
		return nil, apperrors.Validation(fmt.Sprintf("cannot move a %s request to %s", current.Status, req.Status))
	}

	now := s.now()
	set := bson.M{}
	if req.Status == models.RescueCompleted {
		set["completion_info"] = models.CompletionInfo{
			CompletedAt: now,
			CompletedBy: actor.UserID,
			Outcome:     req.Outcome,
			FinalNotes:  req.Notes,
		}
	}

	return s.transition(ctx, current, models.StatusChange{
		Status:    req.Status,
		UpdatedBy: actor.UserID,
		UpdatedAt: now,
		Notes:     req.Notes,
	}, set)
}

// AssignResponder attaches a responder to a pending request and acknowledges it.
func (s *RescueService) AssignResponder(ctx context.Context, ref string, req models.AssignResponderRequest, actor models.Actor) (*models.RescueRequest, error) {
	if !actor.HasRole(rescueAssigners...) {
		return nil, apperrors.ErrForbidden
	}
	responderID, err := primitive.ObjectIDFromHex(req.ResponderID)
	if err != nil {
		return nil, apperrors.Validation("responderId is not a valid id")
	}
	responder, err := s.users.FindByID(ctx, responderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("responder")
		}
		return nil, fmt.Errorf("failed to load responder: %w", err)
	}
	if !responder.IsActive || !responder.Actor().HasRole(rescueStaff...) {
		return nil, apperrors.Validation("assignee must be an active responder or official")
	}

	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if current.Status != models.RescuePending {
		return nil, apperrors.Validation(fmt.Sprintf("only pending requests can be assigned, this one is %s", current.Status))
	}

	now := s.now()
	assignment := models.Assignment{
		Responder:        responderID,
		Team:             req.Team,
		AssignedAt:       now,
		EstimatedArrival: req.EstimatedArrival,
	}
	return s.transition(ctx, current, models.StatusChange{
		Status:    models.RescueAcknowledged,
		UpdatedBy: actor.UserID,
		UpdatedAt: now,
		Notes:     "Assigned to " + responder.FullName(),
	}, bson.M{"assigned_to": assignment})
}

func (s *RescueService) transition(ctx context.Context, current *models.RescueRequest, change models.StatusChange, set bson.M) (*models.RescueRequest, error) {
	updated, err := s.rescues.TransitionStatus(ctx, current.ID, current.Status, change, set)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, apperrors.Clone(apperrors.ErrConcurrentModification, "rescue request status changed, reload and retry")
		}
		return nil, fmt.Errorf("failed to update rescue request: %w", err)
	}

	s.logger.Info("rescue request status changed",
		zap.String("request_number", updated.RequestNumber),
		zap.String("from", current.Status),
		zap.String("to", change.Status),
		zap.String("actor", change.UpdatedBy.Hex()))
	s.broadcast(EventRescueUpdated, updated)
	return updated, nil
}

// AddNote appends a note. Residents may only comment on their own requests
// and cannot write internal notes.
func (s *RescueService) AddNote(ctx context.Context, ref string, req models.AddNoteRequest, actor models.Actor) (*models.RescueRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid note")
	}
	current, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	staff := actor.HasRole(rescueStaff...)
	if !staff && (req.IsInternal || current.Requester != actor.UserID) {
		return nil, apperrors.ErrForbidden
	}

	updated, err := s.rescues.AddNote(ctx, current.ID, models.RescueNote{
		Author:     actor.UserID,
		Content:    req.Content,
		IsInternal: req.IsInternal,
		CreatedAt:  s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("rescue request")
		}
		return nil, fmt.Errorf("failed to add note: %w", err)
	}
	s.broadcast(EventRescueNoteAdded, updated)
	return visibleTo(updated, actor), nil
}

func (s *RescueService) Get(ctx context.Context, ref string, actor models.Actor) (*models.RescueRequest, error) {
	rescue, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !actor.HasRole(rescueStaff...) && rescue.Requester != actor.UserID {
		return nil, apperrors.NotFound("rescue request")
	}
	return visibleTo(rescue, actor), nil
}

// List returns requests; residents only ever see their own.
func (s *RescueService) List(ctx context.Context, filter models.RescueFilter, actor models.Actor) ([]*models.RescueRequest, int64, error) {
	if !actor.HasRole(rescueStaff...) {
		self := actor.UserID
		filter.Requester = &self
	}
	items, total, err := s.rescues.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rescue requests: %w", err)
	}
	for i, r := range items {
		items[i] = visibleTo(r, actor)
	}
	return items, total, nil
}

func (s *RescueService) FindWithinRadius(ctx context.Context, lon, lat, km float64) ([]*models.RescueRequest, error) {
	center := geo.Point{Lon: lon, Lat: lat}
	if !center.Valid() {
		return nil, apperrors.Validation("lon and lat must be valid coordinates")
	}
	if !geo.RadiusInRange(km) {
		return nil, apperrors.Validation(fmt.Sprintf("radiusKm must be between %.1f and %.0f", geo.MinRadiusKm, geo.MaxRadiusKm))
	}
	items, err := s.rescues.FindWithinRadius(ctx, center, km)
	if err != nil {
		return nil, fmt.Errorf("failed to search rescue requests: %w", err)
	}
	return items, nil
}

func (s *RescueService) find(ctx context.Context, ref string) (*models.RescueRequest, error) {
	var (
		rescue *models.RescueRequest
		err    error
	)
	if id, parseErr := primitive.ObjectIDFromHex(ref); parseErr == nil {
		rescue, err = s.rescues.FindByID(ctx, id)
	} else {
		rescue, err = s.rescues.FindByNumber(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("rescue request")
		}
		return nil, fmt.Errorf("failed to load rescue request: %w", err)
	}
	return rescue, nil
}

func (s *RescueService) broadcast(event string, rescue *models.RescueRequest) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(RoomOfficials, event, rescue)
}

// visibleTo strips internal notes for residents.
func visibleTo(r *models.RescueRequest, actor models.Actor) *models.RescueRequest {
	if actor.HasRole(rescueStaff...) {
		return r
	}
	out := *r
	out.Notes = make([]models.RescueNote, 0, len(r.Notes))
	for _, n := range r.Notes {
		if !n.IsInternal {
			out.Notes = append(out.Notes, n)
		}
	}
	return &out
}
