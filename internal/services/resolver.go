package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bantay-backend/internal/models"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/geo"
)

// RecipientResolver maps an alert's target area onto the active users it reaches.
type RecipientResolver struct {
	users  RecipientDirectory
	logger *zap.Logger
}

func NewRecipientResolver(users RecipientDirectory, logger *zap.Logger) *RecipientResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecipientResolver{users: users, logger: logger}
}

// ValidateTarget checks that a target area is complete and its radius is in bounds.
func ValidateTarget(target models.TargetArea) error {
	switch target.Type {
	case models.TargetBarangayWide:
		return nil
	case models.TargetSpecific:
		if len(target.Areas) == 0 {
			return apperrors.Validation("targetArea.areas must name at least one area")
		}
		return nil
	case models.TargetRadius:
		if target.Radius == nil {
			return apperrors.Validation("targetArea.radius is required for radius targeting")
		}
		center := geo.Point{Lon: target.Radius.Center.Lon(), Lat: target.Radius.Center.Lat()}
		if !center.Valid() {
			return apperrors.Validation("targetArea.radius.center is not a valid coordinate")
		}
		if !geo.RadiusInRange(target.Radius.RadiusKm) {
			return apperrors.Validation(fmt.Sprintf("targetArea.radius.radiusKm must be between %.1f and %.0f km",
				geo.MinRadiusKm, geo.MaxRadiusKm))
		}
		return nil
	default:
		return apperrors.Validation("targetArea.type must be one of barangay_wide, specific, radius")
	}
}

// Resolve returns the deduplicated recipients for target. Notification
// preferences are not consulted; emergency alerts reach every matched user.
func (r *RecipientResolver) Resolve(ctx context.Context, target models.TargetArea) ([]models.Recipient, error) {
	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	var (
		users []*models.User
		err   error
	)
	switch target.Type {
	case models.TargetBarangayWide:
		users, err = r.users.FindActive(ctx)
	case models.TargetSpecific:
		users, err = r.users.FindActiveBySitios(ctx, target.Areas)
	case models.TargetRadius:
		users, err = r.withinRadius(ctx, *target.Radius)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	recipients := toRecipients(users)
	r.logger.Debug("recipients resolved",
		zap.String("target", target.Type),
		zap.Int("users", len(users)),
		zap.Int("recipients", len(recipients)))
	return recipients, nil
}

// withinRadius narrows the store's spherical pre-filter with an exact haversine check.
func (r *RecipientResolver) withinRadius(ctx context.Context, target models.RadiusTarget) ([]*models.User, error) {
	center := geo.Point{Lon: target.Center.Lon(), Lat: target.Center.Lat()}
	candidates, err := r.users.FindActiveWithinRadius(ctx, center, target.RadiusKm)
	if err != nil {
		return nil, err
	}

	inside := make([]*models.User, 0, len(candidates))
	for _, u := range candidates {
		p := geo.Point{Lon: u.Location.Lon(), Lat: u.Location.Lat()}
		if geo.WithinRadius(center, p, target.RadiusKm) {
			inside = append(inside, u)
		}
	}
	return inside, nil
}

func toRecipients(users []*models.User) []models.Recipient {
	seen := make(map[primitive.ObjectID]struct{}, len(users))
	out := make([]models.Recipient, 0, len(users))
	for _, u := range users {
		if u == nil || !u.IsActive {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, models.Recipient{
			UserID:      u.ID,
			PhoneNumber: u.ContactNumber,
			Email:       u.Email,
		})
	}
	return out
}
