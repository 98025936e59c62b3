package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/models"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/geo"
)

func recipientIDs(recipients []models.Recipient) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, len(recipients))
	for i, r := range recipients {
		ids[i] = r.UserID
	}
	return ids
}

func TestValidateTarget(t *testing.T) {
	center := models.NewGeoPoint(centro.Lon, centro.Lat)
	tests := []struct {
		name   string
		target models.TargetArea
		valid  bool
	}{
		{"barangay wide", models.TargetArea{Type: models.TargetBarangayWide}, true},
		{"specific", models.TargetArea{Type: models.TargetSpecific, Areas: []string{"Centro"}}, true},
		{"specific without areas", models.TargetArea{Type: models.TargetSpecific}, false},
		{"radius lower bound", models.TargetArea{Type: models.TargetRadius, Radius: &models.RadiusTarget{Center: center, RadiusKm: 0.1}}, true},
		{"radius upper bound", models.TargetArea{Type: models.TargetRadius, Radius: &models.RadiusTarget{Center: center, RadiusKm: 50}}, true},
		{"radius too small", models.TargetArea{Type: models.TargetRadius, Radius: &models.RadiusTarget{Center: center, RadiusKm: 0.05}}, false},
		{"radius too large", models.TargetArea{Type: models.TargetRadius, Radius: &models.RadiusTarget{Center: center, RadiusKm: 50.5}}, false},
		{"radius missing", models.TargetArea{Type: models.TargetRadius}, false},
		{"radius bad center", models.TargetArea{Type: models.TargetRadius, Radius: &models.RadiusTarget{Center: models.NewGeoPoint(0, 95), RadiusKm: 1}}, false},
		{"unknown type", models.TargetArea{Type: "province"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTarget(tt.target)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
		})
	}
}

func TestResolve_BarangayWideSkipsInactive(t *testing.T) {
	active := resident("Centro", centro)
	inactive := resident("Centro", centro)
	inactive.IsActive = false
	r := NewRecipientResolver(newFakeUserStore(active, inactive), nil)

	recipients, err := r.Resolve(context.Background(), models.TargetArea{Type: models.TargetBarangayWide})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{active.ID}, recipientIDs(recipients))
	assert.Equal(t, active.Email, recipients[0].Email)
	assert.Equal(t, active.ContactNumber, recipients[0].PhoneNumber)
}

func TestResolve_SpecificMatchesSitios(t *testing.T) {
	a := resident("Centro", centro)
	b := resident("Ilaya", centro)
	c := resident("Looc", centro)
	r := NewRecipientResolver(newFakeUserStore(a, b, c), nil)

	recipients, err := r.Resolve(context.Background(), models.TargetArea{Type: models.TargetSpecific, Areas: []string{"Centro", "Ilaya"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []primitive.ObjectID{a.ID, b.ID}, recipientIDs(recipients))
}

func TestResolve_RadiusBoundary(t *testing.T) {
	const (
		radius = 2.0
		eps    = 1e-3
	)
	inside := resident("Centro", geo.Offset(centro, radius-eps, 45))
	outside := resident("Centro", geo.Offset(centro, radius+eps, 45))
	r := NewRecipientResolver(newFakeUserStore(inside, outside), nil)

	recipients, err := r.Resolve(context.Background(), models.TargetArea{
		Type:   models.TargetRadius,
		Radius: &models.RadiusTarget{Center: models.NewGeoPoint(centro.Lon, centro.Lat), RadiusKm: radius},
	})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{inside.ID}, recipientIDs(recipients))
}

func TestResolve_RejectsInvalidTarget(t *testing.T) {
	r := NewRecipientResolver(newFakeUserStore(), nil)
	_, err := r.Resolve(context.Background(), models.TargetArea{Type: models.TargetSpecific})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestToRecipientsDeduplicates(t *testing.T) {
	u := resident("Centro", centro)
	recipients := toRecipients([]*models.User{u, u, nil})
	assert.Len(t, recipients, 1)
}
