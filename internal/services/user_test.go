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
)

func mustObjectID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

func TestUserService_AdminOnly(t *testing.T) {
	users := newFakeUserStore()
	svc := NewUserService(users, nil)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, registration())
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	official := actorFor(models.RoleOfficial)
	_, _, err = svc.List(ctx, models.UserFilter{}, official)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	req := models.CreateUserRequest{RegisterRequest: registration(), Role: models.RoleResponder}
	req.Email, req.Username = "medic@example.com", "medic1"
	_, err = svc.Create(ctx, req, official)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	medic, err := svc.Create(ctx, req, admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, models.RoleResponder, medic.Role)

	req.Role = "mayor"
	req.Email, req.Username = "mayor@example.com", "mayor1"
	_, err = svc.Create(ctx, req, admin.Actor())
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	list, total, err := svc.List(ctx, models.UserFilter{Role: models.RoleResponder}, admin.Actor())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, medic.ID, list[0].ID)
}

func TestUserService_GetAndSetActive(t *testing.T) {
	users := newFakeUserStore()
	svc := NewUserService(users, nil)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, registration())
	require.NoError(t, err)
	other := resident("Centro", centro)
	require.NoError(t, users.Create(ctx, other))

	self, err := svc.Get(ctx, other.ID, other.Actor())
	require.NoError(t, err)
	assert.Equal(t, other.ID, self.ID)

	_, err = svc.Get(ctx, admin.ID, other.Actor())
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = svc.Get(ctx, primitive.NewObjectID(), admin.Actor())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.True(t, errors.Is(svc.SetActive(ctx, admin.ID, false, admin.Actor()), apperrors.ErrValidation))
	assert.True(t, errors.Is(svc.SetActive(ctx, admin.ID, false, other.Actor()), apperrors.ErrForbidden))
	assert.True(t, errors.Is(svc.SetActive(ctx, primitive.NewObjectID(), false, admin.Actor()), apperrors.ErrNotFound))

	require.NoError(t, svc.SetActive(ctx, other.ID, false, admin.Actor()))
	stored, _ := users.FindByID(ctx, other.ID)
	assert.False(t, stored.IsActive)
}
