package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/utils"
)

// UserService is the admin-facing user directory.
type UserService struct {
	users    UserStore
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:    users,
		logger:   logger,
		validate: utils.NewValidator(),
		now:      time.Now,
	}
}

func (s *UserService) List(ctx context.Context, filter models.UserFilter, actor models.Actor) ([]*models.User, int64, error) {
	if !actor.HasRole(models.RoleAdmin) {
		return nil, 0, apperrors.ErrForbidden
	}
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Get lets admins read anyone and everyone else read themselves.
func (s *UserService) Get(ctx context.Context, id primitive.ObjectID, actor models.Actor) (*models.User, error) {
	if !actor.HasRole(models.RoleAdmin) && actor.UserID != id {
		return nil, apperrors.ErrForbidden
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// Create adds an account with any role.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest, actor models.Actor) (*models.User, error) {
	if !actor.HasRole(models.RoleAdmin) {
		return nil, apperrors.ErrForbidden
	}
	if err := s.validate.Var(req.Role, "required,oneof=admin official resident responder"); err != nil {
		return nil, apperrors.Validation("role must be one of admin, official, resident, responder")
	}
	user, err := newUser(ctx, s.users, s.validate, req.RegisterRequest, req.Role, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created",
		zap.String("user_id", user.ID.Hex()),
		zap.String("role", user.Role),
		zap.String("actor", actor.UserID.Hex()))
	return user, nil
}

// CreateAdmin seeds an administrator outside of any request, for the CLI.
func (s *UserService) CreateAdmin(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return newUser(ctx, s.users, s.validate, req, models.RoleAdmin, s.now())
}

func (s *UserService) SetActive(ctx context.Context, id primitive.ObjectID, active bool, actor models.Actor) error {
	if !actor.HasRole(models.RoleAdmin) {
		return apperrors.ErrForbidden
	}
	if id == actor.UserID && !active {
		return apperrors.Validation("admins cannot deactivate their own account")
	}
	if err := s.users.SetActive(ctx, id, active, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("user")
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	s.logger.Info("user activation changed",
		zap.String("user_id", id.Hex()),
		zap.Bool("active", active),
		zap.String("actor", actor.UserID.Hex()))
	return nil
}
