package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/api/middleware"
	"bantay-backend/internal/models"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/utils"
)

type AlertManager interface {
	Create(ctx context.Context, content models.AlertContent, actor models.Actor) (*models.Alert, error)
	Update(ctx context.Context, ref string, content models.AlertContent, actor models.Actor) (*models.Alert, error)
	Publish(ctx context.Context, ref string, actor models.Actor) (*models.PublishResult, error)
	Extend(ctx context.Context, ref string, req models.ExtendAlertRequest, actor models.Actor) (*models.Alert, error)
	Deactivate(ctx context.Context, ref string, reason string, actor models.Actor) (*models.Alert, error)
	Cancel(ctx context.Context, ref string, reason string, actor models.Actor) (*models.Alert, error)
	Get(ctx context.Context, ref string) (*models.AlertDetail, error)
	List(ctx context.Context, filter models.AlertFilter) ([]*models.Alert, int64, error)
	ListActiveForArea(ctx context.Context, area string) ([]*models.Alert, error)
	ListWithinRadius(ctx context.Context, lon, lat, km float64) ([]*models.Alert, error)
	GetStatistics(ctx context.Context, from, to time.Time) (*models.AlertStatistics, error)
}

type Acknowledger interface {
	Acknowledge(ctx context.Context, ref string, actor models.Actor, location *models.GeoPoint) (*models.Acknowledgment, bool, error)
}

type RescueManager interface {
	Create(ctx context.Context, req models.CreateRescueRequest, actor models.Actor) (*models.RescueRequest, error)
	UpdateStatus(ctx context.Context, ref string, req models.UpdateRescueStatusRequest, actor models.Actor) (*models.RescueRequest, error)
	AssignResponder(ctx context.Context, ref string, req models.AssignResponderRequest, actor models.Actor) (*models.RescueRequest, error)
	AddNote(ctx context.Context, ref string, req models.AddNoteRequest, actor models.Actor) (*models.RescueRequest, error)
	Get(ctx context.Context, ref string, actor models.Actor) (*models.RescueRequest, error)
	List(ctx context.Context, filter models.RescueFilter, actor models.Actor) ([]*models.RescueRequest, int64, error)
	FindWithinRadius(ctx context.Context, lon, lat, km float64) ([]*models.RescueRequest, error)
}

type AuthManager interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Refresh(ctx context.Context, userID primitive.ObjectID) (*models.LoginResponse, error)
	Profile(ctx context.Context, userID primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID primitive.ObjectID, req models.UpdateProfileRequest) (*models.User, error)
	ForgotPassword(ctx context.Context, address string) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, userID primitive.ObjectID, req models.ChangePasswordRequest) error
	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*models.User, error)
	ResendVerification(ctx context.Context, req models.ResendVerificationRequest) error
}

type UserManager interface {
	List(ctx context.Context, filter models.UserFilter, actor models.Actor) ([]*models.User, int64, error)
	Get(ctx context.Context, id primitive.ObjectID, actor models.Actor) (*models.User, error)
	Create(ctx context.Context, req models.CreateUserRequest, actor models.Actor) (*models.User, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool, actor models.Actor) error
}

// requireActor fetches the caller or writes a 401.
func requireActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		utils.AppErrorResponse(c, apperrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes and validates the body, writing a 400 on failure.
func bindJSON(c *gin.Context, v *validator.Validate, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := v.Struct(dst); err != nil {
		utils.ValidationErrorResponse(c, err)
		return false
	}
	return true
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, v *validator.Validate, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, v, dst)
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.AppErrorResponse(c, apperrors.Validation(name+" must be a valid id"))
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseCircle reads lon, lat and radiusKm, defaulting radiusKm to def.
func parseCircle(c *gin.Context, def float64) (lon, lat, km float64, ok bool) {
	var err error
	if lon, err = strconv.ParseFloat(c.Query("lon"), 64); err != nil {
		utils.AppErrorResponse(c, apperrors.Validation("lon is required and must be a number"))
		return 0, 0, 0, false
	}
	if lat, err = strconv.ParseFloat(c.Query("lat"), 64); err != nil {
		utils.AppErrorResponse(c, apperrors.Validation("lat is required and must be a number"))
		return 0, 0, 0, false
	}
	km = def
	if raw := c.Query("radiusKm"); raw != "" {
		if km, err = strconv.ParseFloat(raw, 64); err != nil {
			utils.AppErrorResponse(c, apperrors.Validation("radiusKm must be a number"))
			return 0, 0, 0, false
		}
	}
	return lon, lat, km, true
}

func boolQuery(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		utils.AppErrorResponse(c, apperrors.Validation(name+" must be true or false"))
		return nil, false
	}
	return &b, true
}
