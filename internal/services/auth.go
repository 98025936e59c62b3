package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bantay-backend/internal/models"
	"bantay-backend/internal/repository"
	"bantay-backend/pkg/email"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/geo"
	"bantay-backend/pkg/jwt"
	"bantay-backend/pkg/utils"
)

type AuthService struct {
	users    UserStore
	jwtUtil  *jwt.JWTUtil
	mailer   AccountMailer
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewAuthService(users UserStore, jwtUtil *jwt.JWTUtil, mailer AccountMailer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    users,
		jwtUtil:  jwtUtil,
		mailer:   mailer,
		logger:   logger,
		validate: utils.NewValidator(),
		now:      time.Now,
	}
}

// Register creates a resident account, signs the caller in and emails a
// verification link. A failed verification email does not fail registration.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	user, err := newUser(ctx, s.users, s.validate, req, models.RoleResident, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	if err := s.sendVerification(ctx, user); err != nil {
		s.logger.Warn("failed to send verification email", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrInactiveAccount
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	return s.issue(user)
}

// Refresh issues a new token for a still-active account.
func (s *AuthService) Refresh(ctx context.Context, userID primitive.ObjectID) (*models.LoginResponse, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrInactiveAccount
	}
	return s.issue(user)
}

func (s *AuthService) Profile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid profile update")
	}

	set := bson.M{"updated_at": s.now()}
	if req.FirstName != nil {
		set["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		set["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if req.ContactNumber != nil {
		set["contact_number"] = *req.ContactNumber
	}
	if req.Address != nil {
		set["address"] = req.Address.WithDefaults()
	}
	if req.Location != nil {
		p := geo.Point{Lon: req.Location.Lon(), Lat: req.Location.Lat()}
		if !p.Valid() {
			return nil, apperrors.Validation("location is not a valid coordinate")
		}
		set["location"] = models.NewGeoPoint(p.Lon, p.Lat)
	}
	if req.Preferences != nil {
		set["preferences"] = *req.Preferences
	}

	user, err := s.users.UpdateProfile(ctx, userID, set)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// ForgotPassword emails a reset link. Unknown addresses succeed silently so
// the endpoint cannot be used to discover accounts.
func (s *AuthService) ForgotPassword(ctx context.Context, address string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(address))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	expiry := s.now().Add(email.ResetTokenTTL)
	if err := s.users.SetPasswordReset(ctx, user.ID, hashResetToken(token), expiry); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if s.mailer == nil {
		s.logger.Warn("password reset requested but email is disabled", zap.String("user_id", user.ID.Hex()))
		return nil
	}
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, token); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "failed to send reset email")
	}
	s.logger.Info("password reset email sent", zap.String("user_id", user.ID.Hex()))
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid reset request")
	}
	now := s.now()
	user, err := s.users.FindByResetToken(ctx, hashResetToken(req.Token), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.Validation("invalid or expired reset token")
		}
		return fmt.Errorf("failed to look up reset token: %w", err)
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.ResetPassword(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID.Hex()))
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID primitive.ObjectID, req models.ChangePasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid password change")
	}
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return apperrors.Validation("current password is incorrect")
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	// Also drops any outstanding reset token.
	if err := s.users.ResetPassword(ctx, user.ID, hash, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("user")
		}
		return fmt.Errorf("failed to change password: %w", err)
	}
	s.logger.Info("password changed", zap.String("user_id", user.ID.Hex()))
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid verification request")
	}
	user, err := s.users.VerifyEmail(ctx, hashResetToken(req.Token), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Validation("invalid or already used verification token")
		}
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}
	s.logger.Info("email verified", zap.String("user_id", user.ID.Hex()))
	return user, nil
}

// ResendVerification issues a fresh verification link. Like ForgotPassword,
// unknown addresses succeed silently.
func (s *AuthService) ResendVerification(ctx context.Context, req models.ResendVerificationRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid email")
	}
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Debug("verification resend requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.IsVerified {
		return apperrors.Clone(apperrors.ErrConflict, "email is already verified")
	}
	if err := s.sendVerification(ctx, user); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDelivery.Code, apperrors.ErrDelivery.Status, "failed to send verification email")
	}
	return nil
}

// sendVerification rotates the stored token hash and emails the raw token.
func (s *AuthService) sendVerification(ctx context.Context, user *models.User) error {
	if s.mailer == nil {
		s.logger.Warn("verification skipped, email is disabled", zap.String("user_id", user.ID.Hex()))
		return nil
	}
	token, err := newResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, hashResetToken(token), s.now()); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		return err
	}
	s.logger.Info("verification email sent", zap.String("user_id", user.ID.Hex()))
	return nil
}

func (s *AuthService) issue(user *models.User) (*models.LoginResponse, error) {
	token, expiresAt, err := s.jwtUtil.GenerateToken(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		User:      ToAuthUser(user),
	}, nil
}

func ToAuthUser(u *models.User) models.AuthUser {
	return models.AuthUser{
		ID:         u.ID.Hex(),
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		IsVerified: u.IsVerified,
	}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// newUser validates a registration, applies the barangay defaults and stores the account.
func newUser(ctx context.Context, users UserStore, validate *validator.Validate, req models.RegisterRequest, role string, now time.Time) (*models.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid registration")
	}

	location := models.NewGeoPoint(models.DefaultLongitude, models.DefaultLatitude)
	if req.Location != nil {
		p := geo.Point{Lon: req.Location.Lon(), Lat: req.Location.Lat()}
		if !p.Valid() {
			return nil, apperrors.Validation("location is not a valid coordinate")
		}
		location = models.NewGeoPoint(p.Lon, p.Lat)
	}

	address := normalizeEmail(req.Email)
	if _, err := users.FindByEmail(ctx, address); err == nil {
		return nil, apperrors.Clone(apperrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:      strings.TrimSpace(req.Username),
		Email:         address,
		Password:      hash,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		ContactNumber: req.ContactNumber,
		Role:          role,
		Address:       req.Address.WithDefaults(),
		Location:      location,
		IsActive:      true,
		Preferences:   models.DefaultPreferences(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Clone(apperrors.ErrConflict, "email or username is already registered")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func normalizeEmail(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashResetToken is what gets stored, so a leaked users collection cannot reset passwords.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
