package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bantay-backend/internal/models"
	apperrors "bantay-backend/pkg/errors"
)

func authRoutes(actor *models.Actor) (*MockAuthManager, http.Handler) {
	auth := &MockAuthManager{}
	h := NewAuthHandler(auth)
	router := testRouter(actor)
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	router.POST("/auth/refresh", h.RefreshToken)
	router.POST("/auth/forgot-password", h.ForgotPassword)
	router.POST("/auth/reset-password", h.ResetPassword)
	router.GET("/auth/profile", h.GetProfile)
	router.PATCH("/auth/profile", h.UpdateProfile)
	router.POST("/auth/change-password", h.ChangePassword)
	router.POST("/auth/verify-email", h.VerifyEmail)
	router.POST("/auth/resend-verification", h.ResendVerification)
	return auth, router
}

func TestRegister(t *testing.T) {
	auth, router := authRoutes(nil)
	body := map[string]interface{}{
		"username":      "juandc",
		"email":         "juan@example.com",
		"password":      "s3cret!",
		"firstName":     "Juan",
		"lastName":      "Dela Cruz",
		"contactNumber": "09171234567",
		"address":       map[string]string{"sitio": "Centro"},
	}

	auth.On("Register", mock.Anything, mock.MatchedBy(func(r models.RegisterRequest) bool {
		return r.Username == "juandc" && r.Address.Sitio == "Centro"
	})).Return(&models.LoginResponse{Token: "tok", User: models.AuthUser{Role: models.RoleResident}}, nil).Once()

	w := performJSON(t, router, http.MethodPost, "/auth/register", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body["contactNumber"] = "12345"
	w = performJSON(t, router, http.MethodPost, "/auth/register", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "valid Philippine phone number")
	auth.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	auth, router := authRoutes(nil)

	auth.On("Login", mock.Anything, models.LoginRequest{Email: "juan@example.com", Password: "s3cret!"}).
		Return(&models.LoginResponse{Token: "tok"}, nil).Once()
	auth.On("Login", mock.Anything, models.LoginRequest{Email: "juan@example.com", Password: "wrong"}).
		Return(nil, apperrors.ErrInvalidCredentials).Once()
	auth.On("Login", mock.Anything, models.LoginRequest{Email: "old@example.com", Password: "s3cret!"}).
		Return(nil, apperrors.ErrInactiveAccount).Once()

	w := performJSON(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "juan@example.com", "password": "s3cret!"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token":"tok"`)

	w = performJSON(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "juan@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))

	w = performJSON(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "old@example.com", "password": "s3cret!"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performJSON(t, router, http.MethodPost, "/auth/login", map[string]string{"email": "not-an-email", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	auth.AssertExpectations(t)
}

func TestProfileUsesAuthenticatedUser(t *testing.T) {
	actor := actorOf(models.RoleResident)
	auth, router := authRoutes(actor)
	sitio := "Ilaya"

	auth.On("Profile", mock.Anything, actor.UserID).Return(&models.User{ID: actor.UserID, Username: "juandc"}, nil).Once()
	auth.On("Refresh", mock.Anything, actor.UserID).Return(&models.LoginResponse{Token: "fresh"}, nil).Once()
	auth.On("UpdateProfile", mock.Anything, actor.UserID, mock.MatchedBy(func(r models.UpdateProfileRequest) bool {
		return r.Address != nil && r.Address.Sitio == sitio && r.FirstName == nil
	})).Return(&models.User{ID: actor.UserID}, nil).Once()

	assert.Equal(t, http.StatusOK, performJSON(t, router, http.MethodGet, "/auth/profile", nil).Code)
	assert.Equal(t, http.StatusOK, performJSON(t, router, http.MethodPost, "/auth/refresh", nil).Code)
	assert.Equal(t, http.StatusOK, performJSON(t, router, http.MethodPatch, "/auth/profile",
		map[string]interface{}{"address": map[string]string{"sitio": sitio}}).Code)
	auth.AssertExpectations(t)
}

func TestPasswordResetFlow(t *testing.T) {
	auth, router := authRoutes(nil)

	auth.On("ForgotPassword", mock.Anything, "juan@example.com").Return(nil).Once()
	auth.On("ForgotPassword", mock.Anything, "down@example.com").Return(apperrors.ErrDelivery).Once()
	auth.On("ResetPassword", mock.Anything, models.ResetPasswordRequest{Token: "abc", NewPassword: "n3wpass"}).Return(nil).Once()
	auth.On("ResetPassword", mock.Anything, models.ResetPasswordRequest{Token: "used", NewPassword: "n3wpass"}).
		Return(apperrors.Validation("reset token is invalid or expired")).Once()

	assert.Equal(t, http.StatusOK, performJSON(t, router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "juan@example.com"}).Code)
	assert.Equal(t, http.StatusBadGateway, performJSON(t, router, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "down@example.com"}).Code)
	assert.Equal(t, http.StatusOK, performJSON(t, router, http.MethodPost, "/auth/reset-password", map[string]string{"token": "abc", "newPassword": "n3wpass"}).Code)
	assert.Equal(t, http.StatusBadRequest, performJSON(t, router, http.MethodPost, "/auth/reset-password", map[string]string{"token": "used", "newPassword": "n3wpass"}).Code)
	assert.Equal(t, http.StatusBadRequest, performJSON(t, router, http.MethodPost, "/auth/reset-password", map[string]string{"token": "abc", "newPassword": "123"}).Code)
	auth.AssertExpectations(t)
}

func TestChangePassword(t *testing.T) {
	actor := actorOf(models.RoleResident)
	auth, router := authRoutes(actor)

	auth.On("ChangePassword", mock.Anything, actor.UserID, models.ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "n3wpass"}).
		Return(nil).Once()
	auth.On("ChangePassword", mock.Anything, actor.UserID, models.ChangePasswordRequest{CurrentPassword: "guess", NewPassword: "n3wpass"}).
		Return(apperrors.Validation("current password is incorrect")).Once()

	w := performJSON(t, router, http.MethodPost, "/auth/change-password", map[string]string{"currentPassword": "old-pass", "newPassword": "n3wpass"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Password changed successfully")

	w = performJSON(t, router, http.MethodPost, "/auth/change-password", map[string]string{"currentPassword": "guess", "newPassword": "n3wpass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "current password is incorrect")

	w = performJSON(t, router, http.MethodPost, "/auth/change-password", map[string]string{"currentPassword": "old-pass", "newPassword": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	auth.AssertExpectations(t)
}

func TestChangePasswordRequiresActor(t *testing.T) {
	auth, router := authRoutes(nil)
	w := performJSON(t, router, http.MethodPost, "/auth/change-password", map[string]string{"currentPassword": "old-pass", "newPassword": "n3wpass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	auth.AssertNotCalled(t, "ChangePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestEmailVerificationFlow(t *testing.T) {
	auth, router := authRoutes(nil)

	auth.On("VerifyEmail", mock.Anything, models.VerifyEmailRequest{Token: "abc"}).
		Return(&models.User{Email: "juan@example.com", IsVerified: true}, nil).Once()
	auth.On("VerifyEmail", mock.Anything, models.VerifyEmailRequest{Token: "used"}).
		Return(nil, apperrors.Validation("invalid or already used verification token")).Once()
	auth.On("ResendVerification", mock.Anything, models.ResendVerificationRequest{Email: "juan@example.com"}).Return(nil).Once()
	auth.On("ResendVerification", mock.Anything, models.ResendVerificationRequest{Email: "done@example.com"}).
		Return(apperrors.Clone(apperrors.ErrConflict, "email is already verified")).Once()

	w := performJSON(t, router, http.MethodPost, "/auth/verify-email", map[string]string{"token": "abc"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isVerified":true`)
	assert.Equal(t, http.StatusBadRequest, performJSON(t, router, http.MethodPost, "/auth/verify-email", map[string]string{"token": "used"}).Code)
	assert.Equal(t, http.StatusBadRequest, performJSON(t, router, http.MethodPost, "/auth/verify-email", map[string]string{}).Code)

	assert.Equal(t, http.StatusOK, performJSON(t, router, http.MethodPost, "/auth/resend-verification", map[string]string{"email": "juan@example.com"}).Code)
	assert.Equal(t, http.StatusConflict, performJSON(t, router, http.MethodPost, "/auth/resend-verification", map[string]string{"email": "done@example.com"}).Code)
	assert.Equal(t, http.StatusBadRequest, performJSON(t, router, http.MethodPost, "/auth/resend-verification", map[string]string{"email": "nope"}).Code)
	auth.AssertExpectations(t)
}
