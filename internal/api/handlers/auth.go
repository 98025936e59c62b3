package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/utils"
)

type AuthHandler struct {
	auth      AuthManager
	validator *validator.Validate
}

func NewAuthHandler(auth AuthManager) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		validator: utils.NewValidator(),
	}
}

// Register creates a resident account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	response, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Registration successful", response)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	response, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Login successful", response)
}

// RefreshToken mints a fresh token for the authenticated caller.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	response, err := h.auth.Refresh(c.Request.Context(), actor.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Token refreshed successfully", response)
}

func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	user, err := h.auth.Profile(c.Request.Context(), actor.UserID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Profile retrieved successfully", user)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), actor.UserID, req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Profile updated successfully", user)
}

// ForgotPassword answers the same way whether or not the address is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "If the email is registered, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Password reset successful", nil)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	if err := h.auth.ChangePassword(c.Request.Context(), actor.UserID, req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	user, err := h.auth.VerifyEmail(c.Request.Context(), req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Email verified successfully", user)
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req models.ResendVerificationRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	if err := h.auth.ResendVerification(c.Request.Context(), req); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "If the account exists, a verification email has been sent", nil)
}
