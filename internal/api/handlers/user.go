package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/utils"
)

type UserHandler struct {
	users     UserManager
	validator *validator.Validate
}

func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{
		users:     users,
		validator: utils.NewValidator(),
	}
}

// GetUsers lists accounts, filtered by role, sitio and active flag.
func (h *UserHandler) GetUsers(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, limit := utils.ParsePagination(c)
	filter := models.UserFilter{
		Role:  c.Query("role"),
		Sitio: c.Query("sitio"),
		Page:  page,
		Limit: limit,
	}
	if filter.IsActive, ok = boolQuery(c, "active"); !ok {
		return
	}

	users, total, err := h.users.List(c.Request.Context(), filter, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, http.StatusOK, "Users retrieved successfully", users, utils.NewPagination(page, limit, total))
}

func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), id, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "User retrieved successfully", user)
}

// CreateUser lets an admin add an account with any role.
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateUserRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "User created successfully", user)
}

func (h *UserHandler) ChangeUserStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req models.SetActiveRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	if err := h.users.SetActive(c.Request.Context(), id, *req.IsActive, actor); err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "User status updated successfully", gin.H{"id": id.Hex(), "isActive": *req.IsActive})
}
