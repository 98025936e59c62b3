package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bantay-backend/internal/models"
	"bantay-backend/pkg/utils"
)

type RescueHandler struct {
	rescues   RescueManager
	validator *validator.Validate
}

func NewRescueHandler(rescues RescueManager) *RescueHandler {
	return &RescueHandler{
		rescues:   rescues,
		validator: utils.NewValidator(),
	}
}

func (h *RescueHandler) CreateRescueRequest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.CreateRescueRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	rescue, err := h.rescues.Create(c.Request.Context(), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Rescue request created successfully", rescue)
}

// GetRescueRequests lists requests; residents only see their own.
func (h *RescueHandler) GetRescueRequests(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	page, limit := utils.ParsePagination(c)
	filter := models.RescueFilter{Status: c.Query("status"), Page: page, Limit: limit}

	items, total, err := h.rescues.List(c.Request.Context(), filter, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, http.StatusOK, "Rescue requests retrieved successfully", items, utils.NewPagination(page, limit, total))
}

func (h *RescueHandler) GetNearbyRescueRequests(c *gin.Context) {
	lon, lat, km, ok := parseCircle(c, defaultNearbyRadiusKm)
	if !ok {
		return
	}
	items, err := h.rescues.FindWithinRadius(c.Request.Context(), lon, lat, km)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Nearby rescue requests retrieved successfully", items)
}

func (h *RescueHandler) GetRescueRequest(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	rescue, err := h.rescues.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Rescue request retrieved successfully", rescue)
}

func (h *RescueHandler) UpdateStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.UpdateRescueStatusRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	rescue, err := h.rescues.UpdateStatus(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Rescue request status updated", rescue)
}

func (h *RescueHandler) AssignResponder(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AssignResponderRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	rescue, err := h.rescues.AssignResponder(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Responder assigned", rescue)
}

func (h *RescueHandler) AddNote(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AddNoteRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}
	rescue, err := h.rescues.AddNote(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Note added", rescue)
}
