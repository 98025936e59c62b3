package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"bantay-backend/internal/models"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/utils"
)

const (
	defaultNearbyRadiusKm = 5.0
	defaultStatsWindow    = 30 * 24 * time.Hour
)

type AlertHandler struct {
	alerts    AlertManager
	acks      Acknowledger
	validator *validator.Validate
	now       func() time.Time
}

func NewAlertHandler(alerts AlertManager, acks Acknowledger) *AlertHandler {
	return &AlertHandler{
		alerts:    alerts,
		acks:      acks,
		validator: utils.NewValidator(),
		now:       time.Now,
	}
}

// GetAlerts lists alerts filtered by type, severity and lifecycle flags.
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	page, limit := utils.ParsePagination(c)
	filter := models.AlertFilter{
		AlertType: c.Query("type"),
		Severity:  c.Query("severity"),
		Page:      page,
		Limit:     limit,
	}
	var ok bool
	if filter.IsActive, ok = boolQuery(c, "active"); !ok {
		return
	}
	if filter.IsPublished, ok = boolQuery(c, "published"); !ok {
		return
	}

	alerts, total, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.PaginatedResponse(c, http.StatusOK, "Alerts retrieved successfully", alerts, utils.NewPagination(page, limit, total))
}

func (h *AlertHandler) GetActiveAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListActiveForArea(c.Request.Context(), c.Query("area"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Active alerts retrieved successfully", alerts)
}

func (h *AlertHandler) GetNearbyAlerts(c *gin.Context) {
	lon, lat, km, ok := parseCircle(c, defaultNearbyRadiusKm)
	if !ok {
		return
	}
	alerts, err := h.alerts.ListWithinRadius(c.Request.Context(), lon, lat, km)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Nearby alerts retrieved successfully", alerts)
}

// GetStatistics aggregates over [from, to). Both accept RFC 3339 or YYYY-MM-DD
// and default to the last 30 days.
func (h *AlertHandler) GetStatistics(c *gin.Context) {
	to := h.now()
	from := to.Add(-defaultStatsWindow)

	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = parseTime(raw); err != nil {
			utils.AppErrorResponse(c, apperrors.Validation("from must be RFC 3339 or YYYY-MM-DD"))
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = parseTime(raw); err != nil {
			utils.AppErrorResponse(c, apperrors.Validation("to must be RFC 3339 or YYYY-MM-DD"))
			return
		}
	}

	stats, err := h.alerts.GetStatistics(c.Request.Context(), from, to)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert statistics retrieved successfully", stats)
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// GetAlert returns the alert with its audit trail, deliveries and acknowledgments.
func (h *AlertHandler) GetAlert(c *gin.Context) {
	detail, err := h.alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert retrieved successfully", detail)
}

func (h *AlertHandler) CreateAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AlertContent
	if !bindJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alerts.Create(c.Request.Context(), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Alert created successfully", alert)
}

// UpdateAlert replaces the content of a draft.
func (h *AlertHandler) UpdateAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AlertContent
	if !bindJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alerts.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert updated successfully", alert)
}

// PublishAlert answers 202 while delivery continues in the background. When
// delivery could not be started it answers 200; the deliveries are on record as failed.
func (h *AlertHandler) PublishAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	result, err := h.alerts.Publish(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	if !result.DispatchStarted {
		utils.SuccessResponse(c, http.StatusOK, "Alert published, but delivery could not be started", result)
		return
	}
	utils.SuccessResponse(c, http.StatusAccepted, "Alert published, delivery in progress", result)
}

func (h *AlertHandler) ExtendAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.ExtendAlertRequest
	if !bindJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alerts.Extend(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert extended successfully", alert)
}

func (h *AlertHandler) DeactivateAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.ReasonRequest
	if !bindOptionalJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alerts.Deactivate(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert deactivated successfully", alert)
}

func (h *AlertHandler) CancelAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.ReasonRequest
	if !bindOptionalJSON(c, h.validator, &req) {
		return
	}

	alert, err := h.alerts.Cancel(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert cancelled successfully", alert)
}

// AcknowledgeAlert is idempotent: a repeat returns 200 with the original record.
func (h *AlertHandler) AcknowledgeAlert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req models.AcknowledgeRequest
	if !bindOptionalJSON(c, h.validator, &req) {
		return
	}

	ack, created, err := h.acks.Acknowledge(c.Request.Context(), c.Param("id"), actor, req.Location)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}
	if created {
		utils.SuccessResponse(c, http.StatusCreated, "Alert acknowledged", ack)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Alert already acknowledged", ack)
}
