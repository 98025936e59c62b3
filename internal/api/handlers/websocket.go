package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bantay-backend/internal/api/middleware"
	"bantay-backend/internal/models"
	"bantay-backend/internal/services"
	"bantay-backend/internal/websocket"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/jwt"
	"bantay-backend/pkg/utils"
)

// WebSocketHandler upgrades authenticated connections onto the realtime hub.
type WebSocketHandler struct {
	manager *websocket.Manager
	tokens  *jwt.JWTUtil
	logger  *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, tokens *jwt.JWTUtil, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{manager: manager, tokens: tokens, logger: logger}
}

// roomsFor lists the rooms a connection joins: its own, the barangay display
// and, for staff, the officials room.
func roomsFor(userID primitive.ObjectID, role string) []string {
	rooms := []string{services.UserRoom(userID), services.RoomBarangay}
	if role == models.RoleAdmin || role == models.RoleOfficial || role == models.RoleResponder {
		rooms = append(rooms, services.RoomOfficials)
	}
	return rooms
}

// HandleWebSocket takes the JWT from ?token= or the Authorization header.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrUnauthorized, "authentication token required"))
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Debug("websocket connection rejected", zap.Error(err))
		utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid authentication token"))
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid authentication token"))
		return
	}

	conn, err := h.manager.GetUpgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.NewString(), claims.UserID, claims.Role, roomsFor(userID, claims.Role), conn)
	if err := h.manager.RegisterClient(client); err != nil {
		h.logger.Warn("websocket client registration failed", zap.Error(err))
		_ = conn.Close()
		return
	}

	h.logger.Info("websocket client connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", claims.UserID),
		zap.Strings("rooms", client.Rooms))
}

// GetConnectedClients reports hub statistics for staff dashboards.
func (h *WebSocketHandler) GetConnectedClients(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Realtime connections", gin.H{
		"connectedClients": h.manager.GetConnectedClients(),
		"stats":            h.manager.GetClientStats(),
	})
}
