package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bantay-backend/internal/models"
	apperrors "bantay-backend/pkg/errors"
	"bantay-backend/pkg/jwt"
	"bantay-backend/pkg/utils"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
	contextActor  = "actor"
)

// AuthMiddleware validates the bearer token and stores the caller on the context.
func AuthMiddleware(tokens *jwt.JWTUtil) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrUnauthorized, "authorization header required"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid or expired token"))
			c.Abort()
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrUnauthorized, "invalid token subject"))
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(contextActor, models.Actor{UserID: userID, Role: claims.Role})
		c.Next()
	}
}

// BearerToken accepts both "Bearer <token>" and a bare token.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

// ActorFrom returns the authenticated caller set by AuthMiddleware.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(contextActor)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// SetActor is used by handlers mounted without AuthMiddleware, mostly in tests.
func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(ContextUserID, actor.UserID.Hex())
	c.Set(ContextRole, actor.Role)
	c.Set(contextActor, actor)
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			utils.AppErrorResponse(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !actor.HasRole(roles...) {
			utils.AppErrorResponse(c, apperrors.Clone(apperrors.ErrForbidden, "insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
