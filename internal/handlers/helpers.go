package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/auth"
	"discussion-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func identityFromContext(c *gin.Context) auth.Identity {
	return auth.Identity{
		UserID:   c.GetInt(middleware.ContextUserID),
		Username: c.GetString(middleware.ContextUsername),
		Role:     c.GetString(middleware.ContextRole),
	}
}

func writeError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	c.JSON(apperrors.HTTPStatus(code), gin.H{"error": apperrors.MessageOf(err), "code": code})
}
