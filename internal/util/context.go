package util

import (
	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/models"
)

// Context keys set by the auth middleware
const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
)

// GetUserFromContext extracts the authenticated user from the Gin context.
// If the user is not authenticated, it responds with 401 and returns false.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get(ContextUserKey)
	if !exists {
		RespondUnauthorized(c)
		return nil, false
	}
	userPtr, ok := user.(*models.User)
	if !ok {
		RespondInternalError(c, "invalid user data in context")
		return nil, false
	}
	return userPtr, true
}

// GetUserIDFromContext extracts the user ID from the Gin context.
// If the user is not authenticated, it responds with 401 and returns false.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextUserIDKey)
	if !exists {
		RespondUnauthorized(c)
		return "", false
	}
	userIDStr, ok := userID.(string)
	if !ok {
		RespondInternalError(c, "invalid user ID in context")
		return "", false
	}
	return userIDStr, true
}

// ActingAs reports whether the requester may act as userID: either it is
// their own id or they are a superuser.
func ActingAs(requester *models.User, userID string) bool {
	return requester.ID == userID || requester.IsSuperuser
}
