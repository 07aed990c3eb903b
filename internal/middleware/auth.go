package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/auth"
	apierrors "github.com/mistapp/backend/internal/errors"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/util"
)

// RequireAuth validates the bearer token and stores the user and user id in
// the context. Both "Bearer <token>" and "Token <token>" are accepted.
func RequireAuth(authService auth.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromHeader(c.GetHeader("Authorization"))
		if token == "" {
			util.RespondUnauthorized(c)
			return
		}

		user, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrBanned) {
				util.RespondWithAPIError(c, apierrors.Banned())
				return
			}
			logger.Log.Debug("Token rejected", logger.WithIP(c.ClientIP()))
			util.RespondUnauthorized(c, "invalid or expired token")
			return
		}

		c.Set(util.ContextUserKey, user)
		c.Set(util.ContextUserIDKey, user.ID)
		c.Next()
	}
}

// RequireSuperuser must run after RequireAuth
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		if !user.IsSuperuser {
			util.RespondForbidden(c, "superuser access required")
			return
		}
		c.Next()
	}
}

func tokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	for _, scheme := range []string{"Bearer ", "Token "} {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return ""
}
