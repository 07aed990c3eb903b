package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	apierrors "github.com/mistapp/backend/internal/errors"
	"gorm.io/gorm"
)

// HandleDBError handles database errors and sends appropriate HTTP responses.
// Unique violations become a 400 naming uniqueFields.
// Returns true if the error was handled (and a response was sent).
func HandleDBError(c *gin.Context, err error, resourceName string, uniqueFields ...string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		RespondNotFound(c, resourceName)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		if len(uniqueFields) == 0 {
			uniqueFields = []string{resourceName}
		}
		RespondWithAPIError(c, apierrors.Duplicate(uniqueFields...))
	default:
		RespondInternalError(c, "failed to process "+resourceName)
	}
	return true
}
