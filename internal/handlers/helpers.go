package handlers

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/mistapp/backend/internal/errors"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/search"
	"github.com/mistapp/backend/internal/timeline"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const searchSyncTimeout = 5 * time.Second

func init() {
	// report validation errors by their JSON names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	}
}

// bindJSON binds the request body into req and responds with a field-keyed
// 400 when it does not validate.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], validationMessage(fe))
		}
		util.RespondWithAPIError(c, apierrors.FieldErrors(fields))
		return false
	}
	util.RespondBadRequest(c, "malformed request body")
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return "ensure this field has no more than " + fe.Param() + " characters"
	case "min":
		return "ensure this field has at least " + fe.Param() + " characters"
	case "email":
		return "enter a valid email address"
	default:
		return "invalid value"
	}
}

// limitParam reads ?limit, defaulting to timeline.DefaultLimit and capped at
// timeline.MaxLimit.
func limitParam(c *gin.Context) int {
	limit := util.ParseInt(c.Query("limit"), timeline.DefaultLimit)
	if limit <= 0 || limit > timeline.MaxLimit {
		limit = timeline.MaxLimit
	}
	return limit
}

// actingUser resolves a body field naming the acting user. An empty value
// means the requester; any other user requires superuser rights.
func actingUser(c *gin.Context, field, value string) (string, bool) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return "", false
	}
	if value == "" {
		return requester.ID, true
	}
	if !util.ActingAs(requester, value) {
		util.RespondForbidden(c, "you may only set "+field+" to yourself")
		return "", false
	}
	return value, true
}

// pairKey maps a query parameter to the column it filters
type pairKey struct {
	param  string
	column string
}

// deleteOne deletes exactly one row of model, addressed either by the :id
// path parameter or by the query parameters of its unique pair. The row's
// ownerColumn must name the requester unless they are a superuser.
func (h *Handlers) deleteOne(c *gin.Context, model interface{}, resource, ownerColumn string, keys ...pairKey) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conds := map[string]interface{}{}
	if id := c.Param("id"); id != "" {
		conds["id"] = id
	} else {
		// An incomplete pair cannot resolve to a row
		for _, k := range keys {
			v := c.Query(k.param)
			if v == "" {
				util.RespondNotFound(c, resource)
				return
			}
			conds[k.column] = v
		}
	}

	if len(conds) == 0 {
		util.RespondNotFound(c, resource)
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var count int64
	if err := db.Model(model).Where(conds).Count(&count).Error; err != nil {
		util.RespondInternalError(c, "failed to delete "+resource)
		return
	}
	if count != 1 {
		util.RespondNotFound(c, resource)
		return
	}

	if !requester.IsSuperuser {
		var owned int64
		if err := db.Model(model).Where(conds).Where(ownerColumn+" = ?", requester.ID).Count(&owned).Error; err != nil {
			util.RespondInternalError(c, "failed to delete "+resource)
			return
		}
		if owned == 0 {
			util.RespondForbidden(c)
			return
		}
	}

	if err := db.Where(conds).Delete(model).Error; err != nil {
		util.RespondInternalError(c, "failed to delete "+resource)
		return
	}
	c.Status(http.StatusNoContent)
}

// indexPostAsync pushes the post to the search index in the background
func (h *Handlers) indexPostAsync(post models.Post, username string) {
	if h.search == nil {
		return
	}
	doc := search.PostToSearchDoc(post, username)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), searchSyncTimeout)
		defer cancel()
		if err := h.search.IndexPost(ctx, doc); err != nil {
			logger.Log.Warn("Failed to index post", zap.Error(err), logger.WithPostID(doc.ID))
		}
	}()
}

func (h *Handlers) unindexPostAsync(postID string) {
	if h.search == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), searchSyncTimeout)
		defer cancel()
		if err := h.search.DeletePost(ctx, postID); err != nil {
			logger.Log.Warn("Failed to remove post from index", zap.Error(err), logger.WithPostID(postID))
		}
	}()
}

// timestampBetween matches rows whose timestamp column lies in [from, to)
func timestampBetween(from, to float64) clause.Expression {
	col := clause.Column{Name: "timestamp"}
	return clause.And(clause.Gte{Column: col, Value: from}, clause.Lt{Column: col, Value: to})
}

var byTimestamp = clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}
