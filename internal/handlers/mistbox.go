package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/util"
	"gorm.io/gorm"
)

var errNoOpensLeft = errors.New("no mistbox opens left")

type mistboxResponse struct {
	models.Mistbox
	Posts []*dto.PostResponse `json:"posts"`
}

type updateMistboxRequest struct {
	Keywords []string `json:"keywords"`
}

type openMistboxRequest struct {
	Post string `json:"post" binding:"required"`
}

func (h *Handlers) mistbox(ctx context.Context, db *gorm.DB, userID string) (*models.Mistbox, error) {
	var box models.Mistbox
	err := db.WithContext(ctx).
		Where(models.Mistbox{UserID: userID}).
		Attrs(models.Mistbox{OpensLeft: models.DefaultMistboxOpens}).
		FirstOrCreate(&box).Error
	return &box, err
}

// GetMistbox returns the requester's keywords, remaining opens and digest
// GET /api/v1/mistbox
func (h *Handlers) GetMistbox(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	box, err := h.mistbox(ctx, h.db, userID)
	if err != nil {
		util.RespondInternalError(c, "failed to load mistbox")
		return
	}
	posts, err := h.timeline.MistboxDigest(ctx, userID, box.Keywords)
	if err != nil {
		util.RespondInternalError(c, "failed to load mistbox posts")
		return
	}
	c.JSON(http.StatusOK, mistboxResponse{Mistbox: *box, Posts: posts})
}

// UpdateMistbox replaces the requester's keyword list
// PATCH /api/v1/mistbox
func (h *Handlers) UpdateMistbox(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req updateMistboxRequest
	if !bindJSON(c, &req) {
		return
	}

	keywords := make([]string, 0, len(req.Keywords))
	seen := map[string]struct{}{}
	for _, k := range req.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
	}
	if len(keywords) > models.MaxMistboxKeywords {
		util.RespondValidationError(c, "keywords", "a mistbox holds at most 10 keywords")
		return
	}

	ctx := c.Request.Context()
	box, err := h.mistbox(ctx, h.db, userID)
	if err != nil {
		util.RespondInternalError(c, "failed to load mistbox")
		return
	}
	box.Keywords = keywords
	if err := h.db.WithContext(ctx).Save(box).Error; err != nil {
		util.RespondInternalError(c, "failed to save mistbox")
		return
	}
	c.JSON(http.StatusOK, box)
}

// OpenMistboxPost spends one of today's opens on a post
// POST /api/v1/mistbox/open
func (h *Handlers) OpenMistboxPost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req openMistboxRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, ok := h.requirePost(c, "post", req.Post); !ok {
		return
	}

	ctx := c.Request.Context()
	var box *models.Mistbox
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if box, err = h.mistbox(ctx, tx, userID); err != nil {
			return err
		}
		if box.OpensLeft <= 0 {
			return errNoOpensLeft
		}
		if err := tx.Create(&models.MistboxOpen{UserID: userID, PostID: req.Post}).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Mistbox{}).
			Where("id = ? AND opens_left > 0", box.ID).
			UpdateColumn("opens_left", gorm.Expr("opens_left - 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNoOpensLeft
		}
		box.OpensLeft--
		return nil
	})
	if errors.Is(err, errNoOpensLeft) {
		util.RespondValidationError(c, "opens_left", "no mistbox opens left today")
		return
	}
	if util.HandleDBError(c, err, "mistbox", "user", "post") {
		return
	}
	c.JSON(http.StatusCreated, box)
}
