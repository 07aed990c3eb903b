package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/util"
	"gorm.io/gorm"
)

var (
	errCodeClaimed = errors.New("access code already claimed")
	errHasBadge    = errors.New("user already has the badge")
)

type claimRequest struct {
	Code string `json:"code" binding:"required"`
}

// ClaimAccessCode claims an unclaimed access code and grants the
// access-code badge. Each user can hold the badge once.
// POST /api/v1/access-codes/claim
func (h *Handlers) ClaimAccessCode(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req claimRequest
	if !bindJSON(c, &req) {
		return
	}

	var badge models.Badge
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var has int64
		if err := tx.Model(&models.Badge{}).
			Where("user_id = ? AND badge_type = ?", userID, models.BadgeAccessCode).
			Count(&has).Error; err != nil {
			return err
		}
		if has > 0 {
			return errHasBadge
		}

		var code models.AccessCode
		if err := tx.Where("code = ?", strings.TrimSpace(req.Code)).First(&code).Error; err != nil {
			return err
		}
		if code.ClaimedUserID != nil {
			return errCodeClaimed
		}

		now := models.EpochOf(h.now())
		res := tx.Model(&models.AccessCode{}).
			Where("id = ? AND claimed_user_id IS NULL", code.ID).
			Updates(map[string]interface{}{"claimed_user_id": userID, "claim_timestamp": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCodeClaimed
		}

		badge = models.Badge{UserID: userID, BadgeType: models.BadgeAccessCode, Timestamp: now}
		return tx.Create(&badge).Error
	})

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		util.RespondValidationError(c, "code", "invalid access code")
	case errors.Is(err, errCodeClaimed):
		util.RespondValidationError(c, "code", "this access code has already been claimed")
	case errors.Is(err, errHasBadge), errors.Is(err, gorm.ErrDuplicatedKey):
		util.RespondValidationError(c, "code", "you have already claimed an access code")
	case err != nil:
		util.RespondInternalError(c, "failed to claim access code")
	default:
		c.JSON(http.StatusCreated, badge)
	}
}

// GET /api/v1/badges?user=
func (h *Handlers) ListBadges(c *gin.Context) {
	h.listRows(c, &[]models.Badge{}, nil, pairKey{"user", "user_id"}, pairKey{"badge_type", "badge_type"})
}
