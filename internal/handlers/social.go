package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/util"
	"gorm.io/gorm/clause"
)

type blockRequest struct {
	BlockingUser string `json:"blocking_user"`
	BlockedUser  string `json:"blocked_user" binding:"required"`
}

type friendRequestRequest struct {
	FriendingUser string `json:"friending_user"`
	FriendedUser  string `json:"friended_user" binding:"required"`
}

type matchRequestRequest struct {
	MatchRequestingUser string  `json:"match_requesting_user"`
	MatchRequestedUser  string  `json:"match_requested_user" binding:"required"`
	Post                *string `json:"post"`
}

// involvingScope limits a listing to rows where either column names the
// requester, unless they are a superuser.
func involvingScope(c *gin.Context, columnA, columnB string) (clause.Expression, bool) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return nil, false
	}
	if requester.IsSuperuser {
		return nil, true
	}
	return clause.Or(
		clause.Eq{Column: clause.Column{Name: columnA}, Value: requester.ID},
		clause.Eq{Column: clause.Column{Name: columnB}, Value: requester.ID},
	), true
}

// requireCounterpart checks that the target user exists and differs from the
// acting user.
func (h *Handlers) requireCounterpart(c *gin.Context, field, actorID, targetID string) bool {
	if actorID == targetID {
		util.RespondValidationError(c, field, "cannot target yourself")
		return false
	}
	if _, err := h.users.GetUser(c.Request.Context(), targetID); err != nil {
		util.RespondValidationError(c, field, "invalid user id")
		return false
	}
	return true
}

// GET /api/v1/blocks?blocking_user=&blocked_user=
func (h *Handlers) ListBlocks(c *gin.Context) {
	scope, ok := ownerScope(c, "blocking_user", "blocking_user_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.Block{}, scope,
		pairKey{"blocking_user", "blocking_user_id"},
		pairKey{"blocked_user", "blocked_user_id"},
	)
}

// CreateBlock blocks a user. Blocked users disappear from each other's
// listings and cannot message each other.
// POST /api/v1/blocks
func (h *Handlers) CreateBlock(c *gin.Context) {
	var req blockRequest
	if !bindJSON(c, &req) {
		return
	}
	blockingID, ok := actingUser(c, "blocking_user", req.BlockingUser)
	if !ok {
		return
	}
	if !h.requireCounterpart(c, "blocked_user", blockingID, req.BlockedUser) {
		return
	}

	block := models.Block{BlockingUserID: blockingID, BlockedUserID: req.BlockedUser}
	if err := h.db.WithContext(c.Request.Context()).Create(&block).Error; util.HandleDBError(c, err, "block", "blocking_user", "blocked_user") {
		return
	}
	c.JSON(http.StatusCreated, block)
}

// DELETE /api/v1/blocks/:id
// DELETE /api/v1/blocks?blocking_user=&blocked_user=
func (h *Handlers) DeleteBlock(c *gin.Context) {
	h.deleteOne(c, &models.Block{}, "block", "blocking_user_id",
		pairKey{"blocking_user", "blocking_user_id"},
		pairKey{"blocked_user", "blocked_user_id"},
	)
}

// GET /api/v1/friend-requests?friending_user=&friended_user=
func (h *Handlers) ListFriendRequests(c *gin.Context) {
	scope, ok := involvingScope(c, "friending_user_id", "friended_user_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.FriendRequest{}, scope,
		pairKey{"friending_user", "friending_user_id"},
		pairKey{"friended_user", "friended_user_id"},
	)
}

// CreateFriendRequest sends a friend request and notifies its recipient.
// Two users are friends once each has requested the other.
// POST /api/v1/friend-requests
func (h *Handlers) CreateFriendRequest(c *gin.Context) {
	var req friendRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	friendingID, ok := actingUser(c, "friending_user", req.FriendingUser)
	if !ok {
		return
	}
	if !h.requireCounterpart(c, "friended_user", friendingID, req.FriendedUser) {
		return
	}
	ctx := c.Request.Context()
	if blocked, err := h.social.IsBlocked(ctx, friendingID, req.FriendedUser); err == nil && blocked {
		util.RespondForbidden(c, "you cannot send a request to this user")
		return
	}

	fr := models.FriendRequest{FriendingUserID: friendingID, FriendedUserID: req.FriendedUser}
	if err := h.db.WithContext(ctx).Create(&fr).Error; util.HandleDBError(c, err, "friend request", "friending_user", "friended_user") {
		return
	}
	h.notifyFriendRequest(ctx, &fr)
	c.JSON(http.StatusCreated, fr)
}

// DELETE /api/v1/friend-requests/:id
// DELETE /api/v1/friend-requests?friending_user=&friended_user=
func (h *Handlers) DeleteFriendRequest(c *gin.Context) {
	h.deleteOne(c, &models.FriendRequest{}, "friend request", "friending_user_id",
		pairKey{"friending_user", "friending_user_id"},
		pairKey{"friended_user", "friended_user_id"},
	)
}

// GET /api/v1/match-requests?match_requesting_user=&match_requested_user=
func (h *Handlers) ListMatchRequests(c *gin.Context) {
	scope, ok := involvingScope(c, "match_requesting_user_id", "match_requested_user_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.MatchRequest{}, scope,
		pairKey{"match_requesting_user", "match_requesting_user_id"},
		pairKey{"match_requested_user", "match_requested_user_id"},
	)
}

// CreateMatchRequest asks to match with a user, optionally over a post,
// and notifies them
// POST /api/v1/match-requests
func (h *Handlers) CreateMatchRequest(c *gin.Context) {
	var req matchRequestRequest
	if !bindJSON(c, &req) {
		return
	}
	requestingID, ok := actingUser(c, "match_requesting_user", req.MatchRequestingUser)
	if !ok {
		return
	}
	if !h.requireCounterpart(c, "match_requested_user", requestingID, req.MatchRequestedUser) {
		return
	}
	if req.Post != nil && *req.Post != "" {
		if _, ok := h.requirePost(c, "post", *req.Post); !ok {
			return
		}
	} else {
		req.Post = nil
	}
	ctx := c.Request.Context()
	if blocked, err := h.social.IsBlocked(ctx, requestingID, req.MatchRequestedUser); err == nil && blocked {
		util.RespondForbidden(c, "you cannot send a request to this user")
		return
	}

	mr := models.MatchRequest{
		MatchRequestingUserID: requestingID,
		MatchRequestedUserID:  req.MatchRequestedUser,
		PostID:                req.Post,
	}
	if err := h.db.WithContext(ctx).Create(&mr).Error; util.HandleDBError(c, err, "match request", "match_requesting_user", "match_requested_user") {
		return
	}
	h.notifyMatchRequest(ctx, &mr)
	c.JSON(http.StatusCreated, mr)
}

// DELETE /api/v1/match-requests/:id
// DELETE /api/v1/match-requests?match_requesting_user=&match_requested_user=
func (h *Handlers) DeleteMatchRequest(c *gin.Context) {
	h.deleteOne(c, &models.MatchRequest{}, "match request", "match_requesting_user_id",
		pairKey{"match_requesting_user", "match_requesting_user_id"},
		pairKey{"match_requested_user", "match_requested_user_id"},
	)
}
