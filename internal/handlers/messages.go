package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
)

type messageRequest struct {
	Body     string  `json:"body" binding:"required,max=1000"`
	Sender   string  `json:"sender"`
	Receiver string  `json:"receiver" binding:"required"`
	Post     *string `json:"post"`
}

// GET /api/v1/messages?sender=&receiver=
func (h *Handlers) ListMessages(c *gin.Context) {
	scope, ok := involvingScope(c, "sender_id", "receiver_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.Message{}, scope,
		pairKey{"sender", "sender_id"},
		pairKey{"receiver", "receiver_id"},
	)
}

// CreateMessage sends a direct message and notifies the receiver. Either
// side blocking the other forbids it.
// POST /api/v1/messages
func (h *Handlers) CreateMessage(c *gin.Context) {
	var req messageRequest
	if !bindJSON(c, &req) {
		return
	}
	senderID, ok := actingUser(c, "sender", req.Sender)
	if !ok {
		return
	}
	if !h.requireCounterpart(c, "receiver", senderID, req.Receiver) {
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
	blocked, err := h.social.IsBlocked(ctx, senderID, req.Receiver)
	if err != nil {
		util.RespondInternalError(c, "failed to check blocks")
		return
	}
	if blocked {
		util.RespondForbidden(c, "you cannot message this user")
		return
	}

	msg := models.Message{Body: req.Body, SenderID: senderID, ReceiverID: req.Receiver, PostID: req.Post}
	if err := h.db.WithContext(ctx).Create(&msg).Error; util.HandleDBError(c, err, "message") {
		return
	}
	h.notifyMessage(ctx, &msg)
	c.JSON(http.StatusCreated, msg)
}

// DELETE /api/v1/messages/:id
func (h *Handlers) DeleteMessage(c *gin.Context) {
	h.deleteOne(c, &models.Message{}, "message", "sender_id")
}

// ListConversations groups the requester's messages by counterpart, each
// conversation oldest first. Blocked counterparts are left out.
// GET /api/v1/conversations
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	blocked, err := h.social.BlockedUserIDs(ctx, userID)
	if err != nil {
		logger.Log.Warn("Failed to get blocked users", zap.Error(err), logger.WithUserID(userID))
	}
	hidden := make(map[string]struct{}, len(blocked))
	for _, id := range blocked {
		hidden[id] = struct{}{}
	}

	var messages []models.Message
	if err := h.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order(byTimestamp).Order("id").
		Find(&messages).Error; err != nil {
		util.RespondInternalError(c, "failed to list conversations")
		return
	}

	conversations := map[string][]models.Message{}
	for _, m := range messages {
		counterpart := m.ReceiverID
		if counterpart == userID {
			counterpart = m.SenderID
		}
		if _, ok := hidden[counterpart]; ok {
			continue
		}
		conversations[counterpart] = append(conversations[counterpart], m)
	}
	c.JSON(http.StatusOK, conversations)
}
