package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/notify"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
)

const maxPushBody = 120

func (h *Handlers) username(ctx context.Context, userID string) string {
	names, err := h.users.Usernames(ctx, []string{userID})
	if err != nil || names[userID] == "" {
		return "Someone"
	}
	return names[userID]
}

// send stores and pushes a notification. Failures never fail the request.
func (h *Handlers) send(ctx context.Context, n notify.Notification) {
	if err := h.notifier.Notify(ctx, n); err != nil {
		logger.Log.Warn("Failed to send notification",
			zap.Error(err),
			zap.String("type", n.Type),
			logger.WithUserID(n.UserID),
		)
	}
}

func (h *Handlers) notifyFriendRequest(ctx context.Context, fr *models.FriendRequest) {
	h.send(ctx, notify.Notification{
		UserID: fr.FriendedUserID,
		Type:   models.NotificationFriendRequest,
		Title:  "New friend request",
		Body:   h.username(ctx, fr.FriendingUserID) + " sent you a friend request",
		Data:   map[string]interface{}{"friend_request": fr.ID, "friending_user": fr.FriendingUserID},
	})
}

func (h *Handlers) notifyMatchRequest(ctx context.Context, mr *models.MatchRequest) {
	data := map[string]interface{}{"match_request": mr.ID, "match_requesting_user": mr.MatchRequestingUserID}
	if mr.PostID != nil {
		data["post"] = *mr.PostID
	}
	h.send(ctx, notify.Notification{
		UserID: mr.MatchRequestedUserID,
		Type:   models.NotificationMatchRequest,
		Title:  "New match request",
		Body:   h.username(ctx, mr.MatchRequestingUserID) + " thinks your mist is about them",
		Data:   data,
	})
}

func (h *Handlers) notifyTag(ctx context.Context, tag *models.Tag, comment *models.Comment) {
	h.send(ctx, notify.Notification{
		UserID: tag.TaggedUserID,
		Type:   models.NotificationTag,
		Title:  "You were tagged",
		Body:   h.username(ctx, tag.TaggingUserID) + " tagged you in a comment",
		Data:   map[string]interface{}{"tag": tag.ID, "comment": comment.ID, "post": comment.PostID},
	})
}

func (h *Handlers) notifyMessage(ctx context.Context, msg *models.Message) {
	body := msg.Body
	if len([]rune(body)) > maxPushBody {
		body = string([]rune(body)[:maxPushBody]) + "…"
	}
	h.send(ctx, notify.Notification{
		UserID: msg.ReceiverID,
		Type:   models.NotificationMessage,
		Title:  h.username(ctx, msg.SenderID),
		Body:   body,
		Data:   map[string]interface{}{"message": msg.ID, "sender": msg.SenderID},
	})
}

// ListNotifications lists the requester's notifications, newest first
// GET /api/v1/notifications?unread=true
func (h *Handlers) ListNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	order := byTimestamp
	order.Desc = true
	db := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID)
	if c.Query("unread") == "true" {
		db = db.Where("read = ?", false)
	}

	notifications := []models.Notification{}
	if err := db.Order(order).Limit(limitParam(c)).Find(&notifications).Error; err != nil {
		util.RespondInternalError(c, "failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, notifications)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// MarkNotificationsRead marks the given notifications, or all of them when
// ids is empty, as read
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req markReadRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	db := h.db.WithContext(c.Request.Context()).Model(&models.Notification{}).Where("user_id = ? AND read = ?", userID, false)
	if len(req.IDs) > 0 {
		db = db.Where("id IN ?", req.IDs)
	}
	result := db.Update("read", true)
	if result.Error != nil {
		util.RespondInternalError(c, "failed to mark notifications read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": result.RowsAffected})
}
