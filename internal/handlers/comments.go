package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/timeline"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListComments lists permissible comments, oldest first
// GET /api/v1/comments?post=&author=
func (h *Handlers) ListComments(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	comments, err := h.timeline.ListComments(c.Request.Context(), timeline.CommentQuery{
		ViewerID: userID,
		PostID:   c.Query("post"),
		AuthorID: c.Query("author"),
		Limit:    limitParam(c),
	})
	if err != nil {
		util.RespondInternalError(c, "failed to list comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment comments on a post. @username mentions tag the mentioned
// users, who are notified.
// POST /api/v1/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	var req dto.CreateCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	authorID, ok := actingUser(c, "author", req.Author)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.posts.GetPost(ctx, req.Post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.RespondValidationError(c, "post", "invalid post id")
			return
		}
		util.RespondInternalError(c, "failed to get post")
		return
	}

	comment := models.Comment{Body: req.Body, PostID: req.Post, AuthorID: authorID}
	if err := h.db.WithContext(ctx).Create(&comment).Error; util.HandleDBError(c, err, "comment") {
		return
	}

	if mentions := util.ExtractMentions(req.Body); len(mentions) > 0 {
		h.tagMentions(ctx, &comment, mentions)
	}

	out, err := h.timeline.DecorateComments(ctx, []*models.Comment{&comment})
	if err != nil {
		util.RespondInternalError(c, "failed to load comment")
		return
	}
	c.JSON(http.StatusCreated, out[0])
}

// tagMentions tags every mentioned user that exists and is not the author
func (h *Handlers) tagMentions(ctx context.Context, comment *models.Comment, usernames []string) {
	var users []models.User
	if err := h.db.WithContext(ctx).Where("LOWER(username) IN ?", usernames).Find(&users).Error; err != nil {
		logger.Log.Warn("Failed to resolve mentions", zap.Error(err), logger.WithCommentID(comment.ID))
		return
	}
	for _, u := range users {
		if u.ID == comment.AuthorID {
			continue
		}
		tag := models.Tag{CommentID: comment.ID, TaggedUserID: u.ID, TaggingUserID: comment.AuthorID}
		if err := h.db.WithContext(ctx).Create(&tag).Error; err != nil {
			if !errors.Is(err, gorm.ErrDuplicatedKey) {
				logger.Log.Warn("Failed to create tag", zap.Error(err), logger.WithCommentID(comment.ID))
			}
			continue
		}
		h.notifyTag(ctx, &tag, comment)
	}
}

// GetComment returns one comment with its aggregates
// GET /api/v1/comments/:id
func (h *Handlers) GetComment(c *gin.Context) {
	var comment models.Comment
	err := h.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&comment).Error
	if util.HandleDBError(c, err, "comment") {
		return
	}
	out, err := h.timeline.DecorateComments(c.Request.Context(), []*models.Comment{&comment})
	if err != nil {
		util.RespondInternalError(c, "failed to load comment")
		return
	}
	c.JSON(http.StatusOK, out[0])
}

// DeleteComment deletes the requester's comment with its votes, flags and tags
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var comment models.Comment
	err := h.db.WithContext(ctx).Where("id = ?", c.Param("id")).First(&comment).Error
	if util.HandleDBError(c, err, "comment") {
		return
	}
	if !util.ActingAs(requester, comment.AuthorID) {
		util.RespondForbidden(c, "only the author can delete this comment")
		return
	}

	if err := h.posts.DeleteComment(ctx, comment.ID); err != nil {
		util.RespondInternalError(c, "failed to delete comment")
		return
	}
	c.Status(http.StatusNoContent)
}
