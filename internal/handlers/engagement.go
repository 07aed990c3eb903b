package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/moderation"
	"github.com/mistapp/backend/internal/ranking"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/telemetry"
	"github.com/mistapp/backend/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type voteRequest struct {
	Voter  string `json:"voter"`
	Post   string `json:"post" binding:"required"`
	Rating *int   `json:"rating"`
	Emoji  string `json:"emoji" binding:"max=16"`
}

type flagRequest struct {
	Flagger string `json:"flagger"`
	Post    string `json:"post" binding:"required"`
}

type commentVoteRequest struct {
	Voter   string `json:"voter"`
	Comment string `json:"comment" binding:"required"`
}

type commentFlagRequest struct {
	Flagger string `json:"flagger"`
	Comment string `json:"comment" binding:"required"`
}

type favoriteRequest struct {
	User string `json:"user"`
	Post string `json:"post" binding:"required"`
}

type featureRequest struct {
	Post      string   `json:"post" binding:"required"`
	Timestamp *float64 `json:"timestamp"`
}

type tagRequest struct {
	Comment     string `json:"comment" binding:"required"`
	TaggedUser  string `json:"tagged_user" binding:"required"`
	TaggingUser string `json:"tagging_user"`
}

// listRows responds with the rows of dest's model matching scope and the
// query parameters present among keys, newest first.
func (h *Handlers) listRows(c *gin.Context, dest interface{}, scope clause.Expression, keys ...pairKey) {
	db := h.db.WithContext(c.Request.Context())
	if scope != nil {
		db = db.Where(scope)
	}
	for _, k := range keys {
		if v := c.Query(k.param); v != "" {
			db = db.Where(k.column+" = ?", v)
		}
	}
	order := byTimestamp
	order.Desc = true
	if err := db.Order(order).Order("id").Limit(limitParam(c)).Find(dest).Error; err != nil {
		util.RespondInternalError(c, "failed to list records")
		return
	}
	c.JSON(http.StatusOK, dest)
}

// requirePost responds with a field error when the post does not exist
func (h *Handlers) requirePost(c *gin.Context, field, postID string) (*models.Post, bool) {
	post, err := h.posts.GetPost(c.Request.Context(), postID)
	if errors.Is(err, repository.ErrNotFound) {
		util.RespondValidationError(c, field, "invalid post id")
		return nil, false
	}
	if err != nil {
		util.RespondInternalError(c, "failed to get post")
		return nil, false
	}
	return post, true
}

func (h *Handlers) requireComment(c *gin.Context, field, commentID string) (*models.Comment, bool) {
	var comment models.Comment
	err := h.db.WithContext(c.Request.Context()).Where("id = ?", commentID).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondValidationError(c, field, "invalid comment id")
		return nil, false
	}
	if err != nil {
		util.RespondInternalError(c, "failed to get comment")
		return nil, false
	}
	return &comment, true
}

// GET /api/v1/votes?voter=&post=
func (h *Handlers) ListVotes(c *gin.Context) {
	h.listRows(c, &[]models.PostVote{}, nil, pairKey{"voter", "voter_id"}, pairKey{"post", "post_id"})
}

// CreateVote votes on a post and moves the post's timestamp toward now
// POST /api/v1/votes
func (h *Handlers) CreateVote(c *gin.Context) {
	var req voteRequest
	if !bindJSON(c, &req) {
		return
	}
	voterID, ok := actingUser(c, "voter", req.Voter)
	if !ok {
		return
	}
	post, ok := h.requirePost(c, "post", req.Post)
	if !ok {
		return
	}

	vote := models.PostVote{VoterID: voterID, PostID: post.ID, Rating: 1, Emoji: req.Emoji}
	if req.Rating != nil {
		vote.Rating = *req.Rating
	}

	ctx, span := h.events.TraceVote(c.Request.Context(), post.ID, voterID, vote.Rating)
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		var current models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "timestamp").
			Where("id = ?", post.ID).
			First(&current).Error; err != nil {
			return err
		}
		bumped := ranking.BumpTimestamp(current.Timestamp, h.now())
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("timestamp", bumped).Error
	})
	telemetry.EndSpan(span, err)
	if util.HandleDBError(c, err, "vote", "voter", "post") {
		return
	}
	c.JSON(http.StatusCreated, vote)
}

// DELETE /api/v1/votes/:id
// DELETE /api/v1/votes?voter=&post=
func (h *Handlers) DeleteVote(c *gin.Context) {
	h.deleteOne(c, &models.PostVote{}, "vote", "voter_id", pairKey{"voter", "voter_id"}, pairKey{"post", "post_id"})
}

// ListFlags lists the requester's flags; superusers see everyone's
// GET /api/v1/flags?flagger=&post=
func (h *Handlers) ListFlags(c *gin.Context) {
	scope, ok := ownerScope(c, "flagger", "flagger_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.PostFlag{}, scope, pairKey{"flagger", "flagger_id"}, pairKey{"post", "post_id"})
}

// CreateFlag flags a post. When the flag leaves the post's author with too
// many impermissible posts the author is banned.
// POST /api/v1/flags
func (h *Handlers) CreateFlag(c *gin.Context) {
	var req flagRequest
	if !bindJSON(c, &req) {
		return
	}
	flaggerID, ok := actingUser(c, "flagger", req.Flagger)
	if !ok {
		return
	}
	post, ok := h.requirePost(c, "post", req.Post)
	if !ok {
		return
	}

	ctx, span := h.events.TraceFlag(c.Request.Context(), post.ID, flaggerID)
	defer span.End()

	flag := models.PostFlag{FlaggerID: flaggerID, PostID: post.ID}
	if err := h.db.WithContext(ctx).Create(&flag).Error; util.HandleDBError(c, err, "flag", "flagger", "post") {
		span.SetStatus(codes.Error, "flag rejected")
		return
	}

	h.autoban(ctx, post.AuthorID)
	c.JSON(http.StatusCreated, flag)
}

// autoban bans the author's email once enough of their posts are
// impermissible. Failures are logged only.
func (h *Handlers) autoban(ctx context.Context, authorID string) {
	ctx, span := h.events.TraceAutoban(ctx, authorID)
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	n, err := h.posts.ImpermissibleCountByAuthor(ctx, authorID)
	if err != nil {
		logger.Log.Warn("Failed to count impermissible posts", zap.Error(err), logger.WithUserID(authorID))
		return
	}
	span.SetAttributes(attribute.Int("moderation.impermissible_posts", n))
	if !moderation.ShouldBan(n) {
		return
	}

	author, err := h.users.GetUser(ctx, authorID)
	if err != nil {
		logger.Log.Warn("Failed to load author for ban", zap.Error(err), logger.WithUserID(authorID))
		return
	}
	created, err := h.users.Ban(ctx, author.Email)
	if err != nil {
		logger.ErrorWithFields("Failed to ban author", err, logger.WithUserID(authorID))
		return
	}
	span.SetAttributes(attribute.Bool("moderation.banned", created))
	if created {
		metrics.Get().BansIssuedTotal.Inc()
		logger.Log.Info("Author banned",
			logger.WithUserID(authorID),
			zap.Int("impermissible_posts", n),
		)
	}
}

// DELETE /api/v1/flags/:id
// DELETE /api/v1/flags?flagger=&post=
func (h *Handlers) DeleteFlag(c *gin.Context) {
	h.deleteOne(c, &models.PostFlag{}, "flag", "flagger_id", pairKey{"flagger", "flagger_id"}, pairKey{"post", "post_id"})
}

// GET /api/v1/comment-votes?voter=&comment=
func (h *Handlers) ListCommentVotes(c *gin.Context) {
	h.listRows(c, &[]models.CommentVote{}, nil, pairKey{"voter", "voter_id"}, pairKey{"comment", "comment_id"})
}

// POST /api/v1/comment-votes
func (h *Handlers) CreateCommentVote(c *gin.Context) {
	var req commentVoteRequest
	if !bindJSON(c, &req) {
		return
	}
	voterID, ok := actingUser(c, "voter", req.Voter)
	if !ok {
		return
	}
	comment, ok := h.requireComment(c, "comment", req.Comment)
	if !ok {
		return
	}

	vote := models.CommentVote{VoterID: voterID, CommentID: comment.ID}
	if err := h.db.WithContext(c.Request.Context()).Create(&vote).Error; util.HandleDBError(c, err, "comment vote", "voter", "comment") {
		return
	}
	c.JSON(http.StatusCreated, vote)
}

// DELETE /api/v1/comment-votes/:id
// DELETE /api/v1/comment-votes?voter=&comment=
func (h *Handlers) DeleteCommentVote(c *gin.Context) {
	h.deleteOne(c, &models.CommentVote{}, "comment vote", "voter_id", pairKey{"voter", "voter_id"}, pairKey{"comment", "comment_id"})
}

// GET /api/v1/comment-flags?flagger=&comment=
func (h *Handlers) ListCommentFlags(c *gin.Context) {
	scope, ok := ownerScope(c, "flagger", "flagger_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.CommentFlag{}, scope, pairKey{"flagger", "flagger_id"}, pairKey{"comment", "comment_id"})
}

// POST /api/v1/comment-flags
func (h *Handlers) CreateCommentFlag(c *gin.Context) {
	var req commentFlagRequest
	if !bindJSON(c, &req) {
		return
	}
	flaggerID, ok := actingUser(c, "flagger", req.Flagger)
	if !ok {
		return
	}
	comment, ok := h.requireComment(c, "comment", req.Comment)
	if !ok {
		return
	}

	flag := models.CommentFlag{FlaggerID: flaggerID, CommentID: comment.ID}
	if err := h.db.WithContext(c.Request.Context()).Create(&flag).Error; util.HandleDBError(c, err, "comment flag", "flagger", "comment") {
		return
	}
	c.JSON(http.StatusCreated, flag)
}

// DELETE /api/v1/comment-flags/:id
// DELETE /api/v1/comment-flags?flagger=&comment=
func (h *Handlers) DeleteCommentFlag(c *gin.Context) {
	h.deleteOne(c, &models.CommentFlag{}, "comment flag", "flagger_id", pairKey{"flagger", "flagger_id"}, pairKey{"comment", "comment_id"})
}

// GET /api/v1/favorites?user=&post=
func (h *Handlers) ListFavorites(c *gin.Context) {
	scope, ok := ownerScope(c, "user", "user_id")
	if !ok {
		return
	}
	h.listRows(c, &[]models.Favorite{}, scope, pairKey{"user", "user_id"}, pairKey{"post", "post_id"})
}

// POST /api/v1/favorites
func (h *Handlers) CreateFavorite(c *gin.Context) {
	var req favoriteRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c, "user", req.User)
	if !ok {
		return
	}
	post, ok := h.requirePost(c, "post", req.Post)
	if !ok {
		return
	}

	fav := models.Favorite{UserID: userID, PostID: post.ID}
	if err := h.db.WithContext(c.Request.Context()).Create(&fav).Error; util.HandleDBError(c, err, "favorite", "user", "post") {
		return
	}
	c.JSON(http.StatusCreated, fav)
}

// DELETE /api/v1/favorites/:id
// DELETE /api/v1/favorites?user=&post=
func (h *Handlers) DeleteFavorite(c *gin.Context) {
	h.deleteOne(c, &models.Favorite{}, "favorite", "user_id", pairKey{"user", "user_id"}, pairKey{"post", "post_id"})
}

// GET /api/v1/features?post=
func (h *Handlers) ListFeatures(c *gin.Context) {
	h.listRows(c, &[]models.Feature{}, nil, pairKey{"post", "post_id"})
}

// CreateFeature features a post on the day of timestamp (default now).
// Superusers only.
// POST /api/v1/features
func (h *Handlers) CreateFeature(c *gin.Context) {
	var req featureRequest
	if !bindJSON(c, &req) {
		return
	}
	post, ok := h.requirePost(c, "post", req.Post)
	if !ok {
		return
	}

	feature := models.Feature{PostID: post.ID}
	if req.Timestamp != nil {
		feature.Timestamp = *req.Timestamp
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&feature).Error; util.HandleDBError(c, err, "feature", "post") {
		return
	}
	c.JSON(http.StatusCreated, feature)
}

// DELETE /api/v1/features/:id
// DELETE /api/v1/features?post=
func (h *Handlers) DeleteFeature(c *gin.Context) {
	h.deleteOne(c, &models.Feature{}, "feature", "post_id", pairKey{"post", "post_id"})
}

// GET /api/v1/tags?comment=&tagged_user=&tagging_user=
func (h *Handlers) ListTags(c *gin.Context) {
	h.listRows(c, &[]models.Tag{}, nil,
		pairKey{"comment", "comment_id"},
		pairKey{"tagged_user", "tagged_user_id"},
		pairKey{"tagging_user", "tagging_user_id"},
	)
}

// CreateTag tags a user in a comment and notifies them
// POST /api/v1/tags
func (h *Handlers) CreateTag(c *gin.Context) {
	var req tagRequest
	if !bindJSON(c, &req) {
		return
	}
	taggingID, ok := actingUser(c, "tagging_user", req.TaggingUser)
	if !ok {
		return
	}
	comment, ok := h.requireComment(c, "comment", req.Comment)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.users.GetUser(ctx, req.TaggedUser); err != nil {
		util.RespondValidationError(c, "tagged_user", "invalid user id")
		return
	}

	tag := models.Tag{CommentID: comment.ID, TaggedUserID: req.TaggedUser, TaggingUserID: taggingID}
	if err := h.db.WithContext(ctx).Create(&tag).Error; util.HandleDBError(c, err, "tag", "comment", "tagged_user") {
		return
	}
	h.notifyTag(ctx, &tag, comment)
	c.JSON(http.StatusCreated, tag)
}

// DELETE /api/v1/tags/:id
// DELETE /api/v1/tags?comment=&tagged_user=
func (h *Handlers) DeleteTag(c *gin.Context) {
	h.deleteOne(c, &models.Tag{}, "tag", "tagging_user_id", pairKey{"comment", "comment_id"}, pairKey{"tagged_user", "tagged_user_id"})
}

// ownerScope limits a listing to rows whose column names the requester,
// unless they are a superuser. Asking for another user's rows is forbidden.
func ownerScope(c *gin.Context, param, column string) (clause.Expression, bool) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return nil, false
	}
	if requester.IsSuperuser {
		return nil, true
	}
	if v := c.Query(param); v != "" && v != requester.ID {
		util.RespondForbidden(c)
		return nil, false
	}
	return clause.Eq{Column: clause.Column{Name: column}, Value: requester.ID}, true
}
