package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/dto"
	apierrors "github.com/mistapp/backend/internal/errors"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/ranking"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/timeline"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
)

// postQuery builds a listing query from the common query parameters:
// order, ids, words, text, author, latitude, longitude, radius, limit.
func (h *Handlers) postQuery(c *gin.Context) (timeline.Query, bool) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return timeline.Query{}, false
	}
	order, err := ranking.ParseOrder(c.Query("order"))
	if err != nil {
		util.RespondValidationError(c, "order", "order must be one of best, recent, trending")
		return timeline.Query{}, false
	}
	loc, ok := locationParams(c)
	if !ok {
		return timeline.Query{}, false
	}

	return timeline.Query{
		ViewerID: userID,
		Order:    order,
		Filter: repository.PostFilter{
			IDs:      util.ParseList(c.Query("ids")),
			Words:    util.ParseList(c.Query("words")),
			Text:     strings.TrimSpace(c.Query("text")),
			AuthorID: c.Query("author"),
		},
		Latitude:  loc.lat,
		Longitude: loc.lon,
		RadiusKm:  loc.radius,
		Limit:     limitParam(c),
	}, true
}

func (h *Handlers) respondPosts(c *gin.Context, q timeline.Query) {
	posts, err := h.timeline.ListPosts(c.Request.Context(), q)
	if err != nil {
		logger.ErrorWithFields("Failed to list posts", err, logger.WithUserID(q.ViewerID))
		util.RespondInternalError(c, "failed to list posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}

// respondPostIDs lists the given posts with the request's ordering; an
// empty id set is an empty listing.
func (h *Handlers) respondPostIDs(c *gin.Context, q timeline.Query, ids []string, err error) {
	if err != nil {
		util.RespondInternalError(c, "failed to list posts")
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusOK, []*dto.PostResponse{})
		return
	}
	q.Filter.IDs = ids
	h.respondPosts(c, q)
}

// ListPosts lists permissible posts
// GET /api/v1/posts
func (h *Handlers) ListPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	h.respondPosts(c, q)
}

// NearbyPosts lists posts near the given point or the requester's location
// GET /api/v1/posts/nearby
func (h *Handlers) NearbyPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	if !q.Near() {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		if !user.HasLocation() {
			util.RespondValidationError(c, "latitude", "a location is required")
			return
		}
		q.Latitude, q.Longitude = user.Latitude, user.Longitude
	}
	h.respondPosts(c, q)
}

// SubmittedPosts lists the requester's own posts, hidden ones included
// GET /api/v1/posts/submitted
func (h *Handlers) SubmittedPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	q.Filter.AuthorID = q.ViewerID
	q.Filter.IncludeHidden = true
	h.respondPosts(c, q)
}

// FavoritedPosts lists posts the requester has favorited
// GET /api/v1/posts/favorited
func (h *Handlers) FavoritedPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	var ids []string
	err := h.db.WithContext(c.Request.Context()).Model(&models.Favorite{}).
		Where("user_id = ?", q.ViewerID).
		Pluck("post_id", &ids).Error
	h.respondPostIDs(c, q, ids, err)
}

// FriendPosts lists posts by the requester's friends
// GET /api/v1/posts/friends
func (h *Handlers) FriendPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	friends, err := h.social.FriendIDs(ctx, q.ViewerID)
	if err != nil || len(friends) == 0 {
		h.respondPostIDs(c, q, nil, err)
		return
	}
	var ids []string
	err = h.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id IN ?", friends).
		Pluck("id", &ids).Error
	h.respondPostIDs(c, q, ids, err)
}

// TaggedPosts lists posts with a comment tagging the requester
// GET /api/v1/posts/tagged
func (h *Handlers) TaggedPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	var ids []string
	err := h.db.WithContext(c.Request.Context()).Model(&models.Comment{}).
		Joins("JOIN tags ON tags.comment_id = comments.id").
		Where("tags.tagged_user_id = ?", q.ViewerID).
		Pluck("comments.post_id", &ids).Error
	h.respondPostIDs(c, q, ids, err)
}

// MatchedPosts lists posts referenced by match requests between the
// requester and users they have a mutual match with
// GET /api/v1/posts/matched
func (h *Handlers) MatchedPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var mutual []string
	err := db.Model(&models.MatchRequest{}).
		Where("match_requesting_user_id = ?", q.ViewerID).
		Where("match_requested_user_id IN (?)", db.Model(&models.MatchRequest{}).
			Select("match_requesting_user_id").
			Where("match_requested_user_id = ?", q.ViewerID)).
		Pluck("match_requested_user_id", &mutual).Error
	if err != nil || len(mutual) == 0 {
		h.respondPostIDs(c, q, nil, err)
		return
	}

	var ids []string
	err = db.Model(&models.MatchRequest{}).
		Where("post_id IS NOT NULL").
		Where("(match_requesting_user_id = ? AND match_requested_user_id IN ?) OR (match_requested_user_id = ? AND match_requesting_user_id IN ?)",
			q.ViewerID, mutual, q.ViewerID, mutual).
		Pluck("post_id", &ids).Error
	h.respondPostIDs(c, q, ids, err)
}

// FeaturedPosts lists posts featured on ?date (YYYY-MM-DD, default today UTC)
// GET /api/v1/posts/featured
func (h *Handlers) FeaturedPosts(c *gin.Context) {
	q, ok := h.postQuery(c)
	if !ok {
		return
	}
	day := h.now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			util.RespondValidationError(c, "date", "date must be formatted YYYY-MM-DD")
			return
		}
		day = parsed
	}

	var ids []string
	err := h.db.WithContext(c.Request.Context()).Model(&models.Feature{}).
		Where(timestampBetween(models.EpochOf(day), models.EpochOf(day.Add(24*time.Hour)))).
		Pluck("post_id", &ids).Error
	h.respondPostIDs(c, q, ids, err)
}

// CreatePost creates a post authored by the requester
// POST /api/v1/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	authorID, ok := actingUser(c, "author", req.Author)
	if !ok {
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		util.RespondValidationError(c, "latitude", "latitude and longitude must be given together")
		return
	}

	post := models.Post{
		Title:               strings.TrimSpace(req.Title),
		Body:                req.Body,
		AuthorID:            authorID,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		LocationDescription: req.LocationDescription,
		CollectibleType:     req.CollectibleType,
	}
	if requester, _ := util.GetUserFromContext(c); requester != nil && requester.IsSuperuser && req.Timestamp != nil {
		post.Timestamp = *req.Timestamp
	}

	ctx := c.Request.Context()
	if err := h.posts.CreatePost(ctx, &post); util.HandleDBError(c, err, "post") {
		return
	}

	resp, err := h.timeline.DecoratePost(ctx, &post)
	if err != nil {
		util.RespondInternalError(c, "failed to load post")
		return
	}
	h.indexPostAsync(post, resp.AuthorUsername)

	logger.Log.Info("Post created", logger.WithPostID(post.ID), logger.WithUserID(authorID))
	c.JSON(http.StatusCreated, resp)
}

// GetPost returns one post with its aggregates. Hidden posts are only
// visible to their author.
// GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	if post.IsHidden && !util.ActingAs(requester, post.AuthorID) {
		util.RespondNotFound(c, "post")
		return
	}
	resp, err := h.timeline.DecoratePost(c.Request.Context(), post)
	if err != nil {
		util.RespondInternalError(c, "failed to load post")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdatePost replaces (PUT) or patches (PATCH) the requester's post
// PUT /api/v1/posts/:id
// PATCH /api/v1/posts/:id
func (h *Handlers) UpdatePost(c *gin.Context) {
	post, ok := h.ownedPost(c)
	if !ok {
		return
	}
	var req dto.UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}

	if c.Request.Method == http.MethodPut {
		fields := map[string][]string{}
		if req.Title == nil {
			fields["title"] = []string{"this field is required"}
		}
		if req.Body == nil {
			fields["body"] = []string{"this field is required"}
		}
		if len(fields) > 0 {
			util.RespondWithAPIError(c, apierrors.FieldErrors(fields))
			return
		}
	}

	if req.Title != nil {
		post.Title = strings.TrimSpace(*req.Title)
	}
	if req.Body != nil {
		post.Body = *req.Body
	}
	if req.Latitude != nil || req.Longitude != nil {
		if req.Latitude == nil || req.Longitude == nil {
			util.RespondValidationError(c, "latitude", "latitude and longitude must be given together")
			return
		}
		post.Latitude, post.Longitude = req.Latitude, req.Longitude
	}
	if req.LocationDescription != nil {
		post.LocationDescription = req.LocationDescription
	}
	if req.CollectibleType != nil {
		post.CollectibleType = req.CollectibleType
	}
	if req.IsHidden != nil {
		post.IsHidden = *req.IsHidden
	}

	ctx := c.Request.Context()
	if err := h.posts.UpdatePost(ctx, post); util.HandleDBError(c, err, "post") {
		return
	}
	resp, err := h.timeline.DecoratePost(ctx, post)
	if err != nil {
		util.RespondInternalError(c, "failed to load post")
		return
	}
	h.indexPostAsync(*post, resp.AuthorUsername)
	c.JSON(http.StatusOK, resp)
}

// DeletePost deletes the requester's post and everything attached to it
// DELETE /api/v1/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	post, ok := h.ownedPost(c)
	if !ok {
		return
	}
	err := h.posts.DeletePost(c.Request.Context(), post.ID)
	if errors.Is(err, repository.ErrNotFound) {
		util.RespondNotFound(c, "post")
		return
	}
	if err != nil {
		logger.ErrorWithFields("Failed to delete post", err, logger.WithPostID(post.ID))
		util.RespondInternalError(c, "failed to delete post")
		return
	}
	h.unindexPostAsync(post.ID)
	c.Status(http.StatusNoContent)
}

type viewsRequest struct {
	Post  string   `json:"post"`
	Posts []string `json:"posts"`
}

// MarkViewed records that the requester has seen posts; viewed posts sink
// to the end of later listings.
// POST /api/v1/views
func (h *Handlers) MarkViewed(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req viewsRequest
	if !bindJSON(c, &req) {
		return
	}
	ids := req.Posts
	if req.Post != "" {
		ids = append(ids, req.Post)
	}
	if len(ids) == 0 {
		util.RespondValidationError(c, "posts", "this field is required")
		return
	}

	created, err := h.social.MarkViewed(c.Request.Context(), userID, ids)
	if err != nil {
		logger.Log.Warn("Failed to mark posts viewed", zap.Error(err), logger.WithUserID(userID))
		util.RespondInternalError(c, "failed to record views")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created})
}

func (h *Handlers) loadPost(c *gin.Context) (*models.Post, bool) {
	post, err := h.posts.GetPost(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		util.RespondNotFound(c, "post")
		return nil, false
	}
	if err != nil {
		util.RespondInternalError(c, "failed to get post")
		return nil, false
	}
	return post, true
}

// ownedPost loads the :id post, requiring the requester to be its author
// or a superuser.
func (h *Handlers) ownedPost(c *gin.Context) (*models.Post, bool) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return nil, false
	}
	post, ok := h.loadPost(c)
	if !ok {
		return nil, false
	}
	if !util.ActingAs(requester, post.AuthorID) {
		util.RespondForbidden(c, "only the author can change this post")
		return nil, false
	}
	return post, true
}
