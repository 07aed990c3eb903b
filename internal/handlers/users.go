package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/dto"
	apierrors "github.com/mistapp/backend/internal/errors"
	"github.com/mistapp/backend/internal/geo"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/storage"
	"github.com/mistapp/backend/internal/util"
	"go.uber.org/zap"
)

const maxProfilePictureSize = 5 << 20

// location is a parsed latitude/longitude/radius query
type location struct {
	lat, lon *float64
	radius   float64
}

func (l location) set() bool {
	return l.lat != nil && l.lon != nil
}

// locationParams parses ?latitude, ?longitude and ?radius (km). Both
// coordinates must be given together.
func locationParams(c *gin.Context) (location, bool) {
	lat, err := util.ParseOptionalFloat(c.Query("latitude"))
	if err != nil || (lat != nil && (*lat < -90 || *lat > 90)) {
		util.RespondValidationError(c, "latitude", "enter a valid latitude")
		return location{}, false
	}
	lon, err := util.ParseOptionalFloat(c.Query("longitude"))
	if err != nil || (lon != nil && (*lon < -180 || *lon > 180)) {
		util.RespondValidationError(c, "longitude", "enter a valid longitude")
		return location{}, false
	}
	if (lat == nil) != (lon == nil) {
		util.RespondValidationError(c, "latitude", "latitude and longitude must be given together")
		return location{}, false
	}
	radius := util.ParseFloat(c.Query("radius"), 0)
	if radius < 0 {
		util.RespondValidationError(c, "radius", "radius must be positive")
		return location{}, false
	}
	return location{lat: lat, lon: lon, radius: radius}, true
}

// ListUsers searches users by name and optionally by location
// GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	loc, ok := locationParams(c)
	if !ok {
		return
	}
	h.listUsers(c, loc, "")
}

// NearbyUsers lists other users near the given point, or near the
// requester's stored location when no point is given.
// GET /api/v1/users/nearby
func (h *Handlers) NearbyUsers(c *gin.Context) {
	loc, ok := locationParams(c)
	if !ok {
		return
	}
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if !loc.set() {
		if !user.HasLocation() {
			util.RespondValidationError(c, "latitude", "a location is required")
			return
		}
		loc.lat, loc.lon = user.Latitude, user.Longitude
	}
	h.listUsers(c, loc, user.ID)
}

func (h *Handlers) listUsers(c *gin.Context, loc location, excludeID string) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	blocked, err := h.social.BlockedUserIDs(ctx, userID)
	if err != nil {
		logger.Log.Warn("Failed to get blocked users", zap.Error(err), logger.WithUserID(userID))
	}
	filter := repository.UserFilter{
		Text:       strings.TrimSpace(c.Query("text")),
		ExcludeIDs: blocked,
	}
	if excludeID != "" {
		filter.ExcludeIDs = append(filter.ExcludeIDs, excludeID)
	}

	radius := loc.radius
	if loc.set() {
		if radius == 0 {
			radius = geo.DefaultUserRadiusKm
		}
		box := geo.Box(*loc.lat, *loc.lon, radius)
		filter.Box = &box
	} else {
		filter.Limit = limitParam(c)
	}

	users, err := h.users.ListUsers(ctx, filter)
	if err != nil {
		util.RespondInternalError(c, "failed to list users")
		return
	}

	if !loc.set() {
		out := make([]*dto.UserResponse, len(users))
		for i, u := range users {
			out[i] = dto.ToUserResponse(u)
		}
		c.JSON(http.StatusOK, out)
		return
	}

	hits := geo.Nearby(users, func(u *models.User) (*float64, *float64) {
		return u.Latitude, u.Longitude
	}, *loc.lat, *loc.lon, radius)
	limit := limitParam(c)
	out := make([]*dto.UserResponse, 0, len(hits))
	for _, hit := range hits {
		if len(out) == limit {
			break
		}
		resp := dto.ToUserResponse(hit.Item)
		d := hit.Distance
		resp.Distance = &d
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

// GetUser returns a user; the requester gets their own private fields
// GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		util.RespondNotFound(c, "user")
		return
	}
	if err != nil {
		util.RespondInternalError(c, "failed to get user")
		return
	}
	if util.ActingAs(requester, user.ID) {
		c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

// UpdateUser partially updates the requester's profile
// PATCH /api/v1/users/:id
func (h *Handlers) UpdateUser(c *gin.Context) {
	user, ok := h.ownedUser(c)
	if !ok {
		return
	}
	var req dto.UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.DateOfBirth != nil {
		user.DateOfBirth = req.DateOfBirth
	}
	if req.Sex != nil {
		user.Sex = *req.Sex
	}
	if req.Latitude != nil || req.Longitude != nil {
		if req.Latitude == nil || req.Longitude == nil {
			util.RespondValidationError(c, "latitude", "latitude and longitude must be given together")
			return
		}
		user.Latitude, user.Longitude = req.Latitude, req.Longitude
	}
	if req.ExpoPushToken != nil {
		user.ExpoPushToken = *req.ExpoPushToken
	}

	if err := h.users.UpdateUser(c.Request.Context(), user); util.HandleDBError(c, err, "user", "username") {
		return
	}
	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}

// DeleteUser deletes the requester's account and everything it owns
// DELETE /api/v1/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	user, ok := h.ownedUser(c)
	if !ok {
		return
	}

	var postIDs []string
	h.db.WithContext(c.Request.Context()).Model(&models.Post{}).Where("author_id = ?", user.ID).Pluck("id", &postIDs)

	if err := h.users.DeleteUser(c.Request.Context(), user.ID); err != nil {
		logger.ErrorWithFields("Failed to delete user", err, logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to delete user")
		return
	}
	for _, id := range postIDs {
		h.unindexPostAsync(id)
	}
	c.Status(http.StatusNoContent)
}

// UploadProfilePicture stores an image in S3 and sets it as the picture
// POST /api/v1/users/:id/picture
func (h *Handlers) UploadProfilePicture(c *gin.Context) {
	if h.uploader == nil {
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("profile picture storage"))
		return
	}
	user, ok := h.ownedUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile("picture")
	if err != nil {
		util.RespondValidationError(c, "picture", "no file was submitted")
		return
	}
	if file.Size > maxProfilePictureSize {
		util.RespondValidationError(c, "picture", "file is too large (max 5MB)")
		return
	}

	src, err := file.Open()
	if err != nil {
		util.RespondInternalError(c, "failed to read upload")
		return
	}
	defer src.Close()

	ctx := c.Request.Context()
	result, err := h.uploader.UploadProfilePicture(ctx, src, file.Size, filepath.Base(file.Filename), user.ID)
	if errors.Is(err, storage.ErrUnsupportedImage) {
		util.RespondValidationError(c, "picture", "upload a jpg, png, gif or webp image")
		return
	}
	if err != nil {
		logger.ErrorWithFields("Failed to upload profile picture", err, logger.WithUserID(user.ID))
		util.RespondInternalError(c, "failed to upload profile picture")
		return
	}

	user.ProfilePictureURL = result.URL
	if err := h.users.UpdateUser(ctx, user); err != nil {
		util.RespondInternalError(c, "failed to save profile picture")
		return
	}
	c.JSON(http.StatusOK, dto.ToUserDetailResponse(user))
}

// ownedUser loads the :id user, requiring it to be the requester or the
// requester to be a superuser.
func (h *Handlers) ownedUser(c *gin.Context) (*models.User, bool) {
	requester, ok := util.GetUserFromContext(c)
	if !ok {
		return nil, false
	}
	id := c.Param("id")
	if !util.ActingAs(requester, id) {
		util.RespondForbidden(c)
		return nil, false
	}
	user, err := h.users.GetUser(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		util.RespondNotFound(c, "user")
		return nil, false
	}
	if err != nil {
		util.RespondInternalError(c, "failed to get user")
		return nil, false
	}
	return user, true
}
