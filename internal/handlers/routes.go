package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/middleware"
)

const wordsCacheTTL = time.Minute

// RegisterRoutes mounts the /api/v1 API on r. requireAuth authenticates
// every route except the public /auth endpoints.
func RegisterRoutes(r gin.IRouter, h *Handlers, requireAuth gin.HandlerFunc) {
	v1 := r.Group("/api/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/email-codes", h.RequestEmailCode)
		authGroup.POST("/email-codes/validate", h.ValidateEmailCode)
		authGroup.POST("/phone-codes", h.RequestPhoneCode)
		authGroup.POST("/phone-codes/validate", h.ValidatePhoneCode)
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/login/phone", h.RequestPhoneLogin)
		authGroup.POST("/login/phone/validate", h.ValidatePhoneLogin)
		authGroup.POST("/password-reset", h.RequestPasswordReset)
		authGroup.POST("/password-reset/validate", h.ValidatePasswordReset)
		authGroup.POST("/password-reset/finalize", h.FinalizePasswordReset)
		authGroup.GET("/me", requireAuth, h.Me)
	}

	api := v1.Group("")
	api.Use(requireAuth)

	users := api.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/nearby", h.NearbyUsers)
		users.GET("/:id", h.GetUser)
		users.PATCH("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
		users.POST("/:id/picture", h.UploadProfilePicture)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", h.ListPosts)
		posts.POST("", h.CreatePost)
		posts.GET("/nearby", h.NearbyPosts)
		posts.GET("/matched", h.MatchedPosts)
		posts.GET("/featured", h.FeaturedPosts)
		posts.GET("/friends", h.FriendPosts)
		posts.GET("/favorited", h.FavoritedPosts)
		posts.GET("/submitted", h.SubmittedPosts)
		posts.GET("/tagged", h.TaggedPosts)
		posts.GET("/:id", h.GetPost)
		posts.PUT("/:id", h.UpdatePost)
		posts.PATCH("/:id", h.UpdatePost)
		posts.DELETE("/:id", h.DeletePost)
	}
	api.POST("/views", h.MarkViewed)

	comments := api.Group("/comments")
	{
		comments.GET("", h.ListComments)
		comments.POST("", h.CreateComment)
		comments.GET("/:id", h.GetComment)
		comments.DELETE("/:id", h.DeleteComment)
	}

	pairs := []struct {
		path                   string
		list, create, deleteFn gin.HandlerFunc
	}{
		{"/votes", h.ListVotes, h.CreateVote, h.DeleteVote},
		{"/flags", h.ListFlags, h.CreateFlag, h.DeleteFlag},
		{"/comment-votes", h.ListCommentVotes, h.CreateCommentVote, h.DeleteCommentVote},
		{"/comment-flags", h.ListCommentFlags, h.CreateCommentFlag, h.DeleteCommentFlag},
		{"/favorites", h.ListFavorites, h.CreateFavorite, h.DeleteFavorite},
		{"/tags", h.ListTags, h.CreateTag, h.DeleteTag},
		{"/blocks", h.ListBlocks, h.CreateBlock, h.DeleteBlock},
		{"/friend-requests", h.ListFriendRequests, h.CreateFriendRequest, h.DeleteFriendRequest},
		{"/match-requests", h.ListMatchRequests, h.CreateMatchRequest, h.DeleteMatchRequest},
	}
	for _, p := range pairs {
		g := api.Group(p.path)
		g.GET("", p.list)
		g.POST("", p.create)
		g.DELETE("", p.deleteFn)
		g.DELETE("/:id", p.deleteFn)
	}

	features := api.Group("/features")
	{
		features.GET("", h.ListFeatures)
		features.POST("", middleware.RequireSuperuser(), h.CreateFeature)
		features.DELETE("", middleware.RequireSuperuser(), h.DeleteFeature)
		features.DELETE("/:id", middleware.RequireSuperuser(), h.DeleteFeature)
	}

	messages := api.Group("/messages")
	{
		messages.GET("", h.ListMessages)
		messages.POST("", h.CreateMessage)
		messages.DELETE("/:id", h.DeleteMessage)
	}
	api.GET("/conversations", h.ListConversations)

	api.GET("/words", middleware.ResponseCacheMiddleware(h.cache, wordsCacheTTL), h.ListWords)

	mistbox := api.Group("/mistbox")
	{
		mistbox.GET("", h.GetMistbox)
		mistbox.PATCH("", h.UpdateMistbox)
		mistbox.POST("/open", h.OpenMistboxPost)
	}

	api.POST("/access-codes/claim", h.ClaimAccessCode)
	api.GET("/badges", h.ListBadges)

	api.GET("/notifications", h.ListNotifications)
	api.POST("/notifications/read", h.MarkNotificationsRead)
}
