package handlers

import (
	"context"
	"time"

	"github.com/mistapp/backend/internal/auth"
	"github.com/mistapp/backend/internal/middleware"
	"github.com/mistapp/backend/internal/notify"
	"github.com/mistapp/backend/internal/push"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/search"
	"github.com/mistapp/backend/internal/storage"
	"github.com/mistapp/backend/internal/telemetry"
	"github.com/mistapp/backend/internal/timeline"
	"gorm.io/gorm"
)

// SearchIndex is the part of the Elasticsearch client the handlers use:
// they keep the post index in sync and resolve text queries through it.
type SearchIndex interface {
	search.PostIndexer
	timeline.PostSearcher
	DeletePost(ctx context.Context, postID string) error
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db       *gorm.DB
	auth     auth.AuthServiceInterface
	users    repository.UserRepository
	posts    repository.PostRepository
	social   repository.SocialRepository
	timeline *timeline.Service
	notifier *notify.Notifier
	search   SearchIndex
	uploader storage.ProfilePictureUploader
	cache    middleware.ResponseStore
	events   *telemetry.BusinessEvents
	now      func() time.Time
}

// NewHandlers creates a new handlers instance. Search, push and uploads are
// disabled until their setters are called.
func NewHandlers(db *gorm.DB, authService auth.AuthServiceInterface) *Handlers {
	return &Handlers{
		db:       db,
		auth:     authService,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		social:   repository.NewSocialRepository(db),
		timeline: timeline.NewService(db, nil),
		notifier: notify.New(db, nil),
		events:   telemetry.NewBusinessEvents(),
		now:      time.Now,
	}
}

// SetSearchClient enables Elasticsearch for post text search and indexing
func (h *Handlers) SetSearchClient(index SearchIndex) {
	h.search = index
	h.timeline = timeline.NewService(h.db, index)
}

// SetPushSender enables push delivery of notifications
func (h *Handlers) SetPushSender(sender push.Sender) {
	h.notifier = notify.New(h.db, sender)
}

// SetUploader sets the S3 uploader for profile pictures
func (h *Handlers) SetUploader(uploader storage.ProfilePictureUploader) {
	h.uploader = uploader
}

// SetResponseCache enables caching of requester-independent GET responses.
// It must be called before RegisterRoutes.
func (h *Handlers) SetResponseCache(store middleware.ResponseStore) {
	h.cache = store
}
