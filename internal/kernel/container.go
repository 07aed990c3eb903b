// Package kernel holds the Mist backend's long-lived dependencies and their
// shutdown hooks.
package kernel

import (
	"context"
	"sync"

	"github.com/mistapp/backend/internal/auth"
	"github.com/mistapp/backend/internal/cache"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/push"
	"github.com/mistapp/backend/internal/search"
	"github.com/mistapp/backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds all application dependencies and provides type-safe access.
// Optional services (cache, search, storage) are nil when not configured.
type Kernel struct {
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.RedisClient

	auth     auth.AuthServiceInterface
	search   *search.Client
	uploader storage.ProfilePictureUploader
	push     push.Sender

	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty kernel
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// SetDB registers the database connection
func (k *Kernel) SetDB(db *gorm.DB) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.db = db
	return k
}

// DB returns the database connection
func (k *Kernel) DB() *gorm.DB {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.db
}

// SetLogger registers the logger
func (k *Kernel) SetLogger(l *zap.Logger) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.logger = l
	return k
}

// Logger returns the registered logger, or the global one
func (k *Kernel) Logger() *zap.Logger {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.logger == nil {
		return logger.Log
	}
	return k.logger
}

// SetCache registers the Redis client
func (k *Kernel) SetCache(client *cache.RedisClient) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cache = client
	return k
}

// Cache returns the Redis client, nil when Redis is not configured
func (k *Kernel) Cache() *cache.RedisClient {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cache
}

func (k *Kernel) SetAuthService(service auth.AuthServiceInterface) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.auth = service
	return k
}

func (k *Kernel) Auth() auth.AuthServiceInterface {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.auth
}

func (k *Kernel) SetSearchClient(client *search.Client) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.search = client
	return k
}

// Search returns the Elasticsearch client, nil when search is disabled
func (k *Kernel) Search() *search.Client {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.search
}

func (k *Kernel) SetUploader(uploader storage.ProfilePictureUploader) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.uploader = uploader
	return k
}

func (k *Kernel) Uploader() storage.ProfilePictureUploader {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.uploader
}

func (k *Kernel) SetPushSender(sender push.Sender) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.push = sender
	return k
}

func (k *Kernel) Push() push.Sender {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.push
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions run in LIFO order.
func (k *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cleanupFuncs = append(k.cleanupFuncs, fn)
	return k
}

// Cleanup runs every registered cleanup function, newest first, and returns
// the first error after attempting them all.
func (k *Kernel) Cleanup(ctx context.Context) error {
	k.mu.Lock()
	funcs := k.cleanupFuncs
	k.cleanupFuncs = nil
	k.mu.Unlock()

	var firstErr error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			k.Logger().Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Validate checks that all required dependencies are registered and logs
// which optional ones are missing.
func (k *Kernel) Validate() error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var missingDeps []string
	if k.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if k.auth == nil {
		missingDeps = append(missingDeps, "auth service")
	}
	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	optional := []struct {
		name    string
		missing bool
	}{
		{"Redis cache", k.cache == nil},
		{"Elasticsearch search", k.search == nil},
		{"S3 uploader", k.uploader == nil},
		{"push sender", k.push == nil},
	}
	for _, dep := range optional {
		if dep.missing {
			logger.Log.Info("Optional dependency not configured", zap.String("dependency", dep.name))
		}
	}
	return nil
}
