package search

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mistapp/backend/internal/logger"
	"go.uber.org/zap"
)

// DefaultResultTTL is how long a text query's hits are reused. New posts
// show up in text search after at most this long.
const DefaultResultTTL = 30 * time.Second

// ResultCache stores serialized search hits. cache.RedisClient implements it.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedClient wraps the search client with Redis caching of post hits.
// Indexing goes straight to Elasticsearch.
type CachedClient struct {
	*Client
	cache ResultCache
	ttl   time.Duration
}

// NewCachedClient creates a caching client. A nil cache disables caching.
func NewCachedClient(client *Client, cache ResultCache, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &CachedClient{Client: client, cache: cache, ttl: ttl}
}

func resultKey(text string, limit int) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%d:%s", limit, strings.ToLower(strings.TrimSpace(text)))))
	return fmt.Sprintf("search:posts:%x", hash)
}

// SearchPostIDs searches for posts with caching
func (c *CachedClient) SearchPostIDs(ctx context.Context, text string, limit int) ([]string, error) {
	if c.cache == nil {
		return c.Client.SearchPostIDs(ctx, text, limit)
	}

	key := resultKey(text, limit)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var ids []string
		if err := json.Unmarshal([]byte(cached), &ids); err == nil {
			return ids, nil
		}
	}

	ids, err := c.Client.SearchPostIDs(ctx, text, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(ids); err == nil {
		if err := c.cache.SetEx(ctx, key, string(data), c.ttl); err != nil {
			logger.Log.Debug("Failed to cache search hits", zap.String("key", key), zap.Error(err))
		}
	}
	return ids, nil
}
