package search

import (
	"context"
	"sync"
	"time"

	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostIndexer is the subset of Client used to keep the index in sync
type PostIndexer interface {
	IndexPost(ctx context.Context, doc PostSearchDoc) error
}

const reindexBatchSize = 200

// Reindex pushes every post created at or after since into the index.
// A zero since reindexes all posts. Returns the number of posts indexed.
func Reindex(ctx context.Context, db *gorm.DB, indexer PostIndexer, since time.Time) (int, error) {
	indexed := 0
	var lastID string

	for {
		var posts []models.Post
		q := db.WithContext(ctx).Order("id").Limit(reindexBatchSize)
		if !since.IsZero() {
			q = q.Where("created_at >= ?", since)
		}
		if lastID != "" {
			q = q.Where("id > ?", lastID)
		}
		if err := q.Find(&posts).Error; err != nil {
			return indexed, err
		}
		if len(posts) == 0 {
			return indexed, nil
		}

		authorIDs := make([]string, 0, len(posts))
		for _, p := range posts {
			authorIDs = append(authorIDs, p.AuthorID)
		}
		var users []models.User
		if err := db.WithContext(ctx).Select("id", "username").Where("id IN ?", authorIDs).Find(&users).Error; err != nil {
			return indexed, err
		}
		usernames := make(map[string]string, len(users))
		for _, u := range users {
			usernames[u.ID] = u.Username
		}

		for _, post := range posts {
			if err := indexer.IndexPost(ctx, PostToSearchDoc(post, usernames[post.AuthorID])); err != nil {
				logger.Log.Warn("Failed to reindex post",
					zap.String("post_id", post.ID),
					zap.Error(err),
				)
				continue
			}
			indexed++
		}

		lastID = posts[len(posts)-1].ID
	}
}

// ReconciliationService periodically reindexes recent posts so documents
// whose async indexing failed catch up with the database.
type ReconciliationService struct {
	db        *gorm.DB
	indexer   PostIndexer
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(db *gorm.DB, indexer PostIndexer, interval time.Duration) *ReconciliationService {
	return &ReconciliationService{
		db:       db,
		indexer:  indexer,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reconciliation loop
func (rs *ReconciliationService) Start() {
	rs.mu.Lock()
	if rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = true
	rs.mu.Unlock()

	logger.Log.Info("Starting search reconciliation service",
		zap.Duration("interval", rs.interval),
	)

	rs.wg.Add(1)
	go rs.reconciliationLoop()
}

// Stop gracefully stops the reconciliation service
func (rs *ReconciliationService) Stop() {
	rs.mu.Lock()
	if !rs.isRunning {
		rs.mu.Unlock()
		return
	}
	rs.isRunning = false
	rs.mu.Unlock()

	close(rs.stopChan)
	rs.wg.Wait()
	logger.Log.Info("Search reconciliation service stopped")
}

func (rs *ReconciliationService) reconciliationLoop() {
	defer rs.wg.Done()

	rs.performReconciliation()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-rs.stopChan:
			return
		case <-ticker.C:
			rs.performReconciliation()
		}
	}
}

// performReconciliation reindexes posts created within the last two intervals
func (rs *ReconciliationService) performReconciliation() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := time.Now()
	indexed, err := Reindex(ctx, rs.db, rs.indexer, startTime.Add(-2*rs.interval))
	if err != nil {
		logger.WarnWithFields("Search reconciliation failed", err)
		return
	}

	logger.Log.Info("Search reconciliation completed",
		zap.Int("posts_resync", indexed),
		zap.Duration("duration", time.Since(startTime)),
	)
}
