package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/moderation"
	"github.com/mistapp/backend/internal/ranking"
	"github.com/mistapp/backend/internal/repository"
	"go.uber.org/zap"
)

// MistboxWindow is how far back the digest looks for posts
const MistboxWindow = 24 * time.Hour

// MistboxDigest returns recent permissible posts by other users whose words
// intersect keywords, excluding posts the user has already opened. Newest
// first.
func (s *Service) MistboxDigest(ctx context.Context, userID string, keywords []string) ([]*dto.PostResponse, error) {
	if len(keywords) == 0 {
		return []*dto.PostResponse{}, nil
	}

	var opened []string
	if err := s.db.WithContext(ctx).Model(&models.MistboxOpen{}).
		Where("user_id = ?", userID).
		Pluck("post_id", &opened).Error; err != nil {
		return nil, fmt.Errorf("mistbox opens: %w", err)
	}

	blocked, err := s.social.BlockedUserIDs(ctx, userID)
	if err != nil {
		logger.Log.Warn("Failed to get blocked users", zap.Error(err), logger.WithUserID(userID))
	}

	since := s.now().Add(-MistboxWindow)
	candidates, err := s.posts.ListPosts(ctx, repository.PostFilter{
		Words:          keywords,
		CreatedAfter:   &since,
		ExcludeAuthors: append([]string{userID}, blocked...),
		ExcludeIDs:     opened,
	})
	if err != nil {
		return nil, fmt.Errorf("mistbox posts: %w", err)
	}

	items, err := s.Decorate(ctx, candidates)
	if err != nil {
		return nil, err
	}
	items = moderation.Filter(items, postCounts, moderation.PostFlagBound)
	ranking.Sort(items, ranking.Recent, rankingItem, s.now())
	return items, nil
}
