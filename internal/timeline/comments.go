package timeline

import (
	"context"
	"fmt"

	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/moderation"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// CommentQuery filters a comment listing. Zero values mean no filter.
type CommentQuery struct {
	ViewerID string
	PostID   string
	AuthorID string
	Limit    int
}

// ListComments returns permissible comments, oldest first
func (s *Service) ListComments(ctx context.Context, q CommentQuery) ([]*dto.CommentResponse, error) {
	db := s.db.WithContext(ctx)
	if q.PostID != "" {
		db = db.Where("post_id = ?", q.PostID)
	}
	if q.AuthorID != "" {
		db = db.Where("author_id = ?", q.AuthorID)
	}
	if q.ViewerID != "" {
		blocked, err := s.social.BlockedUserIDs(ctx, q.ViewerID)
		if err != nil {
			logger.Log.Warn("Failed to get blocked users", zap.Error(err), logger.WithUserID(q.ViewerID))
		}
		if len(blocked) > 0 {
			db = db.Where("author_id NOT IN ?", blocked)
		}
	}

	var comments []*models.Comment
	if err := db.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).Order("id ASC").Limit(MaxLimit).Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	items, err := s.DecorateComments(ctx, comments)
	if err != nil {
		return nil, err
	}
	items = moderation.Filter(items, func(c *dto.CommentResponse) moderation.Counts {
		return moderation.Counts{VoteCount: c.VoteCount, FlagCount: c.FlagCount}
	}, moderation.CommentFlagBound)

	return truncate(items, q.Limit), nil
}

// DecorateComments attaches vote and flag counts and author usernames
func (s *Service) DecorateComments(ctx context.Context, comments []*models.Comment) ([]*dto.CommentResponse, error) {
	ids := make([]string, len(comments))
	authorIDs := make([]string, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		authorIDs[i] = c.AuthorID
	}

	counts, err := s.posts.CommentStats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("comment stats: %w", err)
	}
	names, err := s.users.Usernames(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("comment authors: %w", err)
	}

	out := make([]*dto.CommentResponse, len(comments))
	for i, c := range comments {
		out[i] = &dto.CommentResponse{
			ID:             c.ID,
			Body:           c.Body,
			Post:           c.PostID,
			Author:         c.AuthorID,
			AuthorUsername: names[c.AuthorID],
			Timestamp:      c.Timestamp,
			VoteCount:      counts[c.ID].VoteCount,
			FlagCount:      counts[c.ID].FlagCount,
		}
	}
	return out, nil
}
