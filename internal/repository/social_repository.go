package repository

import (
	"context"

	"github.com/mistapp/backend/internal/models"
	"gorm.io/gorm"
)

// SocialRepository answers relationship questions between users
type SocialRepository interface {
	// BlockedUserIDs returns users that block userID or that userID blocks
	BlockedUserIDs(ctx context.Context, userID string) ([]string, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	// FriendIDs returns users with friend requests in both directions
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	ViewedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]struct{}, error)
	MarkViewed(ctx context.Context, userID string, postIDs []string) (int, error)
}

type socialRepository struct {
	db *gorm.DB
}

// NewSocialRepository creates a new social repository
func NewSocialRepository(db *gorm.DB) SocialRepository {
	return &socialRepository{db: db}
}

func (r *socialRepository) BlockedUserIDs(ctx context.Context, userID string) ([]string, error) {
	var blocks []models.Block
	if err := r.db.WithContext(ctx).
		Where("blocking_user_id = ? OR blocked_user_id = ?", userID, userID).
		Find(&blocks).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(blocks))
	ids := make([]string, 0, len(blocks))
	for _, b := range blocks {
		other := b.BlockedUserID
		if other == userID {
			other = b.BlockingUserID
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	return ids, nil
}

// IsBlocked reports whether either user blocks the other
func (r *socialRepository) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Block{}).
		Where("(blocking_user_id = ? AND blocked_user_id = ?) OR (blocking_user_id = ? AND blocked_user_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

func (r *socialRepository) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.FriendRequest{}).
		Where("friending_user_id = ?", userID).
		Where("friended_user_id IN (?)", r.db.Model(&models.FriendRequest{}).
			Select("friending_user_id").
			Where("friended_user_id = ?", userID)).
		Pluck("friended_user_id", &ids).Error
	return ids, err
}

func (r *socialRepository) ViewedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]struct{}, error) {
	viewed := make(map[string]struct{})
	if userID == "" || len(postIDs) == 0 {
		return viewed, nil
	}

	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.View{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		viewed[id] = struct{}{}
	}
	return viewed, nil
}

// MarkViewed records views for the posts not yet viewed by the user and
// returns how many were new. Unknown post ids are ignored.
func (r *socialRepository) MarkViewed(ctx context.Context, userID string, postIDs []string) (int, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}

	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&models.Post{}).Where("id IN ?", postIDs).Pluck("id", &existing).Error; err != nil {
			return err
		}
		var seen []string
		if err := tx.Model(&models.View{}).
			Where("user_id = ? AND post_id IN ?", userID, existing).
			Pluck("post_id", &seen).Error; err != nil {
			return err
		}
		skip := make(map[string]struct{}, len(seen))
		for _, id := range seen {
			skip[id] = struct{}{}
		}

		for _, id := range existing {
			if _, ok := skip[id]; ok {
				continue
			}
			skip[id] = struct{}{}
			if err := tx.Create(&models.View{UserID: userID, PostID: id}).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	return created, err
}
