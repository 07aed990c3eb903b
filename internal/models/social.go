package models

import "gorm.io/gorm"

// FriendRequest is directional; two users are friends when each has sent
// the other a request.
type FriendRequest struct {
	ID              string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FriendingUserID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_friend_requests_pair" json:"friending_user"`
	FriendedUserID  string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_friend_requests_pair;index" json:"friended_user"`
	Timestamp       float64 `gorm:"not null" json:"timestamp"`
}

// MatchRequest is directional and may reference the post that prompted it
type MatchRequest struct {
	ID                    string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchRequestingUserID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_match_requests_pair" json:"match_requesting_user"`
	MatchRequestedUserID  string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_match_requests_pair;index" json:"match_requested_user"`
	PostID                *string `gorm:"type:varchar(36)" json:"post"`
	Timestamp             float64 `gorm:"not null" json:"timestamp"`
}

type Block struct {
	ID             string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BlockingUserID string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_blocks_pair" json:"blocking_user"`
	BlockedUserID  string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_blocks_pair;index" json:"blocked_user"`
	Timestamp      float64 `gorm:"not null" json:"timestamp"`
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	stampIfZero(&r.Timestamp)
	return nil
}

func (r *MatchRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	stampIfZero(&r.Timestamp)
	return nil
}

func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	stampIfZero(&b.Timestamp)
	return nil
}
