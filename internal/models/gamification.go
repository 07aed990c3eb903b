package models

import "gorm.io/gorm"

const BadgeAccessCode = "access-code"

// AccessCode can be claimed once, granting the claimer a badge
type AccessCode struct {
	ID             string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Code           string   `gorm:"uniqueIndex;not null" json:"code"`
	ClaimedUserID  *string  `gorm:"type:varchar(36)" json:"claimed_user"`
	ClaimTimestamp *float64 `json:"claim_timestamp"`
}

type Badge struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_badges_user_type" json:"user"`
	BadgeType string  `gorm:"not null;uniqueIndex:idx_badges_user_type" json:"badge_type"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

func (a *AccessCode) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateUUID()
	}
	return nil
}

func (b *Badge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = generateUUID()
	}
	stampIfZero(&b.Timestamp)
	return nil
}
