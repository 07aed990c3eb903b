package models

import "gorm.io/gorm"

// DefaultMistboxOpens is the daily number of mistbox posts a user may open
const DefaultMistboxOpens = 3

// MaxMistboxKeywords caps the keyword list
const MaxMistboxKeywords = 10

// Mistbox holds a user's keyword list and remaining daily opens
type Mistbox struct {
	ID           string   `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string   `gorm:"type:varchar(36);not null;uniqueIndex" json:"user"`
	Keywords     []string `gorm:"type:text;serializer:json" json:"keywords"`
	OpensLeft    int      `gorm:"not null" json:"opens_left"`
	CreationTime float64  `gorm:"not null" json:"creation_time"`
}

// MistboxOpen records a mistbox post the user has opened or swiped past
type MistboxOpen struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_mistbox_opens_user_post" json:"user"`
	PostID    string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_mistbox_opens_user_post" json:"post"`
	Timestamp float64 `gorm:"not null" json:"timestamp"`
}

func (m *Mistbox) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	stampIfZero(&m.CreationTime)
	if m.Keywords == nil {
		m.Keywords = []string{}
	}
	return nil
}

func (o *MistboxOpen) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = generateUUID()
	}
	stampIfZero(&o.Timestamp)
	return nil
}
