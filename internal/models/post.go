package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is a geotagged text post. Timestamp is the effective freshness used
// by trending order and can move forward when the post is voted on;
// CreatedAt never changes.
type Post struct {
	ID                  string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title               string    `gorm:"not null" json:"title"`
	Body                string    `gorm:"type:text;not null" json:"body"`
	AuthorID            string    `gorm:"type:varchar(36);not null;index" json:"author"`
	Timestamp           float64   `gorm:"not null;index" json:"timestamp"`
	Latitude            *float64  `json:"latitude"`
	Longitude           *float64  `json:"longitude"`
	LocationDescription *string   `json:"location_description"`
	CollectibleType     *int      `json:"collectible_type"`
	IsHidden            bool      `gorm:"not null" json:"is_hidden"`
	CreatedAt           time.Time `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time `json:"-"`

	Words []Word `gorm:"many2many:post_words;" json:"-"`
}

// Word is a lowercased token appearing in at least one post
type Word struct {
	Text string `gorm:"primaryKey;type:varchar(255)" json:"text"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	stampIfZero(&p.Timestamp)
	return nil
}

// HasLocation reports whether both coordinates are set
func (p *Post) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}
