package models

import "gorm.io/gorm"

// Message is a direct message between two users
type Message struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Body       string  `gorm:"type:text;not null" json:"body"`
	SenderID   string  `gorm:"type:varchar(36);not null;index" json:"sender"`
	ReceiverID string  `gorm:"type:varchar(36);not null;index" json:"receiver"`
	PostID     *string `gorm:"type:varchar(36)" json:"post"`
	Timestamp  float64 `gorm:"not null;index" json:"timestamp"`
}

// Notification is an in-app notification, mirrored to push when the user
// has a device token.
type Notification struct {
	ID        string                 `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string                 `gorm:"type:varchar(36);not null;index" json:"user"`
	Type      string                 `gorm:"not null" json:"type"`
	Data      map[string]interface{} `gorm:"type:text;serializer:json" json:"data"`
	Timestamp float64                `gorm:"not null" json:"timestamp"`
	Read      bool                   `gorm:"not null" json:"read"`
}

const (
	NotificationMessage       = "message"
	NotificationFriendRequest = "friend_request"
	NotificationMatchRequest  = "match_request"
	NotificationTag           = "tag"
	NotificationMistbox       = "mistbox"
)

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	stampIfZero(&m.Timestamp)
	return nil
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	stampIfZero(&n.Timestamp)
	return nil
}
