// Package notify stores in-app notifications and mirrors them to the
// recipient's device.
package notify

import (
	"context"
	"fmt"

	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/push"
	"gorm.io/gorm"
)

// Notifier creates Notification rows and sends the matching push message
type Notifier struct {
	db   *gorm.DB
	push push.Sender
}

// New creates a Notifier. sender may be nil to skip push delivery.
func New(db *gorm.DB, sender push.Sender) *Notifier {
	return &Notifier{db: db, push: sender}
}

// Notification describes one notification for one user
type Notification struct {
	UserID string
	Type   string
	Title  string
	Body   string
	Data   map[string]interface{}
}

// Notify stores n and pushes it asynchronously when the recipient has an
// Expo token. Push failures never surface to the caller.
func (n *Notifier) Notify(ctx context.Context, note Notification) error {
	data := note.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	data["title"] = note.Title
	data["body"] = note.Body

	row := models.Notification{
		UserID: note.UserID,
		Type:   note.Type,
		Data:   data,
	}
	if err := n.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if n.push == nil {
		return nil
	}

	var tokens []string
	if err := n.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND expo_push_token <> ''", note.UserID).
		Pluck("expo_push_token", &tokens).Error; err != nil || len(tokens) == 0 {
		return nil
	}

	push.SendAsync(n.push, push.Message{
		To:    tokens[0],
		Title: note.Title,
		Body:  note.Body,
		Data:  map[string]interface{}{"type": note.Type, "notification": row.ID},
	})
	return nil
}
