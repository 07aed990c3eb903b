package jobs

import (
	"context"
	"fmt"

	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/notify"
	"github.com/mistapp/backend/internal/timeline"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MistboxJobName is the lock and metric name of the daily reset
const MistboxJobName = "mistbox_reset"

// MistboxReset restores every mistbox's daily opens and notifies users
// whose digest has posts waiting
type MistboxReset struct {
	db       *gorm.DB
	timeline *timeline.Service
	notifier *notify.Notifier
	opens    int
}

// NewMistboxReset creates the job. opens is the daily allowance.
func NewMistboxReset(db *gorm.DB, tl *timeline.Service, notifier *notify.Notifier, opens int) *MistboxReset {
	return &MistboxReset{db: db, timeline: tl, notifier: notifier, opens: opens}
}

// Job wraps the reset for the scheduler
func (j *MistboxReset) Job(hourUTC int) Job {
	return Job{Name: MistboxJobName, Schedule: DailyAt(hourUTC), Run: j.Run}
}

// Run resets opens, then sends one digest notification per user with a
// non-empty digest. A failed digest for one user does not stop the others.
func (j *MistboxReset) Run(ctx context.Context) error {
	res := j.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&models.Mistbox{}).
		UpdateColumn("opens_left", j.opens)
	if res.Error != nil {
		return fmt.Errorf("reset mistbox opens: %w", res.Error)
	}
	logger.Log.Info("Reset mistbox opens", zap.Int64("mistboxes", res.RowsAffected), zap.Int("opens", j.opens))

	var boxes []models.Mistbox
	if err := j.db.WithContext(ctx).Find(&boxes).Error; err != nil {
		return fmt.Errorf("load mistboxes: %w", err)
	}

	notified := 0
	for _, box := range boxes {
		if len(box.Keywords) == 0 {
			continue
		}
		posts, err := j.timeline.MistboxDigest(ctx, box.UserID, box.Keywords)
		if err != nil {
			logger.WarnWithFields("Failed to build mistbox digest", err, logger.WithUserID(box.UserID))
			continue
		}
		if len(posts) == 0 {
			continue
		}

		err = j.notifier.Notify(ctx, notify.Notification{
			UserID: box.UserID,
			Type:   models.NotificationMistbox,
			Title:  "Your mistbox is ready",
			Body:   digestBody(len(posts)),
			Data:   map[string]interface{}{"posts": len(posts)},
		})
		if err != nil {
			logger.WarnWithFields("Failed to send mistbox digest", err, logger.WithUserID(box.UserID))
			continue
		}
		notified++
	}

	logger.Log.Info("Sent mistbox digests", zap.Int("notified", notified))
	return nil
}

func digestBody(n int) string {
	if n == 1 {
		return "1 new mist matches your keywords"
	}
	return fmt.Sprintf("%d new mists match your keywords", n)
}
