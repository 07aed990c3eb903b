package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mistapp/backend/internal/cache"
	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/notify"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	u := &models.User{Email: name + "@example.com", Username: name, PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createPost(t *testing.T, db *gorm.DB, author *models.User, title string, createdAt time.Time) *models.Post {
	p := &models.Post{Title: title, Body: "body", AuthorID: author.ID, CreatedAt: createdAt, Timestamp: models.EpochOf(createdAt)}
	require.NoError(t, repository.NewPostRepository(db).CreatePost(context.Background(), p))
	return p
}

func TestDailyAt(t *testing.T) {
	next := DailyAt(17)(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC), next)

	next = DailyAt(17)(time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), next)
}

func TestHourly(t *testing.T) {
	next := Hourly()(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), next)
}

type fakeLocker struct {
	err      error
	released bool
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	return func() { l.released = true }, nil
}

func TestRunOnceHonorsLock(t *testing.T) {
	runs := 0
	job := Job{Name: "test", Schedule: Hourly(), Run: func(ctx context.Context) error {
		runs++
		return nil
	}}

	held := &fakeLocker{err: cache.ErrLockHeld}
	NewScheduler(held, job).RunOnce(context.Background(), job)
	assert.Equal(t, 0, runs)

	free := &fakeLocker{}
	NewScheduler(free, job).RunOnce(context.Background(), job)
	assert.Equal(t, 1, runs)
	assert.True(t, free.released)

	broken := &fakeLocker{err: errors.New("redis down")}
	NewScheduler(broken, job).RunOnce(context.Background(), job)
	assert.Equal(t, 2, runs)

	NewScheduler(nil, job).RunOnce(context.Background(), job)
	assert.Equal(t, 3, runs)
}

func TestRunOnceSurvivesFailure(t *testing.T) {
	job := Job{Name: "failing", Schedule: Hourly(), Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}
	assert.NotPanics(t, func() { NewScheduler(nil, job).RunOnce(context.Background(), job) })
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(nil, Job{Name: "idle", Schedule: DailyAt(3), Run: func(ctx context.Context) error { return nil }})
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}

func TestMistboxReset(t *testing.T) {
	db := openDB(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")

	require.NoError(t, db.Create(&models.Mistbox{UserID: alice.ID, Keywords: []string{"coffee"}, OpensLeft: 0}).Error)
	require.NoError(t, db.Create(&models.Mistbox{UserID: bob.ID, Keywords: []string{}, OpensLeft: 1}).Error)
	require.NoError(t, db.Create(&models.Mistbox{UserID: carol.ID, Keywords: []string{"tea"}, OpensLeft: 2}).Error)
	createPost(t, db, bob, "coffee this morning", time.Now().UTC())

	job := NewMistboxReset(db, timeline.NewService(db, nil), notify.New(db, nil), models.DefaultMistboxOpens)
	require.NoError(t, job.Run(context.Background()))

	var boxes []models.Mistbox
	require.NoError(t, db.Find(&boxes).Error)
	require.Len(t, boxes, 3)
	for _, box := range boxes {
		assert.Equal(t, models.DefaultMistboxOpens, box.OpensLeft)
	}

	var notes []models.Notification
	require.NoError(t, db.Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, alice.ID, notes[0].UserID)
	assert.Equal(t, models.NotificationMistbox, notes[0].Type)
}

func TestSyntheticVotes(t *testing.T) {
	db := openDB(t)
	bot := createUser(t, db, "mistbot")
	alice := createUser(t, db, "alice")
	now := time.Now().UTC()

	fresh := createPost(t, db, alice, "fresh", now.Add(-time.Hour))
	stale := createPost(t, db, alice, "stale", now.Add(-48*time.Hour))
	own := createPost(t, db, bot, "bot post", now.Add(-time.Hour))
	popular := createPost(t, db, alice, "popular", now.Add(-time.Hour))
	for i := 0; i < SyntheticVoteThreshold; i++ {
		voter := createUser(t, db, "fan"+string(rune('a'+i)))
		require.NoError(t, db.Create(&models.PostVote{VoterID: voter.ID, PostID: popular.ID, Rating: 1}).Error)
	}

	job := NewSyntheticVotes(db, []string{"mistbot", "ghost"})
	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	count := func(postID string) int64 {
		var n int64
		require.NoError(t, db.Model(&models.PostVote{}).Where("post_id = ? AND voter_id = ?", postID, bot.ID).Count(&n).Error)
		return n
	}
	assert.Equal(t, int64(1), count(fresh.ID))
	assert.Equal(t, int64(0), count(stale.ID))
	assert.Equal(t, int64(0), count(own.ID))
	assert.Equal(t, int64(0), count(popular.ID))

	var bumped models.Post
	require.NoError(t, db.First(&bumped, "id = ?", fresh.ID).Error)
	assert.Greater(t, bumped.Timestamp, fresh.Timestamp)
}

func TestSyntheticVotesWithoutVoters(t *testing.T) {
	db := openDB(t)
	assert.NoError(t, NewSyntheticVotes(db, nil).Run(context.Background()))
	assert.Error(t, NewSyntheticVotes(db, []string{"ghost"}).Run(context.Background()))
}
