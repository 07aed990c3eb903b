package database

import (
	"testing"

	"github.com/mistapp/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever", false)
	assert.Error(t, err)
}

func TestMigrateAndUniqueTranslation(t *testing.T) {
	db, err := Open("sqlite", ":memory:", false)
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))

	user := models.User{Email: "A@Example.com", Username: "a", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)
	assert.Equal(t, "a@example.com", user.Email)

	post := models.Post{Title: "t", Body: "b", AuthorID: user.ID}
	require.NoError(t, db.Create(&post).Error)
	assert.NotZero(t, post.Timestamp)

	require.NoError(t, db.Create(&models.PostVote{VoterID: user.ID, PostID: post.ID, Rating: 1}).Error)
	err = db.Create(&models.PostVote{VoterID: user.ID, PostID: post.ID, Rating: 1}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	var missing models.Post
	err = db.First(&missing, "id = ?", "nope").Error
	assert.True(t, IsNotFound(err))
}

func TestHealthWithoutInit(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()
	assert.Error(t, Health())
	assert.NoError(t, Close())
}
