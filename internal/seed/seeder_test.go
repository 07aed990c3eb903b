package seed

import (
	"context"
	"testing"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/models"
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

func count(t *testing.T, db *gorm.DB, model interface{}) int64 {
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestSeedTestIsIdempotent(t *testing.T) {
	db := openDB(t)
	s := NewSeeder(db)
	ctx := context.Background()

	require.NoError(t, s.SeedTest(ctx))
	require.NoError(t, s.SeedTest(ctx))

	assert.Equal(t, int64(5), count(t, db, &models.User{}))
	assert.Equal(t, int64(5), count(t, db, &models.Mistbox{}))
	assert.Equal(t, int64(5), count(t, db, &models.Post{}))

	var admin models.User
	require.NoError(t, db.Where("username = ?", "admin").First(&admin).Error)
	assert.True(t, admin.IsSuperuser)

	var words int64
	require.NoError(t, db.Table("post_words").Count(&words).Error)
	assert.Greater(t, words, int64(0))
}

func TestSeedDev(t *testing.T) {
	db := openDB(t)
	s := NewSeeder(db)

	require.NoError(t, s.SeedDev(context.Background(), 6, 12))

	users := count(t, db, &models.User{})
	assert.LessOrEqual(t, users, int64(6))
	assert.GreaterOrEqual(t, users, int64(2))
	assert.Equal(t, int64(12), count(t, db, &models.Post{}))
	assert.Equal(t, users, count(t, db, &models.FriendRequest{}))
	assert.Greater(t, count(t, db, &models.AccessCode{}), int64(0))

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		assert.LessOrEqual(t, len([]rune(p.Title)), 40)
		assert.True(t, p.HasLocation())
	}
}

func TestSeedSystemVoters(t *testing.T) {
	db := openDB(t)
	s := NewSeeder(db)
	ctx := context.Background()

	require.NoError(t, s.SeedSystemVoters(ctx, []string{"mistbot", "fogbot"}))
	require.NoError(t, s.SeedSystemVoters(ctx, []string{"mistbot"}))
	assert.Equal(t, int64(2), count(t, db, &models.User{}))
}

func TestClean(t *testing.T) {
	db := openDB(t)
	s := NewSeeder(db)
	ctx := context.Background()

	require.NoError(t, s.SeedTest(ctx))
	require.NoError(t, s.Clean(ctx))

	assert.Zero(t, count(t, db, &models.User{}))
	assert.Zero(t, count(t, db, &models.Post{}))
	assert.Zero(t, count(t, db, &models.PostVote{}))
	assert.Zero(t, count(t, db, &models.Word{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "héé", truncate("hééllo", 3))
}
