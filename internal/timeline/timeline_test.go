package timeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/ranking"
	"github.com/mistapp/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	u := &models.User{Email: name + "@example.com", Username: name, PasswordHash: "x"}
	require.NoError(t, db.Create(u).Error)
	return u
}

func createPost(t *testing.T, db *gorm.DB, author *models.User, title string, age time.Duration) *models.Post {
	created := time.Now().Add(-age)
	p := &models.Post{
		Title:     title,
		Body:      "body",
		AuthorID:  author.ID,
		CreatedAt: created,
		Timestamp: models.EpochOf(created),
	}
	require.NoError(t, repository.NewPostRepository(db).CreatePost(context.Background(), p))
	return p
}

func ids(items []*dto.PostResponse) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Title
	}
	return out
}

func TestListPostsOrders(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	author := createUser(t, db, "author")
	voter := createUser(t, db, "voter")
	old := createPost(t, db, author, "old", 10*time.Hour)
	createPost(t, db, author, "new", time.Hour)

	require.NoError(t, db.Create(&models.PostVote{VoterID: voter.ID, PostID: old.ID, Rating: 5}).Error)

	best, err := svc.ListPosts(ctx, Query{Order: ranking.Best})
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids(best))
	assert.InDelta(t, 5.0, best[0].VoteCount, 1e-9)
	assert.Equal(t, "author", best[0].AuthorUsername)

	recent, err := svc.ListPosts(ctx, Query{Order: ranking.Recent})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids(recent))

	trending, err := svc.ListPosts(ctx, Query{Order: ranking.Trending})
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids(trending))
}

func TestListPostsDropsImpermissibleAndDemotesViewed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	author := createUser(t, db, "author")
	viewer := createUser(t, db, "viewer")
	flagged := createPost(t, db, author, "flagged", time.Hour)
	seen := createPost(t, db, author, "seen", time.Minute)
	createPost(t, db, author, "fresh", 2*time.Hour)

	for _, name := range []string{"f1", "f2", "f3", "f4"} {
		f := createUser(t, db, name)
		require.NoError(t, db.Create(&models.PostFlag{FlaggerID: f.ID, PostID: flagged.ID}).Error)
	}
	require.NoError(t, db.Create(&models.View{UserID: viewer.ID, PostID: seen.ID}).Error)

	got, err := svc.ListPosts(ctx, Query{ViewerID: viewer.ID, Order: ranking.Recent})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "seen"}, ids(got))
}

func TestListPostsExcludesBlockedAuthors(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)

	viewer := createUser(t, db, "viewer")
	blocked := createUser(t, db, "blocked")
	friend := createUser(t, db, "friend")
	createPost(t, db, blocked, "hidden", time.Hour)
	createPost(t, db, friend, "shown", time.Hour)
	require.NoError(t, db.Create(&models.Block{BlockingUserID: blocked.ID, BlockedUserID: viewer.ID}).Error)

	got, err := svc.ListPosts(context.Background(), Query{ViewerID: viewer.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"shown"}, ids(got))
}

func TestListPostsNearbySortsByDistance(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	author := createUser(t, db, "author")

	place := func(title string, lat, lon float64) {
		p := &models.Post{Title: title, Body: "b", AuthorID: author.ID, Latitude: &lat, Longitude: &lon}
		require.NoError(t, repository.NewPostRepository(db).CreatePost(ctx, p))
	}
	place("far", 37.8800, -122.2585)
	place("close", 37.8720, -122.2585)
	place("outside", 37.9500, -122.2585)
	createPost(t, db, author, "nowhere", time.Hour)

	lat, lon := 37.8719, -122.2585
	got, err := svc.ListPosts(ctx, Query{Latitude: &lat, Longitude: &lon, RadiusKm: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"close", "far"}, ids(got))
	require.NotNil(t, got[0].Distance)
	assert.Less(t, *got[0].Distance, *got[1].Distance)
}

func TestListPostsLimit(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	author := createUser(t, db, "author")
	for i := 0; i < 3; i++ {
		createPost(t, db, author, "p", time.Duration(i)*time.Hour)
	}

	got, err := svc.ListPosts(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

// fillCandidates inserts a full candidate window of posts created within the
// last few hours, each placed by at(i).
func fillCandidates(t *testing.T, db *gorm.DB, author *models.User, at func(i int) (*float64, *float64)) {
	now := time.Now()
	posts := make([]models.Post, repository.MaxCandidates)
	for i := range posts {
		created := now.Add(-time.Duration(i+1) * 20 * time.Second)
		lat, lon := at(i)
		posts[i] = models.Post{
			Title:     "filler",
			Body:      "b",
			AuthorID:  author.ID,
			CreatedAt: created,
			Timestamp: models.EpochOf(created),
			Latitude:  lat,
			Longitude: lon,
		}
	}
	require.NoError(t, db.Omit("Words").CreateInBatches(&posts, 100).Error)
}

func nowhere(int) (*float64, *float64) { return nil, nil }

func TestListPostsBestLooksPastNewestPosts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	author := createUser(t, db, "author")
	voter := createUser(t, db, "voter")

	old := createPost(t, db, author, "top", 72*time.Hour)
	require.NoError(t, db.Create(&models.PostVote{VoterID: voter.ID, PostID: old.ID, Rating: 5}).Error)
	fillCandidates(t, db, author, nowhere)

	got, err := svc.ListPosts(context.Background(), Query{Order: ranking.Best, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "top", got[0].Title)
	assert.InDelta(t, 5.0, got[0].VoteCount, 1e-9)
}

func TestListPostsTrendingUsesBumpedTimestamp(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	author := createUser(t, db, "author")
	voter := createUser(t, db, "voter")

	old := createPost(t, db, author, "revived", 72*time.Hour)
	require.NoError(t, db.Create(&models.PostVote{VoterID: voter.ID, PostID: old.ID, Rating: 5}).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", old.ID).
		UpdateColumn("timestamp", models.NowEpoch()).Error)
	fillCandidates(t, db, author, nowhere)

	got, err := svc.ListPosts(context.Background(), Query{Order: ranking.Trending, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "revived", got[0].Title)
}

func TestListPostsNearbyLooksPastNewestPosts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	author := createUser(t, db, "author")

	lat, lon := 37.8719, -122.2585
	closeLat, closeLon := lat+0.0001, lon
	p := &models.Post{
		Title:     "close",
		Body:      "b",
		AuthorID:  author.ID,
		CreatedAt: time.Now().Add(-72 * time.Hour),
		Latitude:  &closeLat,
		Longitude: &closeLon,
	}
	require.NoError(t, repository.NewPostRepository(db).CreatePost(ctx, p))

	// About 1.5km north, inside the radius
	fillCandidates(t, db, author, func(int) (*float64, *float64) {
		fLat, fLon := lat+0.0135, lon
		return &fLat, &fLon
	})

	got, err := svc.ListPosts(ctx, Query{Latitude: &lat, Longitude: &lon, RadiusKm: 2, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "close", got[0].Title)
}

func TestListPostsNearbyDemotesViewed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()
	author := createUser(t, db, "author")
	viewer := createUser(t, db, "viewer")

	place := func(title string, lat, lon float64) *models.Post {
		p := &models.Post{Title: title, Body: "b", AuthorID: author.ID, Latitude: &lat, Longitude: &lon}
		require.NoError(t, repository.NewPostRepository(db).CreatePost(ctx, p))
		return p
	}
	seen := place("close", 37.8720, -122.2585)
	place("far", 37.8800, -122.2585)
	require.NoError(t, db.Create(&models.View{UserID: viewer.ID, PostID: seen.ID}).Error)

	lat, lon := 37.8719, -122.2585
	got, err := svc.ListPosts(ctx, Query{ViewerID: viewer.ID, Latitude: &lat, Longitude: &lon, RadiusKm: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"far", "close"}, ids(got))
}

type fakeSearcher struct {
	ids []string
	err error
}

func (f fakeSearcher) SearchPostIDs(ctx context.Context, text string, limit int) ([]string, error) {
	return f.ids, f.err
}

func TestListPostsUsesSearchIndex(t *testing.T) {
	db := setupTestDB(t)
	author := createUser(t, db, "author")
	match := createPost(t, db, author, "indexed", time.Hour)
	createPost(t, db, author, "lost cat", time.Hour)

	svc := NewService(db, fakeSearcher{ids: []string{match.ID}})
	got, err := svc.ListPosts(context.Background(), Query{Filter: repository.PostFilter{Text: "cat"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"indexed"}, ids(got))

	// an unavailable index falls back to the word table
	svc = NewService(db, fakeSearcher{err: errors.New("down")})
	got, err = svc.ListPosts(context.Background(), Query{Filter: repository.PostFilter{Text: "cat"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"lost cat"}, ids(got))
}

func TestListComments(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	author := createUser(t, db, "author")
	post := createPost(t, db, author, "p", time.Hour)

	first := &models.Comment{PostID: post.ID, AuthorID: author.ID, Body: "first", Timestamp: 1}
	second := &models.Comment{PostID: post.ID, AuthorID: author.ID, Body: "second", Timestamp: 2}
	bad := &models.Comment{PostID: post.ID, AuthorID: author.ID, Body: "bad", Timestamp: 3}
	require.NoError(t, db.Create(first).Error)
	require.NoError(t, db.Create(second).Error)
	require.NoError(t, db.Create(bad).Error)

	for _, name := range []string{"f1", "f2", "f3"} {
		f := createUser(t, db, name)
		require.NoError(t, db.Create(&models.CommentFlag{FlaggerID: f.ID, CommentID: bad.ID}).Error)
	}
	require.NoError(t, db.Create(&models.CommentVote{VoterID: author.ID, CommentID: second.ID}).Error)

	got, err := svc.ListComments(ctx, CommentQuery{PostID: post.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Body)
	assert.Equal(t, "second", got[1].Body)
	assert.Equal(t, 1.0, got[1].VoteCount)
}

func TestIntersectIDs(t *testing.T) {
	assert.Equal(t, []string{"b"}, intersectIDs([]string{"a", "b"}, []string{"b", "c"}))
	assert.Equal(t, []string{"x"}, intersectIDs(nil, []string{"x"}))
}
