package repository

import (
	"context"
	"testing"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/geo"
	"github.com/mistapp/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	db     *gorm.DB
	ctx    context.Context
	users  UserRepository
	posts  PostRepository
	social SocialRepository
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.MigrateDB(db))

	s.db = db
	s.ctx = context.Background()
	s.users = NewUserRepository(db)
	s.posts = NewPostRepository(db)
	s.social = NewSocialRepository(db)
}

func (s *RepositoryTestSuite) TearDownTest() {
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func (s *RepositoryTestSuite) user(name string, superuser bool) *models.User {
	u := &models.User{Email: name + "@example.com", Username: name, PasswordHash: "x", IsSuperuser: superuser}
	require.NoError(s.T(), s.users.CreateUser(s.ctx, u))
	return u
}

func (s *RepositoryTestSuite) post(author *models.User, title, body string) *models.Post {
	p := &models.Post{Title: title, Body: body, AuthorID: author.ID}
	require.NoError(s.T(), s.posts.CreatePost(s.ctx, p))
	return p
}

func (s *RepositoryTestSuite) TestLookupsAreCaseInsensitive() {
	u := s.user("Kai", false)

	got, err := s.users.GetUserByLogin(s.ctx, "KAI@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	got, err = s.users.GetUserByLogin(s.ctx, "kai")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.users.GetUser(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestBanIsIdempotent() {
	created, err := s.users.Ban(s.ctx, "Bad@Example.com")
	s.Require().NoError(err)
	s.True(created)

	created, err = s.users.Ban(s.ctx, "bad@example.com")
	s.Require().NoError(err)
	s.False(created)

	banned, err := s.users.IsBanned(s.ctx, "BAD@example.com")
	s.Require().NoError(err)
	s.True(banned)
}

func (s *RepositoryTestSuite) TestWordsAreRebuiltOnSave() {
	u := s.user("kai", false)
	p := s.post(u, "Lost cat", "near the campanile")

	found, err := s.posts.ListPosts(s.ctx, PostFilter{Words: []string{"CAT"}})
	s.Require().NoError(err)
	s.Len(found, 1)

	p.Title = "Found dog"
	s.Require().NoError(s.posts.UpdatePost(s.ctx, p))

	found, err = s.posts.ListPosts(s.ctx, PostFilter{Words: []string{"cat"}})
	s.Require().NoError(err)
	s.Empty(found)

	found, err = s.posts.ListPosts(s.ctx, PostFilter{Words: []string{"dog"}})
	s.Require().NoError(err)
	s.Len(found, 1)

	// the word row outlives its last post
	var count int64
	s.db.Model(&models.Word{}).Where("text = ?", "cat").Count(&count)
	s.EqualValues(1, count)
}

func (s *RepositoryTestSuite) TestStatsAverageRatingAndIgnoreSuperuserFlags() {
	author := s.user("author", false)
	a := s.user("a", false)
	b := s.user("b", false)
	admin := s.user("admin", true)
	p := s.post(author, "hello", "world")
	empty := s.post(author, "quiet", "post")

	s.Require().NoError(s.db.Create(&models.PostVote{VoterID: a.ID, PostID: p.ID, Rating: 1, Emoji: "🔥"}).Error)
	s.Require().NoError(s.db.Create(&models.PostVote{VoterID: b.ID, PostID: p.ID, Rating: 4}).Error)
	s.Require().NoError(s.db.Create(&models.PostFlag{FlaggerID: a.ID, PostID: p.ID}).Error)
	s.Require().NoError(s.db.Create(&models.PostFlag{FlaggerID: admin.ID, PostID: p.ID}).Error)
	s.Require().NoError(s.db.Create(&models.Comment{PostID: p.ID, AuthorID: b.ID, Body: "hi"}).Error)

	stats, err := s.posts.Stats(s.ctx, []string{p.ID, empty.ID})
	s.Require().NoError(err)

	s.InDelta(2.5, stats[p.ID].VoteCount, 1e-9)
	s.EqualValues(2, stats[p.ID].NumVotes)
	s.EqualValues(1, stats[p.ID].FlagCount)
	s.EqualValues(1, stats[p.ID].CommentCount)
	s.EqualValues(1, stats[p.ID].EmojiCounts["🔥"])

	s.Zero(stats[empty.ID].VoteCount)
	s.Zero(stats[empty.ID].FlagCount)
}

func (s *RepositoryTestSuite) TestImpermissibleCountByAuthor() {
	author := s.user("author", false)
	p := s.post(author, "spam", "spam")
	s.post(author, "fine", "post")

	for _, name := range []string{"f1", "f2", "f3", "f4"} {
		f := s.user(name, false)
		s.Require().NoError(s.db.Create(&models.PostFlag{FlaggerID: f.ID, PostID: p.ID}).Error)
	}

	n, err := s.posts.ImpermissibleCountByAuthor(s.ctx, author.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *RepositoryTestSuite) TestDeletePostRemovesDependents() {
	author := s.user("author", false)
	voter := s.user("voter", false)
	p := s.post(author, "bye", "soon")
	c := &models.Comment{PostID: p.ID, AuthorID: voter.ID, Body: "x"}
	s.Require().NoError(s.db.Create(c).Error)
	s.Require().NoError(s.db.Create(&models.CommentVote{VoterID: author.ID, CommentID: c.ID}).Error)
	s.Require().NoError(s.db.Create(&models.PostVote{VoterID: voter.ID, PostID: p.ID, Rating: 1}).Error)

	s.Require().NoError(s.posts.DeletePost(s.ctx, p.ID))
	s.ErrorIs(s.posts.DeletePost(s.ctx, p.ID), ErrNotFound)

	var n int64
	s.db.Model(&models.PostVote{}).Count(&n)
	s.Zero(n)
	s.db.Model(&models.CommentVote{}).Count(&n)
	s.Zero(n)
	s.db.Table("post_words").Count(&n)
	s.Zero(n)
}

func (s *RepositoryTestSuite) TestListPostsBoxAndExclusions() {
	author := s.user("author", false)
	other := s.user("other", false)

	lat, lon := 37.8719, -122.2585
	near := &models.Post{Title: "near", Body: "b", AuthorID: author.ID, Latitude: &lat, Longitude: &lon}
	s.Require().NoError(s.posts.CreatePost(s.ctx, near))
	s.post(author, "nowhere", "b")
	s.post(other, "other", "b")
	hidden := &models.Post{Title: "hidden", Body: "b", AuthorID: author.ID, IsHidden: true}
	s.Require().NoError(s.posts.CreatePost(s.ctx, hidden))

	box := geo.Box(lat, lon, 1)
	found, err := s.posts.ListPosts(s.ctx, PostFilter{Box: &box})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(near.ID, found[0].ID)

	found, err = s.posts.ListPosts(s.ctx, PostFilter{ExcludeAuthors: []string{other.ID}})
	s.Require().NoError(err)
	s.Len(found, 2)

	found, err = s.posts.ListPosts(s.ctx, PostFilter{Text: "NOWHERE"})
	s.Require().NoError(err)
	s.Len(found, 1)
}

func (s *RepositoryTestSuite) TestSocialQueries() {
	a := s.user("a", false)
	b := s.user("b", false)
	c := s.user("c", false)

	s.Require().NoError(s.db.Create(&models.FriendRequest{FriendingUserID: a.ID, FriendedUserID: b.ID}).Error)
	s.Require().NoError(s.db.Create(&models.FriendRequest{FriendingUserID: b.ID, FriendedUserID: a.ID}).Error)
	s.Require().NoError(s.db.Create(&models.FriendRequest{FriendingUserID: a.ID, FriendedUserID: c.ID}).Error)

	friends, err := s.social.FriendIDs(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal([]string{b.ID}, friends)

	s.Require().NoError(s.db.Create(&models.Block{BlockingUserID: c.ID, BlockedUserID: a.ID}).Error)
	blocked, err := s.social.BlockedUserIDs(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal([]string{c.ID}, blocked)

	isBlocked, err := s.social.IsBlocked(s.ctx, a.ID, c.ID)
	s.Require().NoError(err)
	s.True(isBlocked)
}

func (s *RepositoryTestSuite) TestMarkViewed() {
	a := s.user("a", false)
	p := s.post(a, "t", "b")

	n, err := s.social.MarkViewed(s.ctx, a.ID, []string{p.ID, p.ID, "missing"})
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.social.MarkViewed(s.ctx, a.ID, []string{p.ID})
	s.Require().NoError(err)
	s.Zero(n)

	viewed, err := s.social.ViewedPostIDs(s.ctx, a.ID, []string{p.ID})
	s.Require().NoError(err)
	s.Contains(viewed, p.ID)
}

func (s *RepositoryTestSuite) TestDeleteUserCascades() {
	a := s.user("a", false)
	b := s.user("b", false)
	p := s.post(b, "t", "b")
	s.Require().NoError(s.db.Create(&models.PostVote{VoterID: a.ID, PostID: p.ID, Rating: 1}).Error)
	s.post(a, "mine", "gone")

	s.Require().NoError(s.users.DeleteUser(s.ctx, a.ID))

	var n int64
	s.db.Model(&models.Post{}).Count(&n)
	s.EqualValues(1, n)
	s.db.Model(&models.PostVote{}).Count(&n)
	s.Zero(n)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestLowerAll(t *testing.T) {
	assert.Equal(t, []string{"a", "bc"}, lowerAll([]string{"A", "bC"}))
}
