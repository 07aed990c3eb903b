package repository

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/mistapp/backend/internal/geo"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/moderation"
	"github.com/mistapp/backend/internal/words"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostStats are the engagement aggregates of one post. VoteCount is the
// mean rating; FlagCount excludes superuser flags.
type PostStats struct {
	VoteCount    float64
	NumVotes     int64
	FlagCount    int64
	CommentCount int64
	EmojiCounts  map[string]int64
}

// Counts returns the moderation view of the stats
func (s PostStats) Counts() moderation.Counts {
	return moderation.Counts{VoteCount: s.VoteCount, FlagCount: s.FlagCount}
}

// PostSort decides which rows survive the candidate cap
type PostSort string

const (
	SortRecent   PostSort = ""
	SortBest     PostSort = "best"
	SortTrending PostSort = "trending"
	SortNearest  PostSort = "nearest"
)

// bestScoreSQL is votecount - flagcount: the mean rating minus the number
// of flags from non-superusers.
const bestScoreSQL = `COALESCE((SELECT AVG(CAST(pv.rating AS FLOAT)) FROM post_votes pv WHERE pv.post_id = posts.id), 0)
	- (SELECT COUNT(*) FROM post_flags pf JOIN users fu ON fu.id = pf.flagger_id
		WHERE pf.post_id = posts.id AND fu.is_superuser = ?)`

// PostFilter narrows a post listing. Zero values mean no filter.
type PostFilter struct {
	IDs            []string
	AuthorID       string
	Words          []string
	Text           string
	Box            *geo.BoundingBox
	ExcludeAuthors []string
	ExcludeIDs     []string
	CreatedAfter   *time.Time
	IncludeHidden  bool
	Limit          int

	Sort PostSort
	// Center is required by SortNearest
	Center *geo.Point
}

// PostRepository handles posts, their word index and their aggregates
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	UpdatePost(ctx context.Context, post *models.Post) error
	DeletePost(ctx context.Context, postID string) error
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error)

	Stats(ctx context.Context, postIDs []string) (map[string]PostStats, error)
	CommentStats(ctx context.Context, commentIDs []string) (map[string]moderation.Counts, error)
	ImpermissibleCountByAuthor(ctx context.Context, authorID string) (int, error)
	DeleteComment(ctx context.Context, commentID string) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// CreatePost inserts the post and links its words
func (r *postRepository) CreatePost(ctx context.Context, post *models.Post) error {
	if post == nil {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Words").Create(post).Error; err != nil {
			return err
		}
		return linkWordsTx(tx, post)
	})
}

func (r *postRepository) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost saves the post and rebuilds its word links
func (r *postRepository) UpdatePost(ctx context.Context, post *models.Post) error {
	if post == nil || post.ID == "" {
		return ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Words").Save(post).Error; err != nil {
			return err
		}
		return linkWordsTx(tx, post)
	})
}

// DeletePost removes the post and every row that references it
func (r *postRepository) DeletePost(ctx context.Context, postID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return deletePostsTx(tx, []string{postID})
	})
}

// DeleteComment removes a comment with its votes, flags and tags
func (r *postRepository) DeleteComment(ctx context.Context, commentID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Comment{}).Where("id = ?", commentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return deleteCommentsTx(tx, []string{commentID})
	})
}

// linkWordsTx replaces the post's word links with the tokens of its
// current title and body.
func linkWordsTx(tx *gorm.DB, post *models.Post) error {
	tokens := words.TokenizePost(post.Title, post.Body)

	if err := tx.Exec("DELETE FROM post_words WHERE post_id = ?", post.ID).Error; err != nil {
		return err
	}
	if len(tokens) == 0 {
		post.Words = nil
		return nil
	}

	rows := make([]models.Word, len(tokens))
	for i, t := range tokens {
		rows[i] = models.Word{Text: t}
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return err
	}
	for _, t := range tokens {
		if err := tx.Exec("INSERT INTO post_words (post_id, word_text) VALUES (?, ?)", post.ID, t).Error; err != nil {
			return err
		}
	}
	post.Words = rows
	return nil
}

func deletePostsTx(tx *gorm.DB, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}

	var commentIDs []string
	if err := tx.Model(&models.Comment{}).Where("post_id IN ?", postIDs).Pluck("id", &commentIDs).Error; err != nil {
		return err
	}
	if err := deleteCommentsTx(tx, commentIDs); err != nil {
		return err
	}

	if err := tx.Exec("DELETE FROM post_words WHERE post_id IN ?", postIDs).Error; err != nil {
		return err
	}
	for _, model := range []interface{}{
		&models.PostVote{},
		&models.PostFlag{},
		&models.Favorite{},
		&models.Feature{},
		&models.View{},
		&models.MistboxOpen{},
	} {
		if err := tx.Where("post_id IN ?", postIDs).Delete(model).Error; err != nil {
			return err
		}
	}
	// References from messages and match requests survive the post
	if err := tx.Model(&models.Message{}).Where("post_id IN ?", postIDs).Update("post_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.MatchRequest{}).Where("post_id IN ?", postIDs).Update("post_id", nil).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error
}

func deleteCommentsTx(tx *gorm.DB, commentIDs []string) error {
	if len(commentIDs) == 0 {
		return nil
	}
	for _, model := range []interface{}{&models.CommentVote{}, &models.CommentFlag{}, &models.Tag{}} {
		if err := tx.Where("comment_id IN ?", commentIDs).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", commentIDs).Delete(&models.Comment{}).Error
}

// ListPosts loads the candidate set for a listing, at most MaxCandidates
// rows picked by filter.Sort. The listing service ranks the result.
func (r *postRepository) ListPosts(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	var posts []*models.Post

	q := r.db.WithContext(ctx).Model(&models.Post{})
	if !filter.IncludeHidden {
		q = q.Where("posts.is_hidden = ?", false)
	}
	if len(filter.IDs) > 0 {
		q = q.Where("posts.id IN ?", filter.IDs)
	}
	if filter.AuthorID != "" {
		q = q.Where("posts.author_id = ?", filter.AuthorID)
	}
	if len(filter.Words) > 0 {
		q = q.Where("posts.id IN (?)", r.db.Table("post_words").
			Select("post_id").
			Where("word_text IN ?", lowerAll(filter.Words)))
	}
	if filter.Text != "" {
		pattern := "%" + strings.ToLower(filter.Text) + "%"
		cond := r.db.Where("LOWER(posts.title) LIKE ? OR LOWER(posts.body) LIKE ?", pattern, pattern)
		if tokens := words.Tokenize(filter.Text); len(tokens) > 0 {
			cond = cond.Or("posts.id IN (?)", r.db.Table("post_words").
				Select("post_id").
				Where("word_text IN ?", tokens))
		}
		q = q.Where(cond)
	}
	if filter.Box != nil {
		q = withinBox(q, "posts", *filter.Box)
	}
	if len(filter.ExcludeAuthors) > 0 {
		q = q.Where("posts.author_id NOT IN ?", filter.ExcludeAuthors)
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("posts.id NOT IN ?", filter.ExcludeIDs)
	}
	if filter.CreatedAfter != nil {
		q = q.Where("posts.created_at >= ?", *filter.CreatedAfter)
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxCandidates {
		limit = MaxCandidates
	}
	err := q.Order(candidateOrder(filter)).Limit(limit).Find(&posts).Error
	return posts, err
}

func candidateOrder(filter PostFilter) interface{} {
	switch filter.Sort {
	case SortBest:
		return clause.OrderBy{Expression: clause.Expr{
			SQL:  "(" + bestScoreSQL + ") DESC, posts.id",
			Vars: []interface{}{false},
		}}
	case SortTrending:
		return "posts.timestamp DESC, posts.id"
	case SortNearest:
		if filter.Center == nil {
			break
		}
		// Equirectangular distance is enough to rank rows inside the box
		lat, lon := filter.Center.Lat, filter.Center.Lon
		k := math.Cos(lat * math.Pi / 180)
		return clause.OrderBy{Expression: clause.Expr{
			SQL:  "(posts.latitude - ?) * (posts.latitude - ?) + (posts.longitude - ?) * (posts.longitude - ?) * ?, posts.id",
			Vars: []interface{}{lat, lat, lon, lon, k * k},
		}}
	}
	return "posts.created_at DESC, posts.id"
}

// Stats computes vote, flag and comment aggregates for the given posts.
// Every requested id is present in the result.
func (r *postRepository) Stats(ctx context.Context, postIDs []string) (map[string]PostStats, error) {
	stats := make(map[string]PostStats, len(postIDs))
	if len(postIDs) == 0 {
		return stats, nil
	}
	for _, id := range postIDs {
		stats[id] = PostStats{}
	}

	db := r.db.WithContext(ctx)

	var votes []struct {
		PostID    string
		AvgRating float64
		NumVotes  int64
	}
	if err := db.Model(&models.PostVote{}).
		Select("post_id, AVG(CAST(rating AS FLOAT)) AS avg_rating, COUNT(*) AS num_votes").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		s := stats[v.PostID]
		s.VoteCount = v.AvgRating
		s.NumVotes = v.NumVotes
		stats[v.PostID] = s
	}

	var flags []struct {
		PostID string
		N      int64
	}
	if err := db.Model(&models.PostFlag{}).
		Select("post_flags.post_id AS post_id, COUNT(*) AS n").
		Joins("JOIN users ON users.id = post_flags.flagger_id").
		Where("post_flags.post_id IN ? AND users.is_superuser = ?", postIDs, false).
		Group("post_flags.post_id").
		Scan(&flags).Error; err != nil {
		return nil, err
	}
	for _, f := range flags {
		s := stats[f.PostID]
		s.FlagCount = f.N
		stats[f.PostID] = s
	}

	var comments []struct {
		PostID string
		N      int64
	}
	if err := db.Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&comments).Error; err != nil {
		return nil, err
	}
	for _, c := range comments {
		s := stats[c.PostID]
		s.CommentCount = c.N
		stats[c.PostID] = s
	}

	var emojis []struct {
		PostID string
		Emoji  string
		N      int64
	}
	if err := db.Model(&models.PostVote{}).
		Select("post_id, emoji, COUNT(*) AS n").
		Where("post_id IN ? AND emoji <> ''", postIDs).
		Group("post_id, emoji").
		Scan(&emojis).Error; err != nil {
		return nil, err
	}
	for _, e := range emojis {
		s := stats[e.PostID]
		if s.EmojiCounts == nil {
			s.EmojiCounts = make(map[string]int64)
		}
		s.EmojiCounts[e.Emoji] = e.N
		stats[e.PostID] = s
	}

	return stats, nil
}

// CommentStats returns the vote count and non-superuser flag count per
// comment.
func (r *postRepository) CommentStats(ctx context.Context, commentIDs []string) (map[string]moderation.Counts, error) {
	counts := make(map[string]moderation.Counts, len(commentIDs))
	if len(commentIDs) == 0 {
		return counts, nil
	}
	for _, id := range commentIDs {
		counts[id] = moderation.Counts{}
	}

	db := r.db.WithContext(ctx)

	var votes []struct {
		CommentID string
		N         int64
	}
	if err := db.Model(&models.CommentVote{}).
		Select("comment_id, COUNT(*) AS n").
		Where("comment_id IN ?", commentIDs).
		Group("comment_id").
		Scan(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		c := counts[v.CommentID]
		c.VoteCount = float64(v.N)
		counts[v.CommentID] = c
	}

	var flags []struct {
		CommentID string
		N         int64
	}
	if err := db.Model(&models.CommentFlag{}).
		Select("comment_flags.comment_id AS comment_id, COUNT(*) AS n").
		Joins("JOIN users ON users.id = comment_flags.flagger_id").
		Where("comment_flags.comment_id IN ? AND users.is_superuser = ?", commentIDs, false).
		Group("comment_flags.comment_id").
		Scan(&flags).Error; err != nil {
		return nil, err
	}
	for _, f := range flags {
		c := counts[f.CommentID]
		c.FlagCount = f.N
		counts[f.CommentID] = c
	}

	return counts, nil
}

// ImpermissibleCountByAuthor counts the author's posts that the
// moderation filter would hide.
func (r *postRepository) ImpermissibleCountByAuthor(ctx context.Context, authorID string) (int, error) {
	var postIDs []string
	if err := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("author_id = ?", authorID).
		Pluck("id", &postIDs).Error; err != nil {
		return 0, err
	}

	stats, err := r.Stats(ctx, postIDs)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, s := range stats {
		if moderation.PostImpermissible(s.Counts()) {
			n++
		}
	}
	return n, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
