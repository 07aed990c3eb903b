// Package timeline builds post and comment listings: it loads candidates,
// attaches aggregates, drops impermissible items, ranks, demotes viewed
// posts and applies the nearby filter.
package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mistapp/backend/internal/dto"
	"github.com/mistapp/backend/internal/geo"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/moderation"
	"github.com/mistapp/backend/internal/ranking"
	"github.com/mistapp/backend/internal/repository"
	"github.com/mistapp/backend/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 100
	MaxLimit     = repository.MaxCandidates
)

// PostSearcher resolves free text to post ids using an external index
type PostSearcher interface {
	SearchPostIDs(ctx context.Context, text string, limit int) ([]string, error)
}

// Query describes one post listing
type Query struct {
	ViewerID string
	Order    ranking.Order
	Filter   repository.PostFilter

	// Latitude and Longitude enable the nearby filter; results are then
	// sorted by distance.
	Latitude  *float64
	Longitude *float64
	RadiusKm  float64

	Limit int
}

// Near reports whether the query carries a location
func (q Query) Near() bool {
	return q.Latitude != nil && q.Longitude != nil
}

// Service handles post listing and ranking
type Service struct {
	db     *gorm.DB
	posts  repository.PostRepository
	users  repository.UserRepository
	social repository.SocialRepository
	search PostSearcher
	events *telemetry.BusinessEvents
	now    func() time.Time
}

// NewService creates a listing service. search may be nil, in which case
// text queries run against the word table.
func NewService(db *gorm.DB, search PostSearcher) *Service {
	return &Service{
		db:     db,
		posts:  repository.NewPostRepository(db),
		users:  repository.NewUserRepository(db),
		social: repository.NewSocialRepository(db),
		search: search,
		events: telemetry.NewBusinessEvents(),
		now:    time.Now,
	}
}

// ListPosts runs the full listing pipeline for q
func (s *Service) ListPosts(ctx context.Context, q Query) ([]*dto.PostResponse, error) {
	ctx, span := s.events.TraceListPosts(ctx, telemetry.FeedEventAttrs{
		Order:  string(q.Order),
		Nearby: q.Near(),
		Text:   q.Filter.Text != "",
		Limit:  q.Limit,
	})
	items, err := s.listPosts(ctx, q, span)
	telemetry.EndSpan(span, err)
	return items, err
}

func (s *Service) listPosts(ctx context.Context, q Query, span trace.Span) ([]*dto.PostResponse, error) {
	filter := q.Filter

	if q.ViewerID != "" {
		blocked, err := s.social.BlockedUserIDs(ctx, q.ViewerID)
		if err != nil {
			// Log but continue - a failed block lookup should not empty the feed
			logger.Log.Warn("Failed to get blocked users", zap.Error(err), logger.WithUserID(q.ViewerID))
		}
		filter.ExcludeAuthors = append(filter.ExcludeAuthors, blocked...)
	}

	radius := q.RadiusKm
	if q.Near() {
		if radius <= 0 {
			radius = geo.DefaultPostRadiusKm
		}
		box := geo.Box(*q.Latitude, *q.Longitude, radius)
		filter.Box = &box
	}
	filter.Sort = candidateSort(q)
	if filter.Sort == repository.SortNearest {
		filter.Center = &geo.Point{Lat: *q.Latitude, Lon: *q.Longitude}
	}

	if filter.Text != "" && s.search != nil {
		ids, err := s.search.SearchPostIDs(ctx, filter.Text, MaxLimit)
		if err != nil {
			logger.Log.Warn("Search index unavailable, falling back to word table", zap.Error(err))
		} else {
			filter.Text = ""
			filter.IDs = intersectIDs(filter.IDs, ids)
			if len(filter.IDs) == 0 {
				return []*dto.PostResponse{}, nil
			}
		}
	}

	candidates, err := s.posts.ListPosts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	items, err := s.Decorate(ctx, candidates)
	if err != nil {
		return nil, err
	}

	items = moderation.Filter(items, postCounts, moderation.PostFlagBound)
	telemetry.RecordFeedResult(span, len(candidates), len(items))
	ranking.Sort(items, q.Order, rankingItem, s.now())

	if q.Near() {
		hits := geo.Nearby(items, postCoords, *q.Latitude, *q.Longitude, radius)
		items = make([]*dto.PostResponse, len(hits))
		for i, hit := range hits {
			d := hit.Distance
			hit.Item.Distance = &d
			items[i] = hit.Item
		}
	}

	// Viewed posts go last whatever the order, distance included
	viewed, err := s.social.ViewedPostIDs(ctx, q.ViewerID, postIDs(items))
	if err != nil {
		logger.Log.Warn("Failed to get viewed posts", zap.Error(err), logger.WithUserID(q.ViewerID))
	}
	items = ranking.DemoteViewed(items, func(p *dto.PostResponse) string { return p.ID }, viewed)

	return truncate(items, q.Limit), nil
}

// candidateSort loads the rows the final order ranks first, so the cap
// never drops a post that would make the page.
func candidateSort(q Query) repository.PostSort {
	switch {
	case q.Near():
		return repository.SortNearest
	case q.Order == ranking.Best:
		return repository.SortBest
	case q.Order == ranking.Recent:
		return repository.SortRecent
	default:
		return repository.SortTrending
	}
}

// Decorate attaches aggregates and author usernames to posts, keeping
// their order.
func (s *Service) Decorate(ctx context.Context, posts []*models.Post) ([]*dto.PostResponse, error) {
	ids := make([]string, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		authorIDs = append(authorIDs, p.AuthorID)
	}

	stats, err := s.posts.Stats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("post stats: %w", err)
	}
	names, err := s.users.Usernames(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("post authors: %w", err)
	}

	out := make([]*dto.PostResponse, len(posts))
	for i, p := range posts {
		resp := dto.ToPostResponse(p)
		st := stats[p.ID]
		resp.VoteCount = st.VoteCount
		resp.NumVotes = st.NumVotes
		resp.FlagCount = st.FlagCount
		resp.CommentCount = st.CommentCount
		resp.EmojiCounts = st.EmojiCounts
		resp.AuthorUsername = names[p.AuthorID]
		out[i] = resp
	}
	return out, nil
}

// DecoratePost is Decorate for a single post
func (s *Service) DecoratePost(ctx context.Context, post *models.Post) (*dto.PostResponse, error) {
	out, err := s.Decorate(ctx, []*models.Post{post})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func postCounts(p *dto.PostResponse) moderation.Counts {
	return moderation.Counts{VoteCount: p.VoteCount, FlagCount: p.FlagCount}
}

func rankingItem(p *dto.PostResponse) ranking.Item {
	return ranking.Item{
		ID:        p.ID,
		VoteCount: p.VoteCount,
		FlagCount: p.FlagCount,
		NumVotes:  p.NumVotes,
		CreatedAt: p.CreatedAt,
		Timestamp: p.Timestamp,
	}
}

func postCoords(p *dto.PostResponse) (*float64, *float64) {
	return p.Latitude, p.Longitude
}

func postIDs(items []*dto.PostResponse) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

// intersectIDs returns b restricted to a, or b when a is empty
func intersectIDs(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	allowed := make(map[string]struct{}, len(a))
	for _, id := range a {
		allowed[id] = struct{}{}
	}
	out := make([]string, 0, len(b))
	for _, id := range b {
		if _, ok := allowed[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
