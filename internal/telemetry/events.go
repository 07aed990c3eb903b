package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BusinessEvents traces domain operations above the HTTP and database
// spans: listings, votes, flags and bans.
type BusinessEvents struct {
	tracer trace.Tracer
}

// NewBusinessEvents creates a new business events tracer
func NewBusinessEvents() *BusinessEvents {
	return &BusinessEvents{tracer: otel.Tracer("business-events")}
}

// FeedEventAttrs describes one post listing
type FeedEventAttrs struct {
	Order  string
	Nearby bool
	Text   bool
	Limit  int
}

// TraceListPosts creates a span for a post listing. Record the result with
// RecordFeedResult.
func (be *BusinessEvents) TraceListPosts(ctx context.Context, attrs FeedEventAttrs) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "feed.list_posts",
		trace.WithAttributes(
			attribute.String("feed.order", attrs.Order),
			attribute.Bool("feed.nearby", attrs.Nearby),
			attribute.Bool("feed.text_search", attrs.Text),
			attribute.Int("feed.limit", attrs.Limit),
		),
	)
}

// RecordFeedResult records how many candidates were loaded and how many
// survived moderation
func RecordFeedResult(span trace.Span, candidates, permissible int) {
	span.SetAttributes(
		attribute.Int("feed.candidates", candidates),
		attribute.Int("feed.item_count", permissible),
		attribute.Int("feed.filtered_out", candidates-permissible),
	)
}

// TraceVote creates a span for a post vote
func (be *BusinessEvents) TraceVote(ctx context.Context, postID, voterID string, rating int) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "social.vote",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("user.id", voterID),
			attribute.Int("vote.rating", rating),
		),
	)
}

// TraceFlag creates a span for a post flag
func (be *BusinessEvents) TraceFlag(ctx context.Context, postID, flaggerID string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "moderation.flag",
		trace.WithAttributes(
			attribute.String("post.id", postID),
			attribute.String("user.id", flaggerID),
		),
	)
}

// TraceAutoban creates a span for the ban check that follows a flag
func (be *BusinessEvents) TraceAutoban(ctx context.Context, authorID string) (context.Context, trace.Span) {
	return be.tracer.Start(ctx, "moderation.autoban",
		trace.WithAttributes(attribute.String("user.id", authorID)),
	)
}

// EndSpan ends span, marking it failed when err is set
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
