package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingEvents(t *testing.T) (*BusinessEvents, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return &BusinessEvents{tracer: tp.Tracer("test")}, rec
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTraceListPosts(t *testing.T) {
	be, rec := recordingEvents(t)

	_, span := be.TraceListPosts(context.Background(), FeedEventAttrs{Order: "best", Nearby: true, Limit: 20})
	RecordFeedResult(span, 10, 7)
	EndSpan(span, nil)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "feed.list_posts", ended[0].Name())
	got := attrs(ended[0])
	assert.Equal(t, "best", got["feed.order"].AsString())
	assert.True(t, got["feed.nearby"].AsBool())
	assert.Equal(t, int64(3), got["feed.filtered_out"].AsInt64())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestEndSpanRecordsError(t *testing.T) {
	be, rec := recordingEvents(t)

	ctx, parent := be.TraceFlag(context.Background(), "p1", "u1")
	_, child := be.TraceAutoban(ctx, "u2")
	EndSpan(child, errors.New("db down"))
	parent.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "moderation.autoban", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, "u1", attrs(ended[1])["user.id"].AsString())
}
