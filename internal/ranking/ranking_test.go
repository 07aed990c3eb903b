package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func identity(i Item) Item { return i }

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, Trending, o)

	o, err = ParseOrder("BEST")
	require.NoError(t, err)
	assert.Equal(t, Best, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}

func TestSortBest(t *testing.T) {
	items := []Item{
		{ID: "a", VoteCount: 1, FlagCount: 2},
		{ID: "b", VoteCount: 3, FlagCount: 0},
		{ID: "c", VoteCount: 2, FlagCount: 0},
	}
	Sort(items, Best, identity, time.Now())
	assert.Equal(t, []string{"b", "c", "a"}, ids(items))
}

func TestSortRecent(t *testing.T) {
	now := time.Now()
	items := []Item{
		{ID: "old", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "new", CreatedAt: now},
		{ID: "mid", CreatedAt: now.Add(-time.Hour)},
	}
	Sort(items, Recent, identity, now)
	assert.Equal(t, []string{"new", "mid", "old"}, ids(items))
}

func TestSortTrendingFavorsFreshEngagement(t *testing.T) {
	now := time.Now()
	items := []Item{
		{ID: "stale-popular", NumVotes: 10, Timestamp: epoch(now.Add(-72 * time.Hour))},
		{ID: "fresh-quiet", NumVotes: 0, Timestamp: epoch(now)},
		{ID: "fresh-popular", NumVotes: 5, Timestamp: epoch(now.Add(-time.Hour))},
	}
	Sort(items, Trending, identity, now)
	assert.Equal(t, []string{"fresh-popular", "fresh-quiet", "stale-popular"}, ids(items))
}

func TestTiesBreakByID(t *testing.T) {
	items := []Item{{ID: "b"}, {ID: "a"}}
	Sort(items, Best, identity, time.Now())
	assert.Equal(t, []string{"a", "b"}, ids(items))
}

func TestBumpTimestamp(t *testing.T) {
	now := time.Now()
	ts := epoch(now.Add(-10 * time.Hour))

	bumped := BumpTimestamp(ts, now)
	assert.InDelta(t, epoch(now.Add(-9*time.Hour)), bumped, 1)
	assert.Greater(t, bumped, ts)

	future := epoch(now.Add(time.Hour))
	assert.InDelta(t, epoch(now), BumpTimestamp(future, now), 0.001)
}

func TestVotingCanOvertakeNewerPost(t *testing.T) {
	now := time.Now()
	older := Item{ID: "older", Timestamp: epoch(now.Add(-3 * time.Hour))}
	newer := Item{ID: "newer", Timestamp: epoch(now.Add(-2 * time.Hour))}

	older.NumVotes = 1
	older.Timestamp = BumpTimestamp(older.Timestamp, now)

	items := []Item{newer, older}
	Sort(items, Trending, identity, now)
	assert.Equal(t, []string{"older", "newer"}, ids(items))
}

func TestDemoteViewed(t *testing.T) {
	items := []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	viewed := map[string]struct{}{"a": {}, "c": {}}

	out := DemoteViewed(items, func(i Item) string { return i.ID }, viewed)
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids(out))

	assert.Equal(t, items, DemoteViewed(items, func(i Item) string { return i.ID }, nil))
}
