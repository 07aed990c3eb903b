// Package ranking orders post listings.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Order selects a ranking strategy
type Order string

const (
	Best     Order = "best"
	Recent   Order = "recent"
	Trending Order = "trending"
)

// TrendingGravity is the exponent of the age penalty in TrendingScore
const TrendingGravity = 1.5

// VoteBumpFraction is how far toward now a vote moves a post's timestamp
const VoteBumpFraction = 0.1

// ParseOrder parses the order query parameter; empty means Trending
func ParseOrder(raw string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Trending:
		return Trending, nil
	case Best:
		return Best, nil
	case Recent:
		return Recent, nil
	default:
		return "", fmt.Errorf("unknown order %q", raw)
	}
}

// Item is the ranking view of a post
type Item struct {
	ID        string
	VoteCount float64
	FlagCount int64
	NumVotes  int64
	CreatedAt time.Time
	Timestamp float64
}

// Score is votecount minus flagcount, the key for Best
func (i Item) Score() float64 {
	return i.VoteCount - float64(i.FlagCount)
}

// TrendingScore decays engagement by age measured from the effective
// freshness timestamp: (1 + votes) / (ageHours + 2)^TrendingGravity.
func TrendingScore(numVotes int64, timestamp float64, now time.Time) float64 {
	nowEpoch := float64(now.UnixNano()) / float64(time.Second)
	ageHours := math.Max(nowEpoch-timestamp, 0) / 3600
	return float64(1+numVotes) / math.Pow(ageHours+2, TrendingGravity)
}

// BumpTimestamp moves timestamp forward by VoteBumpFraction of its age,
// never past now.
func BumpTimestamp(timestamp float64, now time.Time) float64 {
	nowEpoch := float64(now.UnixNano()) / float64(time.Second)
	if timestamp >= nowEpoch {
		return nowEpoch
	}
	return timestamp + (nowEpoch-timestamp)*VoteBumpFraction
}

// Sort orders items in place. Ties break by id so results are stable
// across requests.
func Sort[T any](items []T, order Order, key func(T) Item, now time.Time) {
	less := func(a, b Item) bool {
		switch order {
		case Best:
			if a.Score() != b.Score() {
				return a.Score() > b.Score()
			}
		case Recent:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			sa := TrendingScore(a.NumVotes, a.Timestamp, now)
			sb := TrendingScore(b.NumVotes, b.Timestamp, now)
			if sa != sb {
				return sa > sb
			}
		}
		return a.ID < b.ID
	}

	sort.SliceStable(items, func(i, j int) bool {
		return less(key(items[i]), key(items[j]))
	})
}

// DemoteViewed moves items whose id is in viewed to the end, keeping the
// relative order of both groups.
func DemoteViewed[T any](items []T, id func(T) string, viewed map[string]struct{}) []T {
	if len(viewed) == 0 {
		return items
	}
	fresh := make([]T, 0, len(items))
	var seen []T
	for _, item := range items {
		if _, ok := viewed[id(item)]; ok {
			seen = append(seen, item)
		} else {
			fresh = append(fresh, item)
		}
	}
	return append(fresh, seen...)
}
