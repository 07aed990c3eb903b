// Package moderation decides which posts and comments are hidden from
// listings and when an author is banned for abusive content.
package moderation

import (
	"math"
)

const (
	// PostFlagBound is the flag floor above which a post may be hidden
	PostFlagBound = 3
	// CommentFlagBound is the flag floor above which a comment may be hidden
	CommentFlagBound = 2
	// AutobanPostCount is the number of impermissible posts an author may
	// accumulate; one more triggers a ban.
	AutobanPostCount = 10
)

// Counts carries the engagement aggregates moderation looks at.
// FlagCount must already exclude flags by superusers.
type Counts struct {
	VoteCount float64
	FlagCount int64
}

// Impermissible reports whether an item with the given counts is hidden:
// it has more than bound flags and more flags than the square root of its
// vote count.
func Impermissible(c Counts, bound int) bool {
	votes := math.Max(c.VoteCount, 0)
	return c.FlagCount > int64(bound) && float64(c.FlagCount) > math.Sqrt(votes)
}

func PostImpermissible(c Counts) bool {
	return Impermissible(c, PostFlagBound)
}

func CommentImpermissible(c Counts) bool {
	return Impermissible(c, CommentFlagBound)
}

// Filter returns the items that are not impermissible, preserving order
func Filter[T any](items []T, counts func(T) Counts, bound int) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !Impermissible(counts(item), bound) {
			out = append(out, item)
		}
	}
	return out
}

// ShouldBan reports whether an author with this many impermissible posts
// must be banned.
func ShouldBan(impermissiblePosts int) bool {
	return impermissiblePosts > AutobanPostCount
}
