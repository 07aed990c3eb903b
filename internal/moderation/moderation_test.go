package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImpermissible(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		bound  int
		want   bool
	}{
		{"no flags", Counts{VoteCount: 0, FlagCount: 0}, PostFlagBound, false},
		{"at post floor", Counts{VoteCount: 0, FlagCount: 3}, PostFlagBound, false},
		{"above post floor no votes", Counts{VoteCount: 0, FlagCount: 4}, PostFlagBound, true},
		{"votes outweigh flags", Counts{VoteCount: 25, FlagCount: 5}, PostFlagBound, false},
		{"flags beat sqrt of votes", Counts{VoteCount: 16, FlagCount: 5}, PostFlagBound, true},
		{"comment floor is lower", Counts{VoteCount: 0, FlagCount: 3}, CommentFlagBound, true},
		{"at comment floor", Counts{VoteCount: 0, FlagCount: 2}, CommentFlagBound, false},
		{"negative mean rating treated as zero", Counts{VoteCount: -2, FlagCount: 4}, PostFlagBound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Impermissible(tt.counts, tt.bound))
		})
	}
}

func TestElevenFlagsOnUnvotedPost(t *testing.T) {
	assert.True(t, PostImpermissible(Counts{VoteCount: 0, FlagCount: 11}))
}

func TestFilterKeepsOrder(t *testing.T) {
	type item struct {
		id string
		c  Counts
	}
	items := []item{
		{"a", Counts{FlagCount: 0}},
		{"b", Counts{FlagCount: 9}},
		{"c", Counts{VoteCount: 100, FlagCount: 9}},
		{"d", Counts{FlagCount: 1}},
	}

	kept := Filter(items, func(i item) Counts { return i.c }, PostFlagBound)

	ids := make([]string, 0, len(kept))
	for _, k := range kept {
		ids = append(ids, k.id)
	}
	assert.Equal(t, []string{"a", "c", "d"}, ids)
}

func TestShouldBan(t *testing.T) {
	assert.False(t, ShouldBan(10))
	assert.True(t, ShouldBan(11))
}
