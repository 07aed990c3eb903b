package dto

import (
	"time"

	"github.com/mistapp/backend/internal/models"
)

// PostResponse is a post with its computed engagement aggregates.
// VoteCount is the mean vote rating (0 with no votes); FlagCount excludes
// flags by superusers.
type PostResponse struct {
	ID                  string           `json:"id"`
	Title               string           `json:"title"`
	Body                string           `json:"body"`
	Author              string           `json:"author"`
	AuthorUsername      string           `json:"author_username,omitempty"`
	Timestamp           float64          `json:"timestamp"`
	Latitude            *float64         `json:"latitude"`
	Longitude           *float64         `json:"longitude"`
	LocationDescription *string          `json:"location_description"`
	CollectibleType     *int             `json:"collectible_type"`
	IsHidden            bool             `json:"is_hidden"`
	CreatedAt           time.Time        `json:"created_at"`
	VoteCount           float64          `json:"votecount"`
	NumVotes            int64            `json:"num_votes"`
	FlagCount           int64            `json:"flagcount"`
	CommentCount        int64            `json:"commentcount"`
	EmojiCounts         map[string]int64 `json:"emoji_dict,omitempty"`
	Distance            *float64         `json:"distance,omitempty"`
}

// CreatePostRequest creates a post. Author defaults to the requester.
type CreatePostRequest struct {
	Title               string   `json:"title" binding:"required,max=40"`
	Body                string   `json:"body" binding:"required,max=1000"`
	Author              string   `json:"author,omitempty"`
	Latitude            *float64 `json:"latitude,omitempty" binding:"omitempty,min=-90,max=90"`
	Longitude           *float64 `json:"longitude,omitempty" binding:"omitempty,min=-180,max=180"`
	LocationDescription *string  `json:"location_description,omitempty" binding:"omitempty,max=40"`
	CollectibleType     *int     `json:"collectible_type,omitempty"`
	Timestamp           *float64 `json:"timestamp,omitempty"`
}

// UpdatePostRequest supports full (PUT) and partial (PATCH) updates; on PUT
// the handler requires Title and Body.
type UpdatePostRequest struct {
	Title               *string  `json:"title,omitempty" binding:"omitempty,max=40"`
	Body                *string  `json:"body,omitempty" binding:"omitempty,max=1000"`
	Latitude            *float64 `json:"latitude,omitempty" binding:"omitempty,min=-90,max=90"`
	Longitude           *float64 `json:"longitude,omitempty" binding:"omitempty,min=-180,max=180"`
	LocationDescription *string  `json:"location_description,omitempty" binding:"omitempty,max=40"`
	CollectibleType     *int     `json:"collectible_type,omitempty"`
	IsHidden            *bool    `json:"is_hidden,omitempty"`
}

// ToPostResponse converts a post without aggregates
func ToPostResponse(post *models.Post) *PostResponse {
	return &PostResponse{
		ID:                  post.ID,
		Title:               post.Title,
		Body:                post.Body,
		Author:              post.AuthorID,
		Timestamp:           post.Timestamp,
		Latitude:            post.Latitude,
		Longitude:           post.Longitude,
		LocationDescription: post.LocationDescription,
		CollectibleType:     post.CollectibleType,
		IsHidden:            post.IsHidden,
		CreatedAt:           post.CreatedAt,
	}
}

// CommentResponse is a comment with its aggregates. VoteCount is the
// number of comment votes.
type CommentResponse struct {
	ID             string  `json:"id"`
	Body           string  `json:"body"`
	Post           string  `json:"post"`
	Author         string  `json:"author"`
	AuthorUsername string  `json:"author_username,omitempty"`
	Timestamp      float64 `json:"timestamp"`
	VoteCount      float64 `json:"votecount"`
	FlagCount      int64   `json:"flagcount"`
}

type CreateCommentRequest struct {
	Body   string `json:"body" binding:"required,max=500"`
	Post   string `json:"post" binding:"required"`
	Author string `json:"author,omitempty"`
}

// WordResponse is a word with the number of posts containing it
type WordResponse struct {
	Text        string `json:"text"`
	Occurrences int64  `json:"occurrences"`
}
