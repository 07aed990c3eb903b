package search

import (
	"time"

	"github.com/mistapp/backend/internal/models"
)

// PostSearchDoc is the post document stored in Elasticsearch
type PostSearchDoc struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Body                string `json:"body"`
	Author              string `json:"author"`
	AuthorUsername      string `json:"author_username"`
	LocationDescription string `json:"location_description,omitempty"`
	IsHidden            bool   `json:"is_hidden"`
	CreatedAt           string `json:"created_at"`
}

// PostToSearchDoc converts a Post model to a search document
func PostToSearchDoc(post models.Post, username string) PostSearchDoc {
	doc := PostSearchDoc{
		ID:             post.ID,
		Title:          post.Title,
		Body:           post.Body,
		Author:         post.AuthorID,
		AuthorUsername: username,
		IsHidden:       post.IsHidden,
		CreatedAt:      post.CreatedAt.UTC().Format(time.RFC3339),
	}
	if post.LocationDescription != nil {
		doc.LocationDescription = *post.LocationDescription
	}
	return doc
}
