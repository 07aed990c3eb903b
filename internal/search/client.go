package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
)

// IndexPosts is the only index Mist keeps; users are searched in SQL
const IndexPosts = "posts"

// Client wraps the Elasticsearch client with Mist-specific functionality
type Client struct {
	es *elasticsearch.Client
}

// NewClient creates a new Elasticsearch client and verifies the connection
func NewClient(url string, transport http.RoundTripper) (*Client, error) {
	if url == "" {
		url = "http://localhost:9200"
	}

	cfg := elasticsearch.Config{
		Addresses: []string{url},
		Transport: transport,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info failed: %s", res.Status())
	}

	return &Client{es: es}, nil
}

// InitializeIndices creates the posts index if it does not exist
func (c *Client) InitializeIndices(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id": map[string]interface{}{
					"type": "keyword",
				},
				"title": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"body": map[string]interface{}{
					"type":     "text",
					"analyzer": "standard",
				},
				"author": map[string]interface{}{
					"type": "keyword",
				},
				"author_username": map[string]interface{}{
					"type": "keyword",
				},
				"location_description": map[string]interface{}{
					"type": "text",
				},
				"is_hidden": map[string]interface{}{
					"type": "boolean",
				},
				"created_at": map[string]interface{}{
					"type": "date",
				},
			},
		},
	}

	if err := c.createIndex(ctx, IndexPosts, mapping); err != nil {
		return fmt.Errorf("failed to create posts index: %w", err)
	}
	return nil
}

func (c *Client) createIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	res, err := c.es.Indices.Exists(
		[]string{indexName},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		indexName,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("creating index", res.Status(), res.Body)
	}
	return nil
}

// IndexPost indexes or replaces a post document
func (c *Client) IndexPost(ctx context.Context, doc PostSearchDoc) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal post document: %w", err)
	}

	res, err := c.es.Index(
		IndexPosts,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(doc.ID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index post: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("indexing post", res.Status(), res.Body)
	}
	return nil
}

// DeletePost removes a post document. A missing document is not an error.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	res, err := c.es.Delete(
		IndexPosts,
		postID,
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("deleting post", res.Status(), res.Body)
	}
	return nil
}

// SearchPostIDs returns the ids of visible posts matching text, best match first
func (c *Client) SearchPostIDs(ctx context.Context, text string, limit int) ([]string, error) {
	query := buildPostQuery(text, limit)
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(IndexPosts),
		c.es.Search.WithBody(bytes.NewReader(queryJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("searching posts", res.Status(), res.Body)
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]string, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func buildPostQuery(text string, limit int) map[string]interface{} {
	if limit <= 0 {
		limit = 100
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{
						"multi_match": map[string]interface{}{
							"query":     text,
							"fields":    []string{"title^2", "body", "location_description"},
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"is_hidden": false}},
				},
			},
		},
		"_source": false,
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
		"size": limit,
	}
}

func responseError(action, status string, body io.Reader) error {
	var errResp map[string]interface{}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return fmt.Errorf("error %s [%s]", action, status)
	}
	return fmt.Errorf("error %s: [%s] %v", action, status, errResp["error"])
}
