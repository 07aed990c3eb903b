package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mistapp/backend/internal/database"
	"github.com/mistapp/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeElasticsearch answers the handful of endpoints the client uses
func fakeElasticsearch(t *testing.T, searchHits []string) (*httptest.Server, *[]string) {
	t.Helper()
	var indexed []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`))
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/posts/_doc/"):
			indexed = append(indexed, strings.TrimPrefix(r.URL.Path, "/posts/_doc/"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result":"created"}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"result":"not_found"}`))
		case strings.HasSuffix(r.URL.Path, "/_search"):
			hits := make([]map[string]interface{}, 0, len(searchHits))
			for _, id := range searchHits {
				hits = append(hits, map[string]interface{}{"_id": id, "_score": 1.0})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"hits": map[string]interface{}{"hits": hits},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unexpected request"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &indexed
}

func TestClientSearchAndIndex(t *testing.T) {
	srv, indexed := fakeElasticsearch(t, []string{"p2", "p1"})

	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	ctx := context.Background()
	ids, err := client.SearchPostIDs(ctx, "coffee", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)

	require.NoError(t, client.IndexPost(ctx, PostSearchDoc{ID: "p9", Title: "hi"}))
	assert.Equal(t, []string{"p9"}, *indexed)

	// 404 on delete is treated as already gone
	assert.NoError(t, client.DeletePost(ctx, "missing"))
}

func TestBuildPostQuery(t *testing.T) {
	q := buildPostQuery("latte art", 0)
	assert.Equal(t, 100, q["size"])

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"query":"latte art"`)
	assert.Contains(t, string(raw), `"is_hidden":false`)
}

func TestPostToSearchDoc(t *testing.T) {
	desc := "Campus"
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := PostToSearchDoc(models.Post{
		ID:                  "p1",
		Title:               "Lost",
		Body:                "blue umbrella",
		AuthorID:            "u1",
		LocationDescription: &desc,
		CreatedAt:           created,
	}, "mistuser")

	assert.Equal(t, "mistuser", doc.AuthorUsername)
	assert.Equal(t, "Campus", doc.LocationDescription)
	assert.Equal(t, "2024-03-01T12:00:00Z", doc.CreatedAt)
}

type recordingIndexer struct {
	docs []PostSearchDoc
	fail map[string]bool
}

func (r *recordingIndexer) IndexPost(_ context.Context, doc PostSearchDoc) error {
	if r.fail[doc.ID] {
		return errors.New("boom")
	}
	r.docs = append(r.docs, doc)
	return nil
}

func TestReindex(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:", false)
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))

	author := models.User{Email: "a@example.com", Username: "alice", PasswordHash: "x"}
	require.NoError(t, db.Create(&author).Error)

	old := models.Post{Title: "old", Body: "b", AuthorID: author.ID, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := models.Post{Title: "fresh", Body: "b", AuthorID: author.ID}
	broken := models.Post{Title: "broken", Body: "b", AuthorID: author.ID}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&fresh).Error)
	require.NoError(t, db.Create(&broken).Error)

	idx := &recordingIndexer{fail: map[string]bool{broken.ID: true}}
	n, err := Reindex(context.Background(), db, idx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, idx.docs, 1)
	assert.Equal(t, "fresh", idx.docs[0].Title)
	assert.Equal(t, "alice", idx.docs[0].AuthorUsername)

	all := &recordingIndexer{}
	n, err = Reindex(context.Background(), db, all, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

type memoryCache map[string]string

func (m memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m memoryCache) SetEx(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m[key] = value.(string)
	return nil
}

func TestCachedClientReusesHits(t *testing.T) {
	srv, _ := fakeElasticsearch(t, []string{"p2", "p1"})
	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	store := memoryCache{}
	cached := NewCachedClient(client, store, time.Minute)
	ctx := context.Background()

	ids, err := cached.SearchPostIDs(ctx, "Coffee", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)
	assert.Len(t, store, 1)

	// Served from the cache once Elasticsearch is gone
	srv.Close()
	ids, err = cached.SearchPostIDs(ctx, " coffee ", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)

	_, err = cached.SearchPostIDs(ctx, "coffee", 5)
	assert.Error(t, err)
}

func TestCachedClientWithoutCache(t *testing.T) {
	srv, _ := fakeElasticsearch(t, []string{"p1"})
	client, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	ids, err := NewCachedClient(client, nil, 0).SearchPostIDs(context.Background(), "coffee", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}
