package database

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-workers/internal/common/config"
)

func TestRedisClient_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestElasticsearchClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		assert.Equal(t, "/kb/_search", r.URL.Path)
		var q map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Contains(t, q, "query")

		w.Write([]byte(`{"hits":{"hits":[{"_source":{"title":"Go","url":"https://go.dev","content":"The Go language"}}]}}`))
	}))
	defer server.Close()

	es, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{server.URL}, Index: "kb"})
	require.NoError(t, err)

	hits, err := es.Search(context.Background(), map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://go.dev", hits[0].Source["url"])
}

func TestElasticsearchClient_MissingIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	}))
	defer server.Close()

	es, err := NewElasticsearch(config.ElasticsearchConfig{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "documents", es.Index())

	hits, err := es.Search(context.Background(), map[string]interface{}{}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
