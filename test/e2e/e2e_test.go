// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/config"
	"search-workers/internal/common/logger"
	"search-workers/internal/workers/search"
)

// These tests need a running Zeebe broker. Set ZEEBE_ADDRESS (for example
// localhost:26500) to run them; model and search traffic goes to a local fake.

func brokerAddress(t *testing.T) string {
	addr := os.Getenv("ZEEBE_ADDRESS")
	if addr == "" {
		t.Skip("ZEEBE_ADDRESS not set, skipping broker e2e tests")
	}
	return addr
}

// ==========================
// Fake upstream
// ==========================

func newUpstream(t *testing.T) *httptest.Server {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"title": "Changelog", "url": srv.URL + "/page/changelog", "content": "What changed"},
			},
		})
	})
	mux.HandleFunc("/page/changelog", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Release 3.1 adds streaming responses, fixes the retry bug and drops support for the legacy API."))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		text := "A binary search tree keeps smaller keys on the left and larger keys on the right."
		if strings.Contains(body.Messages[0].Content, "condense web pages") {
			text = "Release 3.1 adds streaming responses and fixes the retry bug."
		} else if strings.Contains(body.Messages[0].Content, "page summaries") {
			text = "Release 3.1 added streaming responses and fixed the retry bug."
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{{"message": map[string]string{"content": text}}},
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func e2eConfig(broker, upstream string) *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "search-workers-e2e"},
		Camunda: config.CamundaConfig{BrokerAddress: broker, RequestTimeout: 30000},
		Model: config.ModelConfig{
			Provider:        config.ProviderOpenAI,
			SummaryProvider: config.ProviderOpenAI,
			Providers: map[string]config.ProviderConfig{
				config.ProviderOpenAI: {APIKey: "sk-e2e", Model: "gpt-e2e", BaseURL: upstream + "/v1"},
			},
			Timeout: 10000,
		},
		Search:   config.SearchConfig{Provider: config.SearchTavily, APIKey: "tv-e2e", BaseURL: upstream + "/search", Timeout: 5000, MaxResults: 10},
		Fetch:    config.FetchConfig{Timeout: 5000, MaxBytes: 1 << 20, MaxChars: 12000, MaxRedirects: 3},
		Pipeline: config.PipelineConfig{PageTimeout: 5000, MinSummarizeLength: 50},
		Cache:    config.CacheConfig{Backend: config.CacheMemory, TTL: 60000, MaxEntries: 32, KeyPrefix: "e2e:"},
	}
}

// ==========================
// Process tests
// ==========================

func TestSearchAnswerProcess(t *testing.T) {
	broker := brokerAddress(t)
	upstream := newUpstream(t)
	cfg := e2eConfig(broker, upstream.URL)
	log := logger.NewTestLogger(t)

	client, err := camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, err = client.GetClient().NewDeployResourceCommand().
		AddResourceFile(filepath.Join("..", "..", "configs", "bpmn", "search-answer.bpmn")).
		Send(ctx)
	require.NoError(t, err)

	pipeline, err := search.Build(ctx, cfg, search.Deps{}, nil, log)
	require.NoError(t, err)

	registry := camunda.NewRegistry(client.GetClient(), log)
	defer registry.Close()
	require.Equal(t, 5, pipeline.Register(registry, cfg))

	tests := []struct {
		name        string
		query       string
		wantMode    string
		wantSources []interface{}
	}{
		{"direct", "What is a binary search tree?", "direct", []interface{}{}},
		{"web", "latest changelog for release 3.1", "web", []interface{}{upstream.URL + "/page/changelog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars, err := client.StartAnswerProcess(ctx, "search-answer", tt.query)
			require.NoError(t, err)

			answer, ok := vars["answer"].(map[string]interface{})
			require.True(t, ok, "answer variable missing: %v", vars)
			assert.NotEmpty(t, answer["answer"])
			assert.Equal(t, tt.wantMode, answer["mode"])
			assert.Equal(t, tt.wantSources, answer["sources"])
		})
	}
}

func TestBrokerHealth(t *testing.T) {
	broker := brokerAddress(t)

	client, err := camunda.NewClientWithConfig(camunda.ConfigFrom(config.CamundaConfig{BrokerAddress: broker}))
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}
