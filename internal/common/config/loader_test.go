package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODEL_PROVIDER", "RAG_MODEL_PROVIDER", "SEARCH_PROVIDER",
		"REDIS_ADDRESS", "ZEEBE_ADDRESS", "APP_ENVIRONMENT",
		"MODEL_SUMMARY_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "TAVILY_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	clearProviderEnv(t)
	path := writeConfig(t, `
app:
  name: search-workers-test
camunda:
  broker_address: localhost:26500
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "search-workers-test", cfg.App.Name)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, ProviderGemini, cfg.Model.SummaryProvider)
	assert.Equal(t, SearchTavily, cfg.Search.Provider)
	assert.Equal(t, "https://api.tavily.com/search", cfg.Search.BaseURL)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 20000, cfg.Pipeline.PageTimeout)
	assert.Equal(t, 50, cfg.Pipeline.MinSummarizeLength)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.InDelta(t, 0.3, cfg.Model.Temperatures.Direct, 0.0001)
	assert.InDelta(t, 0.3, cfg.Model.Temperatures.Repair, 0.0001)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Model.Settings(ProviderOpenAI).BaseURL)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.NoError(t, ValidateForWorkers(cfg))
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("MODEL_PROVIDER", "groq")
	t.Setenv("RAG_MODEL_PROVIDER", "openai")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("GROQ_MODEL", "mixtral")
	t.Setenv("TAVILY_API_KEY", "tvly-key")

	path := writeConfig(t, `
app:
  name: env-test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderGroq, cfg.Model.Provider)
	assert.Equal(t, ProviderOpenAI, cfg.Model.SummaryProvider)
	assert.Equal(t, "groq-key", cfg.Model.Settings(ProviderGroq).APIKey)
	assert.Equal(t, "mixtral", cfg.Model.Settings(ProviderGroq).Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.Model.Settings(ProviderGroq).BaseURL)
	assert.Equal(t, "tvly-key", cfg.Search.APIKey)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")

	path := writeConfig(t, `
cache:
  backend: redis
database:
  redis:
    address: ${TEST_REDIS_ADDR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Database.Redis.Address)
}

func TestLoadFromFile_ShippedConfig(t *testing.T) {
	shipped := filepath.Join("..", "..", "..", "configs", "config.yaml")

	t.Run("summary provider from RAG_MODEL_PROVIDER", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("RAG_MODEL_PROVIDER", "openai")
		t.Setenv("OPENAI_API_KEY", "sk-test")

		cfg, err := LoadFromFile(shipped)
		require.NoError(t, err)
		assert.Equal(t, ProviderGemini, cfg.Model.Provider)
		assert.Equal(t, ProviderOpenAI, cfg.Model.SummaryProvider)
		assert.Equal(t, "sk-test", cfg.Model.Settings(ProviderOpenAI).APIKey)
	})

	t.Run("unset placeholders become empty", func(t *testing.T) {
		clearProviderEnv(t)

		cfg, err := LoadFromFile(shipped)
		require.NoError(t, err)
		assert.Equal(t, ProviderGemini, cfg.Model.SummaryProvider)
		assert.Empty(t, cfg.Model.Settings(ProviderGemini).APIKey)
		assert.Empty(t, cfg.Search.APIKey)
		assert.Empty(t, cfg.Camunda.BrokerAddress)
		assert.Error(t, ValidateForWorkers(cfg))
		assert.Equal(t, CacheNone, cfg.Cache.Backend)
	})
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown model provider",
			body: "model:\n  provider: mystery\n",
		},
		{
			name: "google search without engine id",
			body: "search:\n  provider: google\n",
		},
		{
			name: "elasticsearch search without addresses",
			body: "search:\n  provider: elasticsearch\n",
		},
		{
			name: "redis cache without address",
			body: "cache:\n  backend: redis\n",
		},
		{
			name: "unknown cache backend",
			body: "cache:\n  backend: memcached\n",
		},
		{
			name: "negative max results",
			body: "search:\n  max_results: -1\n",
		},
	}

	clearProviderEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"route-query": {Enabled: false, MaxJobsActive: 2, Timeout: 1000},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "route-query"))
	assert.True(t, IsWorkerEnabled(cfg, "answer-query"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "route-query").MaxJobsActive)
	assert.Equal(t, 60000, GetWorkerConfig(cfg, "answer-query").Timeout)
}
