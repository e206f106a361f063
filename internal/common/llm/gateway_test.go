package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-workers/internal/common/config"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func chatCompletion(text string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"role": "assistant", "content": text}},
		},
	})
	return string(data)
}

func newOpenAIClient(t *testing.T, url string, timeout time.Duration, retries int) *Client {
	t.Helper()
	provider, err := NewOpenAICompatible(config.ProviderOpenAI, config.ProviderConfig{
		APIKey:  "sk-test",
		Model:   "gpt-test",
		BaseURL: url,
	}, &http.Client{})
	require.NoError(t, err)
	return NewClient(provider, timeout, retries, logger.NewTestLogger(t))
}

var prompt = []Message{
	System("You are terse."),
	Human("Capital of France?"),
}

// ==========================
// OpenAI-compatible provider
// ==========================

func TestClient_Invoke_OpenAISuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body struct {
			Model       string        `json:"model"`
			Messages    []chatMessage `json:"messages"`
			Temperature float32       `json:"temperature"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body.Model)
		assert.InDelta(t, 0.3, body.Temperature, 0.0001)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "Capital of France?", body.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatCompletion("Paris.")))
	}))
	defer server.Close()

	client := newOpenAIClient(t, server.URL, time.Second, 0)
	resp, err := client.Invoke(context.Background(), prompt, Options{Temperature: 0.3})

	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Text)
	assert.Equal(t, config.ProviderOpenAI, resp.Provider)
}

func TestClient_Invoke_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chatCompletion("third time lucky")))
	}))
	defer server.Close()

	client := newOpenAIClient(t, server.URL, 5*time.Second, 2)
	resp, err := client.Invoke(context.Background(), prompt, Options{})

	require.NoError(t, err)
	assert.Equal(t, "third time lucky", resp.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Invoke_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	client := newOpenAIClient(t, server.URL, time.Second, 3)
	resp, err := client.Invoke(context.Background(), prompt, Options{})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelUnavailable), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Invoke_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newOpenAIClient(t, server.URL, 50*time.Millisecond, 1)
	resp, err := client.Invoke(context.Background(), prompt, Options{})

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeLLMTimeout), "got %v", err)
}

func TestClient_Invoke_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newOpenAIClient(t, server.URL, time.Second, 0)
	_, err := client.Invoke(context.Background(), prompt, Options{})

	assert.True(t, errors.HasCode(err, errors.ErrCodeModelUnavailable))
}

// ==========================
// GenAI service provider
// ==========================

func TestService_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "You are terse.", body["system"])
		assert.Equal(t, "Capital of France?", body["prompt"])
		w.Write([]byte(`{"text":"Paris"}`))
	}))
	defer server.Close()

	provider, err := NewService(config.ProviderConfig{BaseURL: server.URL + "/"}, server.Client())
	require.NoError(t, err)

	text, err := provider.Generate(context.Background(), prompt, Options{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "Paris", text)
}

// ==========================
// Gemini provider
// ==========================

func TestGemini_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), "You are terse.")
		assert.Contains(t, string(raw), "Capital of France?")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Paris."}]}}]}`))
	}))
	defer server.Close()

	provider, err := NewGemini(context.Background(), config.ProviderConfig{
		APIKey:  "gm-test",
		Model:   "gemini-test",
		BaseURL: server.URL + "/",
	}, server.Client())
	require.NoError(t, err)

	text, err := provider.Generate(context.Background(), prompt, Options{Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", text)
}

// ==========================
// Factory
// ==========================

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewProvider(ctx, "mystery", config.ProviderConfig{}, nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	})

	t.Run("openai-compatible requires a key", func(t *testing.T) {
		_, err := NewProvider(ctx, config.ProviderGroq, config.ProviderConfig{Model: "m", BaseURL: "http://x"}, nil)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	})

	t.Run("deepseek keeps its name", func(t *testing.T) {
		p, err := NewProvider(ctx, config.ProviderDeepSeek, config.ProviderConfig{APIKey: "k", Model: "m", BaseURL: "http://x"}, nil)
		require.NoError(t, err)
		assert.Equal(t, config.ProviderDeepSeek, p.Name())
	})
}

func TestGatewayFunc(t *testing.T) {
	var g Gateway = GatewayFunc(func(ctx context.Context, messages []Message, opts Options) (*Response, error) {
		return &Response{Text: messages[len(messages)-1].Text}, nil
	})
	resp, err := g.Invoke(context.Background(), prompt, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Capital of France?", resp.Text)
}
