package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"search-workers/internal/common/config"
	"search-workers/internal/common/errors"
)

// OpenAICompatible talks to any /chat/completions endpoint (OpenAI, Groq,
// DeepSeek).
type OpenAICompatible struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAICompatible(name string, settings config.ProviderConfig, client *http.Client) (*OpenAICompatible, error) {
	if settings.APIKey == "" {
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("missing API key for %s", name))
	}
	if settings.Model == "" || settings.BaseURL == "" {
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("missing model or base URL for %s", name))
	}
	return &OpenAICompatible{
		name:    name,
		apiKey:  settings.APIKey,
		model:   settings.Model,
		baseURL: strings.TrimRight(settings.BaseURL, "/"),
		client:  client,
	}, nil
}

func (p *OpenAICompatible) Name() string { return p.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (p *OpenAICompatible) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	chat := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == RoleSystem {
			role = "system"
		}
		chat = append(chat, chatMessage{Role: role, Content: m.Text})
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":       p.model,
		"messages":    chat,
		"temperature": opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Provider: p.name, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode %s response: %w", p.name, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return parsed.Choices[0].Message.Content, nil
}
