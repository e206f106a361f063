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

// Service calls the in-house GenAI service, which takes a single prompt.
type Service struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewService(settings config.ProviderConfig, client *http.Client) (*Service, error) {
	if settings.BaseURL == "" {
		return nil, errors.NewConfigInvalidError("missing base URL for genai-service")
	}
	return &Service{
		baseURL: strings.TrimRight(settings.BaseURL, "/"),
		apiKey:  settings.APIKey,
		client:  client,
	}, nil
}

func (s *Service) Name() string { return config.ProviderService }

func (s *Service) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	var system, human []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Text)
		} else {
			human = append(human, m.Text)
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"prompt":      strings.Join(human, "\n\n"),
		"system":      strings.Join(system, "\n\n"),
		"temperature": opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/ai/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Provider: s.Name(), StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var apiResponse struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return "", fmt.Errorf("decode genai-service response: %w", err)
	}
	return apiResponse.Text, nil
}
