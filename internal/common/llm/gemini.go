package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"search-workers/internal/common/config"
	"search-workers/internal/common/errors"
)

// Gemini calls the Gemini API through the official SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, settings config.ProviderConfig, httpClient *http.Client) (*Gemini, error) {
	if settings.APIKey == "" {
		return nil, errors.NewConfigInvalidError("missing API key for gemini")
	}

	cc := &genai.ClientConfig{
		APIKey:     settings.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if settings.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: settings.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: settings.Model}, nil
}

func (g *Gemini) Name() string { return config.ProviderGemini }

func (g *Gemini) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Text)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(opts.Temperature),
	}
	if len(system) > 0 {
		gc.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
