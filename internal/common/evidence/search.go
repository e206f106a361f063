package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
	"search-workers/internal/common/logger"
	"search-workers/internal/models"
)

const (
	defaultTavilyURL = "https://api.tavily.com/search"
	defaultGoogleURL = "https://www.googleapis.com/customsearch/v1"
)

// Tavily queries the Tavily search API.
type Tavily struct {
	apiKey     string
	baseURL    string
	maxResults int
	timeout    time.Duration
	client     *http.Client
	logger     logger.Logger
}

func (t *Tavily) Search(ctx context.Context, query string) ([]models.EvidenceResult, error) {
	ctx, cancel := withTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]interface{}{
		"api_key":      t.apiKey,
		"query":        query,
		"max_results":  t.maxResults,
		"search_depth": "basic",
	})
	if err != nil {
		return nil, err
	}

	endpoint := t.baseURL
	if endpoint == "" {
		endpoint = defaultTavilyURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, searchError(ctx, config.SearchTavily, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, searchError(ctx, config.SearchTavily, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, searchError(ctx, config.SearchTavily, fmt.Errorf("tavily returned %d: %s", resp.StatusCode, snippet))
	}

	var apiResponse struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, searchError(ctx, config.SearchTavily, fmt.Errorf("decode tavily response: %w", err))
	}

	raw := make([]models.EvidenceResult, 0, len(apiResponse.Results))
	for _, r := range apiResponse.Results {
		raw = append(raw, models.EvidenceResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return acceptResults(raw, t.maxResults, t.logger), nil
}

// Google queries the Custom Search JSON API.
type Google struct {
	apiKey     string
	engineID   string
	baseURL    string
	maxResults int
	timeout    time.Duration
	client     *http.Client
	logger     logger.Logger
}

func (g *Google) searchURL(query string) (string, error) {
	endpoint := g.baseURL
	if endpoint == "" {
		endpoint = defaultGoogleURL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	params := url.Values{}
	params.Add("key", g.apiKey)
	params.Add("cx", g.engineID)
	params.Add("q", query)
	params.Add("num", strconv.Itoa(g.maxResults))
	u.RawQuery = params.Encode()
	return u.String(), nil
}

func (g *Google) Search(ctx context.Context, query string) ([]models.EvidenceResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	searchURL, err := g.searchURL(query)
	if err != nil {
		return nil, searchError(ctx, config.SearchGoogle, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, searchError(ctx, config.SearchGoogle, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, searchError(ctx, config.SearchGoogle, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, searchError(ctx, config.SearchGoogle, fmt.Errorf("search API returned %d", resp.StatusCode))
	}

	var apiResponse struct {
		Items []struct {
			Link    string `json:"link"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, searchError(ctx, config.SearchGoogle, err)
	}

	raw := make([]models.EvidenceResult, 0, len(apiResponse.Items))
	for _, item := range apiResponse.Items {
		raw = append(raw, models.EvidenceResult{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return acceptResults(raw, g.maxResults, g.logger), nil
}

// Index searches a pre-crawled page index in Elasticsearch.
type Index struct {
	es         *database.ElasticsearchClient
	maxResults int
	timeout    time.Duration
	logger     logger.Logger
}

func (i *Index) Search(ctx context.Context, query string) ([]models.EvidenceResult, error) {
	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	hits, err := i.es.Search(ctx, map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content", "snippet"},
			},
		},
	}, i.maxResults)
	if err != nil {
		return nil, searchError(ctx, config.SearchElasticsearch, err)
	}

	raw := make([]models.EvidenceResult, 0, len(hits))
	for _, hit := range hits {
		snippet := stringField(hit.Source, "snippet")
		if snippet == "" {
			snippet = truncateRunes(stringField(hit.Source, "content"), 300)
		}
		raw = append(raw, models.EvidenceResult{
			Title:   stringField(hit.Source, "title"),
			URL:     stringField(hit.Source, "url"),
			Snippet: snippet,
		})
	}
	return acceptResults(raw, i.maxResults, i.logger), nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
