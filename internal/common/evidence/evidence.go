// Package evidence adapts web search, page fetching and page summarization
// for the web answer strategy.
package evidence

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"search-workers/internal/common/cache"
	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
	"search-workers/internal/common/errors"
	httpclient "search-workers/internal/common/http"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/validation"
	"search-workers/internal/models"
)

// MaxResults is the upper bound on accepted search hits.
const MaxResults = 10

type Searcher interface {
	Search(ctx context.Context, query string) ([]models.EvidenceResult, error)
}

type Opener interface {
	Open(ctx context.Context, url string) (*models.OpenedPage, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, page models.OpenedPage) (*models.PageSummary, error)
}

// Source bundles the three evidence capabilities.
type Source struct {
	Searcher
	Opener
	Summarizer
}

// Deps are the shared clients a Source is built from.
type Deps struct {
	HTTP          *httpclient.Client
	Summaries     llm.Gateway
	Elasticsearch *database.ElasticsearchClient
	Cache         cache.Store
	Logger        logger.Logger
}

// New wires the configured search provider, the page fetcher and the model
// summarizer, with caching around search and fetch.
func New(cfg *config.Config, deps Deps) (*Source, error) {
	if deps.Summaries == nil {
		return nil, errors.NewConfigInvalidError("evidence source needs a summary gateway")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	hc := deps.HTTP
	if hc == nil {
		hc = httpclient.NewClientWithOptions(httpclient.Options{
			Timeout:      config.GetDuration(cfg.Fetch.Timeout),
			MaxRedirects: cfg.Fetch.MaxRedirects,
			UserAgent:    cfg.Fetch.UserAgent,
			MaxBytes:     cfg.Fetch.MaxBytes,
		})
	}

	searcher, err := NewSearcher(cfg.Search, hc.HTTPClient(), deps.Elasticsearch, log)
	if err != nil {
		return nil, err
	}
	var opener Opener = NewPageFetcher(hc, cfg.Fetch.MaxChars, log)

	if deps.Cache != nil {
		searcher = NewCachedSearcher(searcher, deps.Cache, cfg.Cache.KeyPrefix, log)
		opener = NewCachedOpener(opener, deps.Cache, cfg.Cache.KeyPrefix, log)
	}

	summarizer := NewModelSummarizer(deps.Summaries, cfg.Model.Temperatures.Summary, cfg.Pipeline.MinSummarizeLength, log)

	return &Source{Searcher: searcher, Opener: opener, Summarizer: summarizer}, nil
}

// NewSearcher returns the search provider named in cfg.
func NewSearcher(cfg config.SearchConfig, client *http.Client, es *database.ElasticsearchClient, log logger.Logger) (Searcher, error) {
	timeout := config.GetDuration(cfg.Timeout)
	limit := cfg.MaxResults
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}

	switch cfg.Provider {
	case config.SearchTavily, "":
		if cfg.APIKey == "" {
			return nil, errors.NewConfigInvalidError("TAVILY_API_KEY is required for tavily search")
		}
		return &Tavily{apiKey: cfg.APIKey, baseURL: cfg.BaseURL, maxResults: limit, timeout: timeout, client: client, logger: log}, nil
	case config.SearchGoogle:
		if cfg.APIKey == "" || cfg.EngineID == "" {
			return nil, errors.NewConfigInvalidError("google search needs an API key and engine id")
		}
		return &Google{apiKey: cfg.APIKey, engineID: cfg.EngineID, baseURL: cfg.BaseURL, maxResults: limit, timeout: timeout, client: client, logger: log}, nil
	case config.SearchElasticsearch:
		if es == nil {
			return nil, errors.NewConfigInvalidError("elasticsearch search selected without a configured cluster")
		}
		return &Index{es: es, maxResults: limit, timeout: timeout, logger: log}, nil
	default:
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown search provider %q", cfg.Provider))
	}
}

// acceptResults trims and validates raw hits, dropping invalid ones and
// capping the list at limit.
func acceptResults(raw []models.EvidenceResult, limit int, log logger.Logger) []models.EvidenceResult {
	out := make([]models.EvidenceResult, 0, len(raw))
	for _, r := range raw {
		if len(out) >= limit {
			break
		}
		r.Title = strings.TrimSpace(r.Title)
		r.URL = strings.TrimSpace(r.URL)
		r.Snippet = strings.TrimSpace(r.Snippet)

		if res := validation.EvidenceResult.Validate(r); !res.Valid {
			log.Warn("dropping invalid search result", map[string]interface{}{
				"url":    r.URL,
				"reason": res.String(),
			})
			continue
		}
		out = append(out, r)
	}
	return out
}

func searchError(ctx context.Context, provider string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewWebSearchTimeoutError(provider)
	}
	return errors.NewWebSearchFailedError(provider, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
