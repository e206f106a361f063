package evidence

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"search-workers/internal/common/errors"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/validation"
	"search-workers/internal/models"
)

const summarySystemPrompt = `You condense web pages for a research assistant.
Summarize the page in 3 to 6 factual sentences.
Keep names, numbers, dates and versions exactly as written.
Use only the page text. Do not add commentary or opinions.`

// ModelSummarizer condenses opened pages through the summary model.
type ModelSummarizer struct {
	gateway     llm.Gateway
	temperature float32
	minLength   int
	logger      logger.Logger
}

func NewModelSummarizer(gateway llm.Gateway, temperature float32, minLength int, log logger.Logger) *ModelSummarizer {
	return &ModelSummarizer{gateway: gateway, temperature: temperature, minLength: minLength, logger: log}
}

func (s *ModelSummarizer) Summarize(ctx context.Context, page models.OpenedPage) (*models.PageSummary, error) {
	content := strings.TrimSpace(page.Content)
	if n := utf8.RuneCountInString(content); n < s.minLength {
		return nil, errors.NewSummarizeFailedError(page.URL, fmt.Errorf("need at least %d characters to summarize, got %d", s.minLength, n))
	}

	resp, err := s.gateway.Invoke(ctx, []llm.Message{
		llm.System(summarySystemPrompt),
		llm.Human(content),
	}, llm.Options{Temperature: s.temperature})
	if err != nil {
		return nil, errors.NewSummarizeFailedError(page.URL, err)
	}

	summary := &models.PageSummary{URL: page.URL, Summary: strings.TrimSpace(resp.Text)}
	if res := validation.PageSummary.Validate(summary); !res.Valid {
		return nil, errors.NewSummarizeFailedError(page.URL, res.Err())
	}
	return summary, nil
}
