// internal/workers/search/web-answer/handler.go
package webanswer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"golang.org/x/sync/errgroup"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/evidence"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/models"
)

const TaskType = "web-answer"

// TopN is how many search results are opened and summarized.
const TopN = 5

const systemPrompt = `You are a research assistant that answers strictly from the provided page summaries.
Use ONLY the information in the summaries. Do not add outside facts.
Write a clear answer of 5 to 8 sentences.
If the summaries do not contain the answer, say so explicitly instead of guessing.`

// Evidence is the search, open and summarize surface the strategy consumes.
type Evidence interface {
	evidence.Searcher
	evidence.Opener
	evidence.Summarizer
}

// DirectStrategy answers without evidence. It backs the empty-evidence path.
type DirectStrategy interface {
	Run(ctx context.Context, query string) (*models.Candidate, error)
}

type Handler struct {
	config       *Config
	evidence     Evidence
	gateway      llm.Gateway
	direct       DirectStrategy
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, ev Evidence, gateway llm.Gateway, direct DirectStrategy, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		evidence:     ev,
		gateway:      gateway,
		direct:       direct,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	candidate, err := h.Run(ctx, input.Query)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.Complete(ctx, client, job, &Output{Candidate: *candidate}); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Run gathers evidence, summarizes the top results and synthesizes a cited
// answer. Evidence failures degrade the answer; only model failures surface.
func (h *Handler) Run(ctx context.Context, query string) (*models.Candidate, error) {
	summaries, state := h.gather(ctx, query)
	metrics.EvidenceFallbacks.WithLabelValues(string(state)).Inc()

	if len(summaries) == 0 {
		h.logger.Warn("no evidence available, answering without sources", map[string]interface{}{
			"fallback": state,
		})
		candidate, err := h.direct.Run(ctx, query)
		if err != nil {
			return nil, err
		}
		candidate.Sources = []string{}
		candidate.Mode = models.ModeDirect
		candidate.Fallback = state
		return candidate, nil
	}

	answer, err := h.synthesize(ctx, query, summaries)
	if err != nil {
		return nil, err
	}

	sources := make([]string, 0, len(summaries))
	for _, s := range summaries {
		sources = append(sources, s.URL)
	}

	return &models.Candidate{
		Answer:   answer,
		Sources:  sources,
		Mode:     models.ModeWeb,
		Fallback: state,
	}, nil
}

func (h *Handler) gather(ctx context.Context, query string) ([]models.PageSummary, models.FallbackState) {
	results, err := h.evidence.Search(ctx, query)
	if err != nil {
		h.logger.Warn("web search failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, models.FallbackNoResults
	}
	if len(results) == 0 {
		return nil, models.FallbackNoResults
	}

	top := results
	if len(top) > TopN {
		top = top[:TopN]
	}

	if summaries := h.summarizeAll(ctx, top); len(summaries) > 0 {
		return summaries, models.FallbackNone
	}
	return snippetSummaries(top), models.FallbackSnippets
}

// summarizeAll opens and summarizes every result concurrently. Each slot is
// written by exactly one goroutine, so the output keeps search rank order.
func (h *Handler) summarizeAll(ctx context.Context, results []models.EvidenceResult) []models.PageSummary {
	slots := make([]*models.PageSummary, len(results))

	var g errgroup.Group
	g.SetLimit(len(results))
	for i, result := range results {
		i, result := i, result
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					metrics.PagesProcessed.WithLabelValues("panicked").Inc()
					h.logger.Error("page processing panicked", map[string]interface{}{
						"url":   result.URL,
						"panic": fmt.Sprint(r),
					})
				}
			}()
			slots[i] = h.summarizeOne(ctx, result)
			return nil
		})
	}
	_ = g.Wait()

	summaries := make([]models.PageSummary, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			summaries = append(summaries, *s)
		}
	}
	return summaries
}

func (h *Handler) summarizeOne(ctx context.Context, result models.EvidenceResult) *models.PageSummary {
	if h.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.PageTimeout)
		defer cancel()
	}

	page, err := h.evidence.Open(ctx, result.URL)
	if err != nil {
		metrics.PagesProcessed.WithLabelValues("open_failed").Inc()
		h.logger.Warn("failed to open page", map[string]interface{}{
			"url":   result.URL,
			"error": err.Error(),
		})
		return nil
	}

	summary, err := h.evidence.Summarize(ctx, *page)
	if err != nil {
		metrics.PagesProcessed.WithLabelValues("summarize_failed").Inc()
		h.logger.Warn("failed to summarize page", map[string]interface{}{
			"url":   result.URL,
			"error": err.Error(),
		})
		return nil
	}

	metrics.PagesProcessed.WithLabelValues("summarized").Inc()
	return summary
}

// snippetSummaries stands in for page summaries when no page could be
// summarized: the snippet, else the title, dropping results with neither.
func snippetSummaries(results []models.EvidenceResult) []models.PageSummary {
	out := make([]models.PageSummary, 0, len(results))
	for _, r := range results {
		text := strings.TrimSpace(r.Snippet)
		if text == "" {
			text = strings.TrimSpace(r.Title)
		}
		if text == "" {
			continue
		}
		out = append(out, models.PageSummary{URL: r.URL, Summary: text})
	}
	return out
}

func (h *Handler) synthesize(ctx context.Context, query string, summaries []models.PageSummary) (string, error) {
	payload, err := json.MarshalIndent(synthesisRequest{Query: query, Summaries: summaries}, "", "  ")
	if err != nil {
		return "", errors.NewInvalidInputError(fmt.Sprintf("encode summaries: %v", err))
	}

	resp, err := h.gateway.Invoke(ctx, []llm.Message{
		llm.System(systemPrompt),
		llm.Human(string(payload)),
	}, llm.Options{Temperature: h.config.Temperature})
	if err != nil {
		if _, ok := errors.AsStandardError(err); ok {
			return "", err
		}
		return "", errors.NewModelUnavailableError("gateway", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
