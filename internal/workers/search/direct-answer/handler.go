// internal/workers/search/direct-answer/handler.go
package directanswer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/models"
)

const TaskType = "direct-answer"

const systemPrompt = `You are a highly precise research assistant.
No web evidence is available for this query.
Answer based ONLY on your internal knowledge.
If you are not certain of the facts, say plainly that you cannot provide a verified answer.
Be concise and professional, and do not speculate.`

type Handler struct {
	config       *Config
	gateway      llm.Gateway
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, gateway llm.Gateway, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		gateway:      gateway,
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

// Run answers from the model's own knowledge with a single gateway call.
func (h *Handler) Run(ctx context.Context, query string) (*models.Candidate, error) {
	resp, err := h.gateway.Invoke(ctx, []llm.Message{
		llm.System(systemPrompt),
		llm.Human(query),
	}, llm.Options{Temperature: h.config.Temperature})
	if err != nil {
		if _, ok := errors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, errors.NewModelUnavailableError("gateway", err)
	}

	return &models.Candidate{
		Answer:  strings.TrimSpace(resp.Text),
		Sources: []string{},
		Mode:    models.ModeDirect,
	}, nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
