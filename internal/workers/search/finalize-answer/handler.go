// internal/workers/search/finalize-answer/handler.go
package finalizeanswer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/common/validation"
	"search-workers/internal/models"
)

const TaskType = "finalize-answer"

const repairSystemPrompt = `You are a strict JSON repair utility.
Your ONLY output must be a single, valid JSON object that adheres to the provided schema.
Do not include any preamble, explanations, or markdown code blocks (e.g., no ` + "```json" + `).
Schema: { "answer": string, "sources": string[] }
Constraint: 'sources' must be an array of valid URL strings.`

const repairInstruction = "Repair and reformat the following input to match the schema exactly."

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

	answer, err := h.Finalize(ctx, &input.Candidate)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.Complete(ctx, client, job, &Output{Answer: *answer}); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// Finalize returns the candidate as a SearchAnswer when it already satisfies
// the answer schema. Otherwise it asks the model once to repair it and
// validates the result again.
func (h *Handler) Finalize(ctx context.Context, candidate *models.Candidate) (*models.SearchAnswer, error) {
	sources := candidate.Sources
	if sources == nil {
		sources = []string{}
	}

	result := validation.SearchAnswer.Validate(answerDoc(candidate.Answer, sources))
	if result.Valid {
		metrics.AnswerRepairs.WithLabelValues("valid").Inc()
		return &models.SearchAnswer{Answer: candidate.Answer, Sources: sources, Mode: candidate.Mode}, nil
	}

	h.logger.Warn("candidate failed answer schema, repairing", map[string]interface{}{
		"mode":       candidate.Mode,
		"violations": result.String(),
	})

	payload, err := json.Marshal(answerDoc(candidate.Answer, sources))
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("encode candidate: %v", err))
	}

	resp, err := h.gateway.Invoke(ctx, []llm.Message{
		llm.System(repairSystemPrompt),
		llm.Human(repairInstruction + "\n\nInput to fix:\n\n" + string(payload)),
	}, llm.Options{Temperature: h.config.Temperature})
	if err != nil {
		if _, ok := errors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, errors.NewModelUnavailableError("gateway", err)
	}

	answer, repairedSources := coerce(parseObject(resp.Text))
	if again := validation.SearchAnswer.Validate(answerDoc(answer, repairedSources)); !again.Valid {
		metrics.AnswerRepairs.WithLabelValues("exhausted").Inc()
		return nil, errors.NewSchemaRepairExhaustedError(again.String())
	}

	metrics.AnswerRepairs.WithLabelValues("repaired").Inc()
	return &models.SearchAnswer{Answer: answer, Sources: repairedSources, Mode: candidate.Mode}, nil
}

func answerDoc(answer string, sources []string) map[string]interface{} {
	return map[string]interface{}{
		"answer":  answer,
		"sources": sources,
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
