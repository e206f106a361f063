// internal/workers/search/answer-query/handler.go
package answerquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/metrics"
	"search-workers/internal/common/observability"
	"search-workers/internal/models"
	routequery "search-workers/internal/workers/search/route-query"
)

const TaskType = "answer-query"

// Strategy produces a candidate answer for a validated query.
type Strategy interface {
	Run(ctx context.Context, query string) (*models.Candidate, error)
}

// Finalizer enforces the public answer contract on a candidate.
type Finalizer interface {
	Finalize(ctx context.Context, candidate *models.Candidate) (*models.SearchAnswer, error)
}

// Handler runs the whole pipeline in a single job: validate, classify,
// dispatch to a strategy and finalize.
type Handler struct {
	config       *Config
	web          Strategy
	direct       Strategy
	finalizer    Finalizer
	obs          *observability.Observability
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, web, direct Strategy, finalizer Finalizer, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = &observability.Observability{}
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		web:          web,
		direct:       direct,
		finalizer:    finalizer,
		obs:          obs,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, start, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	answer, err := h.Search(ctx, input.Query)
	if err != nil {
		h.fail(ctx, client, job, start, err)
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
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

// Search answers query end to end.
func (h *Handler) Search(ctx context.Context, query string) (*models.SearchAnswer, error) {
	start := time.Now()
	requestID := uuid.NewString()
	log := h.logger.With(map[string]interface{}{"requestId": requestID})

	ctx, span := h.obs.StartSpan(ctx, "search.answer", attribute.String("request.id", requestID))
	defer span.End()

	trimmed, err := routequery.ValidateQuery(query)
	if err != nil {
		log.Info("query rejected", map[string]interface{}{"error": err.Error()})
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	mode := routequery.Classify(trimmed)
	metrics.QueriesRouted.WithLabelValues(string(mode)).Inc()
	span.SetAttributes(attribute.String("search.mode", string(mode)))
	log.Info("query routed", map[string]interface{}{
		"mode":        mode,
		"queryLength": len(trimmed),
	})

	candidate, err := h.dispatch(mode).Run(ctx, trimmed)
	if err != nil {
		log.Error("strategy failed", map[string]interface{}{
			"mode":  mode,
			"error": err.Error(),
		})
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if candidate.Fallback != "" {
		span.SetAttributes(attribute.String("search.fallback", string(candidate.Fallback)))
	}

	answer, err := h.finalizer.Finalize(ctx, candidate)
	if err != nil {
		log.Error("answer finalization failed", map[string]interface{}{
			"mode":  candidate.Mode,
			"error": err.Error(),
		})
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.SearchDuration.WithLabelValues(string(answer.Mode)).Observe(time.Since(start).Seconds())
	log.Info("query answered", map[string]interface{}{
		"mode":     answer.Mode,
		"fallback": candidate.Fallback,
		"sources":  len(answer.Sources),
		"duration": time.Since(start).String(),
	})
	return answer, nil
}

func (h *Handler) dispatch(mode models.Mode) Strategy {
	if mode == models.ModeWeb {
		return h.web
	}
	return h.direct
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
