// Package search assembles the answer pipeline workers from configuration.
package search

import (
	"context"
	"time"

	"search-workers/internal/common/cache"
	"search-workers/internal/common/camunda"
	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
	"search-workers/internal/common/evidence"
	httpclient "search-workers/internal/common/http"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/common/observability"
	answerquery "search-workers/internal/workers/search/answer-query"
	directanswer "search-workers/internal/workers/search/direct-answer"
	finalizeanswer "search-workers/internal/workers/search/finalize-answer"
	routequery "search-workers/internal/workers/search/route-query"
	webanswer "search-workers/internal/workers/search/web-answer"
)

// Deps are the optional backing stores. Redis backs the evidence cache and
// Elasticsearch the index search provider.
type Deps struct {
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
}

type Pipeline struct {
	Route    *routequery.Handler
	Direct   *directanswer.Handler
	Web      *webanswer.Handler
	Finalize *finalizeanswer.Handler
	Answer   *answerquery.Handler
}

// Build wires the model gateways, the evidence source and every worker handler.
func Build(ctx context.Context, cfg *config.Config, deps Deps, obs *observability.Observability, log logger.Logger) (*Pipeline, error) {
	fetchClient := httpclient.NewClientWithOptions(httpclient.Options{
		Timeout:      config.GetDuration(cfg.Fetch.Timeout),
		MaxRedirects: cfg.Fetch.MaxRedirects,
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBytes:     cfg.Fetch.MaxBytes,
	})
	modelClient := httpclient.NewClient(config.GetDuration(cfg.Model.Timeout))

	answers, err := llm.New(ctx, cfg.Model, cfg.Model.Provider, modelClient.HTTPClient(), log)
	if err != nil {
		return nil, err
	}
	summaries := answers
	if cfg.Model.SummaryProvider != cfg.Model.Provider {
		summaries, err = llm.New(ctx, cfg.Model, cfg.Model.SummaryProvider, modelClient.HTTPClient(), log)
		if err != nil {
			return nil, err
		}
	}

	store, err := cache.New(cfg.Cache, deps.Redis)
	if err != nil {
		return nil, err
	}

	source, err := evidence.New(cfg, evidence.Deps{
		HTTP:          fetchClient,
		Summaries:     summaries,
		Elasticsearch: deps.Elasticsearch,
		Cache:         store,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	temps := cfg.Model.Temperatures

	route := routequery.LoadConfig()
	route.Timeout = workerTimeout(cfg, routequery.TaskType, route.Timeout)

	directCfg := directanswer.LoadConfig()
	directCfg.Timeout = workerTimeout(cfg, directanswer.TaskType, directCfg.Timeout)
	directCfg.Temperature = temps.Direct
	direct := directanswer.NewHandler(directCfg, answers, log)

	webCfg := webanswer.LoadConfig()
	webCfg.Timeout = workerTimeout(cfg, webanswer.TaskType, webCfg.Timeout)
	webCfg.PageTimeout = config.GetDuration(cfg.Pipeline.PageTimeout)
	webCfg.Temperature = temps.Synthesis
	web := webanswer.NewHandler(webCfg, source, answers, direct, log)

	finalizeCfg := finalizeanswer.LoadConfig()
	finalizeCfg.Timeout = workerTimeout(cfg, finalizeanswer.TaskType, finalizeCfg.Timeout)
	finalizeCfg.Temperature = temps.Repair
	finalizer := finalizeanswer.NewHandler(finalizeCfg, answers, log)

	answerCfg := answerquery.LoadConfig()
	answerCfg.Timeout = workerTimeout(cfg, answerquery.TaskType, answerCfg.Timeout)

	return &Pipeline{
		Route:    routequery.NewHandler(route, log),
		Direct:   direct,
		Web:      web,
		Finalize: finalizer,
		Answer:   answerquery.NewHandler(answerCfg, web, direct, finalizer, obs, log),
	}, nil
}

// Register opens a job worker per enabled task type and returns how many started.
func (p *Pipeline) Register(reg *camunda.Registry, cfg *config.Config) int {
	handlers := []struct {
		taskType string
		handler  camunda.JobHandler
	}{
		{routequery.TaskType, p.Route},
		{directanswer.TaskType, p.Direct},
		{webanswer.TaskType, p.Web},
		{finalizeanswer.TaskType, p.Finalize},
		{answerquery.TaskType, p.Answer},
	}

	started := 0
	for _, h := range handlers {
		if reg.Start(h.taskType, config.GetWorkerConfig(cfg, h.taskType), h.handler) {
			started++
		}
	}
	return started
}

// workerTimeout prefers the per-worker timeout from configuration.
func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}
