// cmd/ask/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"search-workers/internal/common/camunda"
	"search-workers/internal/common/config"
	"search-workers/internal/common/database"
	"search-workers/internal/common/errors"
	"search-workers/internal/common/logger"
	"search-workers/internal/models"
	"search-workers/internal/workers/search"
)

type options struct {
	configPath string
	viaBroker  bool
	processID  string
	timeout    time.Duration
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "ask [query]",
		Short:         "Answer a query with the search pipeline and print the JSON answer",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if err := run(cmd.Context(), opts, query, cmd.OutOrStdout()); err != nil {
				writeError(cmd.ErrOrStderr(), err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to a config file (default: configs/config.yaml)")
	cmd.Flags().BoolVar(&opts.viaBroker, "via-broker", false, "start the answer process on the Zeebe broker instead of answering in process")
	cmd.Flags().StringVar(&opts.processID, "process-id", "search-answer", "BPMN process id used with --via-broker")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "overall deadline")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")
	return cmd
}

func run(ctx context.Context, opts *options, query string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return errors.NewConfigInvalidError(err.Error())
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	zapLog := logger.NewWithOptions(logger.Options{Level: level, Format: "console", Output: "stderr"})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	var answer *models.SearchAnswer
	if opts.viaBroker {
		answer, err = askBroker(ctx, cfg, opts.processID, query)
	} else {
		answer, err = askLocal(ctx, cfg, query, log)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(answer)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func askLocal(ctx context.Context, cfg *config.Config, query string, log logger.Logger) (*models.SearchAnswer, error) {
	var deps search.Deps
	if cfg.Cache.Backend == config.CacheRedis {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return nil, errors.NewConfigInvalidError(err.Error())
		}
		defer rdb.Close()
		deps.Redis = rdb
	}
	if cfg.Search.Provider == config.SearchElasticsearch {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, errors.NewConfigInvalidError(err.Error())
		}
		deps.Elasticsearch = es
	}

	pipeline, err := search.Build(ctx, cfg, deps, nil, log)
	if err != nil {
		return nil, err
	}
	return pipeline.Answer.Search(ctx, query)
}

func askBroker(ctx context.Context, cfg *config.Config, processID, query string) (*models.SearchAnswer, error) {
	if err := config.ValidateForWorkers(cfg); err != nil {
		return nil, errors.NewConfigInvalidError(err.Error())
	}
	client, err := camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
	if err != nil {
		return nil, errors.NewExternalServiceError("zeebe", err)
	}
	defer client.Close()

	vars, err := client.StartAnswerProcess(ctx, processID, query)
	if err != nil {
		return nil, err
	}
	return answerFromVariables(vars)
}

// answerFromVariables reads the "answer" variable written by the
// answer-query or finalize-answer worker.
func answerFromVariables(vars map[string]interface{}) (*models.SearchAnswer, error) {
	raw, ok := vars["answer"]
	if !ok {
		return nil, errors.NewResourceNotFoundError("zeebe", "process finished without an answer variable")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("encode answer variable: %v", err))
	}
	var answer models.SearchAnswer
	if err := json.Unmarshal(b, &answer); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("decode answer variable: %v", err))
	}
	if answer.Sources == nil {
		answer.Sources = []string{}
	}
	return &answer, nil
}

func writeError(w io.Writer, err error) {
	stdErr := errors.Normalize(err)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    stdErr.Code,
			"message": stdErr.Message,
			"details": stdErr.Details,
		},
	})
}
