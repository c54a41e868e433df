package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"finrag/internal/config"
	"finrag/internal/eval"
	"finrag/internal/logging"
	"finrag/internal/providers"
	"finrag/internal/registry"
	"finrag/internal/telemetry"
	"finrag/internal/workflows"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"
)

type options struct {
	csvPath     string
	models      string
	outputDir   string
	apiBase     string
	concurrency int
	topK        int
	temporal    bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	var opts options
	flags := flag.NewFlagSet("eval", flag.ContinueOnError)
	flags.StringVar(&opts.csvPath, "csv", "", "questions CSV (question, expected_answer, tickers, period)")
	flags.StringVar(&opts.models, "models", "all", `"all" or a comma-separated list of model aliases`)
	flags.StringVar(&opts.outputDir, "output", "data/eval/results", "directory for report files")
	flags.StringVar(&opts.apiBase, "api-base", cfg.EvalAPIBase, "base URL of the finrag API")
	flags.IntVar(&opts.concurrency, "concurrency", cfg.EvalMaxConcurrentPairs, "maximum pairs evaluated at once")
	flags.IntVar(&opts.topK, "top-k", 8, "chunks retrieved per question (the Temporal worker uses the API default)")
	flags.BoolVar(&opts.temporal, "temporal", false, "run the batch as a Temporal workflow")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(opts.csvPath) == "" {
		fmt.Fprintln(os.Stderr, "--csv is required")
		flags.Usage()
		return 2
	}

	reg, err := registry.Load(cfg.ModelRegistryPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	models, err := eval.SelectModels(reg, opts.models)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\nKnown aliases: %s\n", err, strings.Join(reg.Aliases(), ", "))
		return 1
	}
	questions, err := eval.LoadQuestions(opts.csvPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("Loaded %d questions; evaluating %d models (%d pairs)\n", len(questions), len(models), len(questions)*len(models))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The CLI exits before any scrape, so its counters go to a Pushgateway.
	if cfg.PushgatewayURL != "" {
		mp, err := telemetry.InstallMeterProvider(prometheus.DefaultRegisterer)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer func() { _ = mp.Shutdown(context.Background()) }()
		defer pushMetrics(cfg.PushgatewayURL)
	}

	var res eval.EvalResults
	var paths eval.ReportPaths
	if opts.temporal {
		res, paths, err = runTemporal(ctx, cfg, opts, reg.JudgeModel(), questions, models)
	} else {
		res, paths, err = runLocal(ctx, cfg, opts, reg, questions, models)
	}
	if err != nil {
		log.Error().Err(err).Msg("evaluation failed")
		return 1
	}

	eval.PrintSummary(os.Stdout, res)
	fmt.Printf("\nDetailed results: %s\nSummary: %s\nJSON: %s\n", paths.Detailed, paths.Summary, paths.JSON)
	return 0
}

func pushMetrics(url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.Push(ctx, url, "finrag_eval", prometheus.DefaultGatherer); err != nil {
		log.Warn().Err(err).Msg("metrics not pushed")
		return
	}
	log.Info().Str("pushgateway", url).Msg("metrics pushed")
}

func runLocal(ctx context.Context, cfg config.Config, opts options, reg *registry.Registry, qs []eval.Question, models []string) (eval.EvalResults, eval.ReportPaths, error) {
	chat := providers.NewChatClient(providers.ChatConfigFrom(cfg), reg, providers.NewMetrics("finrag/eval"))
	judge := eval.NewJudge(chat, reg.JudgeModel())
	api := eval.NewAPIClient(opts.apiBase, eval.DefaultAPITimeout, opts.topK)

	res := eval.NewRunner(api, judge, opts.concurrency, judge.Model()).Run(ctx, qs, models)
	paths, err := eval.WriteReports(res, opts.outputDir, res.Timestamp)
	if err != nil {
		return res, paths, fmt.Errorf("write reports: %w", err)
	}
	return res, paths, nil
}

// runTemporal submits the batch and waits for it. Reports are written by the
// worker, so opts.outputDir must be reachable from the worker host.
func runTemporal(ctx context.Context, cfg config.Config, opts options, judgeModel string, qs []eval.Question, models []string) (eval.EvalResults, eval.ReportPaths, error) {
	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return eval.EvalResults{}, eval.ReportPaths{}, fmt.Errorf("dial temporal: %w", err)
	}
	defer c.Close()

	runID := uuid.NewString()
	we, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "eval-" + runID,
		TaskQueue: cfg.TemporalTaskQueue,
	}, workflows.EvalBatchWorkflow, workflows.EvalBatchInput{
		RunID:                  runID,
		Questions:              qs,
		Models:                 models,
		JudgeModel:             judgeModel,
		MaxConcurrent:          opts.concurrency,
		OutputDir:              opts.outputDir,
		ActivityTimeoutSeconds: cfg.EvalActivityTimeoutSecs,
	})
	if err != nil {
		return eval.EvalResults{}, eval.ReportPaths{}, fmt.Errorf("start workflow: %w", err)
	}
	log.Info().Str("workflow_id", we.GetID()).Str("run_id", we.GetRunID()).Msg("evaluation workflow started")

	var out workflows.EvalBatchOutput
	if err := we.Get(ctx, &out); err != nil {
		return eval.EvalResults{}, eval.ReportPaths{}, fmt.Errorf("evaluation workflow: %w", err)
	}
	return out.Results, out.Reports, nil
}
