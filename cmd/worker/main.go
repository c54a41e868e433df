package main

import (
	"context"
	"time"

	"finrag/internal/activities"
	"finrag/internal/config"
	"finrag/internal/eval"
	"finrag/internal/logging"
	"finrag/internal/providers"
	"finrag/internal/registry"
	"finrag/internal/telemetry"
	"finrag/internal/workflows"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const defaultOutputDir = "data/eval/results"

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	mp, err := telemetry.InstallMeterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("install meter provider")
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	go func() {
		if err := telemetry.Serve(metricsCtx, cfg.MetricsAddr, prometheus.DefaultGatherer); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	reg, err := registry.Load(cfg.ModelRegistryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load model registry")
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Msg("dial temporal")
	}
	defer c.Close()

	chat := providers.NewChatClient(providers.ChatConfigFrom(cfg), reg, providers.NewMetrics("finrag/worker"))
	a := activities.New(
		eval.NewAPIClient(cfg.EvalAPIBase, eval.DefaultAPITimeout, 0),
		eval.NewJudge(chat, reg.JudgeModel()),
		defaultOutputDir,
	)

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.EvalMaxConcurrentPairs,
		WorkerStopTimeout:                  30 * time.Second,
	})
	workflows.Register(w)
	activities.Register(w, a)

	log.Info().
		Str("temporal", cfg.TemporalAddress).
		Str("queue", cfg.TemporalTaskQueue).
		Str("api_base", cfg.EvalAPIBase).
		Str("judge", reg.JudgeModel()).
		Str("metrics", cfg.MetricsAddr).
		Msg("finrag worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
