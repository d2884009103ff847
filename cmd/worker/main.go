package main

import (
	"context"
	"fmt"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"fraudwatch/internal/activities"
	"fraudwatch/internal/adapter/litellm"
	"fraudwatch/internal/adapter/mcptools"
	otelx "fraudwatch/internal/adapter/otel"
	"fraudwatch/internal/analysis"
	"fraudwatch/internal/config"
	"fraudwatch/internal/logger"
	"fraudwatch/internal/workflows"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx := context.Background()
	shutdownOTel, err := otelx.Setup(ctx, cfg.OTel, cfg.Logging.Service+"-worker")
	if err != nil {
		log.Error("otel setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownOTel(ctx)

	metrics, err := otelx.NewMetrics()
	if err != nil {
		log.Error("metrics setup failed", "error", err)
		os.Exit(1)
	}

	tools, err := mcptools.Connect(ctx, cfg.Tools, log)
	if err != nil {
		log.Error("unable to connect to tool server", "error", err)
		os.Exit(1)
	}
	defer tools.Close()

	llm := litellm.NewClient(cfg.LiteLLM, cfg.Breaker, log)

	pipeline := analysis.NewPipeline(llm, tools, cfg.LiteLLM.Model, metrics, log)
	aggregator := analysis.NewAggregator(llm, aggregatorModel(cfg), log)

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Error("unable to create temporal client", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	w := worker.New(tc, workflows.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.FraudReview)
	w.RegisterActivity(activities.New(pipeline, aggregator, metrics, log))

	log.Info("worker started", "task_queue", workflows.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

// aggregatorModel prefers a dedicated synthesis model when configured.
func aggregatorModel(cfg *config.Config) string {
	if cfg.LiteLLM.AggregatorModel != "" {
		return cfg.LiteLLM.AggregatorModel
	}
	return cfg.LiteLLM.Model
}
