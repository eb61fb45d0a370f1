// Package main 图谱重建任务执行器入口（graph-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"novel-rag-engine/internal/bootstrap"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/infrastructure/messaging"
	einoobs "novel-rag-engine/internal/observability/eino"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/tracer"
)

const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "graph-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	engine, cleanup, err := bootstrap.NewEngine(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize engine", err)
	}
	defer cleanup()

	jobs := messaging.NewJobTracker(engine.Redis.Redis(), 0)
	consumer := bootstrap.ProvideConsumer(engine.Redis, cfg, hostnameConsumerName())
	consumer.RegisterHandler(messaging.TypeGraphBuild, buildHandler(engine, jobs))

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	go consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	log := logger.FromContext(ctx)
	log.Info("graph-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("graph-worker shutting down")
	cancel()
	consumer.Stop()
}

func buildHandler(engine *bootstrap.Engine, jobs *messaging.JobTracker) messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var job messaging.GraphBuildJob
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		if job.JobID == "" {
			job.JobID = msg.ID
		}
		ctx = logger.WithCorpus(ctx, job.CorpusID)

		setState(ctx, jobs, &job, messaging.JobRunning, "")

		c, err := engine.LoadCorpus(ctx, &job)
		if err != nil {
			setState(ctx, jobs, &job, messaging.JobFailed, err.Error())
			return err
		}
		// 任务携带语料文件时同时重建检索索引
		report, err := engine.Ingest(ctx, c, job.CorpusPath != "")
		if err != nil {
			setState(ctx, jobs, &job, messaging.JobFailed, err.Error())
			return err
		}

		detail := fmt.Sprintf("nodes=%d cooccurrence=%d classified=%d", report.Graph.Nodes, report.Graph.Cooccurrence, report.Graph.Classified)
		setState(ctx, jobs, &job, messaging.JobSucceeded, detail)
		logger.Info(ctx, "graph rebuilt",
			"job_id", job.JobID,
			"tier", report.Graph.Tier,
			"duration_ms", report.Graph.Duration.Milliseconds(),
		)
		return nil
	}
}

func setState(ctx context.Context, jobs *messaging.JobTracker, job *messaging.GraphBuildJob, state messaging.JobState, detail string) {
	if err := jobs.Set(ctx, job.JobID, job.CorpusID, state, detail); err != nil {
		logger.Warn(ctx, "update job state failed", "job_id", job.JobID, "state", string(state), "error", err.Error())
	}
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
