// Package main 问答与图谱查询 HTTP 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"novel-rag-engine/internal/bootstrap"
	"novel-rag-engine/internal/config"
	"novel-rag-engine/internal/infrastructure/messaging"
	"novel-rag-engine/internal/infrastructure/persistence/redis"
	"novel-rag-engine/internal/interfaces/http/handler"
	"novel-rag-engine/internal/interfaces/http/router"
	einoobs "novel-rag-engine/internal/observability/eino"
	"novel-rag-engine/pkg/logger"
	"novel-rag-engine/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting rag-engine-svc",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	einoobs.Init()

	engine, cleanup, err := bootstrap.NewEngine(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize engine", err)
	}
	defer cleanup()

	r := router.New(cfg, handlers(cfg, engine), redis.NewRateLimiter(engine.Redis))

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

func handlers(cfg *config.Config, e *bootstrap.Engine) router.Handlers {
	// 可选依赖缺失时传入 nil 接口，就绪检查显示为 disabled
	var pg, mv handler.HealthChecker
	if e.Postgres != nil {
		pg = e.Postgres
	}
	if e.Milvus != nil {
		mv = e.Milvus
	}

	producer := bootstrap.ProvideMessagingProducer(e.Redis, cfg)
	jobs := messaging.NewJobTracker(e.Redis.Redis(), 0)

	return router.Handlers{
		Health: handler.NewHealthHandler(Version, e.Redis, pg, mv),
		QA:     handler.NewQAHandler(e.QA, e.Retriever),
		Graph:  handler.NewGraphHandler(e.Graphs),
		Jobs:   handler.NewJobHandler(producer, jobs),
	}
}
