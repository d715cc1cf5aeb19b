package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/agent"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer dbpool.Close()

	agentClient, err := agent.NewClient(agent.Options{
		BaseURL:        cfg.AgentBaseURL,
		RequestTimeout: cfg.AgentTimeout,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure agent client")
	}
	invoker := agent.NewInvoker(agentClient, agent.InvokerOptions{
		MaxRetries:   cfg.AgentMaxRetries,
		InitialDelay: cfg.AgentRetryDelay,
		Logger:       &logger,
	})

	jobs := repo.NewJobRepository(dbpool)
	stories := repo.NewStoryRepository(dbpool)
	metrics := repo.NewMetricsRepository(dbpool)

	runner := pipeline.NewRunner(jobs, stories, invoker, metrics, logger)

	pool := worker.NewPool(jobs, runner, logger, worker.Options{
		Size:         cfg.WorkerCount,
		PollInterval: cfg.WorkerPollInterval,
		JobDeadline:  cfg.JobDeadline,
	})
	pool.Start(ctx)

	<-ctx.Done()
	logger.Info().Msg("worker: shutting down, draining in-flight jobs")
	pool.Wait()
	logger.Info().Msg("worker: stopped")
}
