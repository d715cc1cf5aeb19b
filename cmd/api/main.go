package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/agent"
	"server/internal/http/handlers"
	httpapi "server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/middleware"
	"server/internal/pipeline"
	"server/internal/quota"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	if resolver != nil {
		defer resolver.Close()
	}

	agentClient, err := agent.NewClient(agent.Options{
		BaseURL:        cfg.AgentBaseURL,
		RequestTimeout: cfg.AgentTimeout,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure agent client")
	}
	invoker := agent.NewInvoker(agentClient, agent.InvokerOptions{
		MaxRetries:   cfg.AgentMaxRetries,
		InitialDelay: cfg.AgentRetryDelay,
		Logger:       &logger,
	})

	jobs := repo.NewJobRepository(dbpool)
	stories := repo.NewStoryRepository(dbpool)
	usage := repo.NewUsageRepository(dbpool)
	metrics := repo.NewMetricsRepository(dbpool)

	ledger := quota.NewLedger(usage, quota.Options{
		DailyLimit: cfg.QuotaDailyLimit,
		FailClosed: cfg.QuotaFailClosed,
		Logger:     &logger,
	})
	orchestrator := pipeline.NewOrchestrator(jobs, ledger, metrics, logger)

	app := &handlers.App{
		Jobs:         jobs,
		Stories:      stories,
		Usage:        usage,
		Metrics:      metrics,
		Quota:        ledger,
		Orchestrator: orchestrator,
		Invoker:      invoker,
		Logger:       logger,
	}

	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.Lookup()
	}
	router := httpapi.NewRouter(app, cfg, lookup)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
