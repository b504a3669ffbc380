package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sdengine/internal/adapter/repo"
	"sdengine/internal/builder"
	"sdengine/internal/executor"
	"sdengine/internal/http/handlers"
	httpapi "sdengine/internal/http/httpapi"
	"sdengine/internal/infra"
	"sdengine/internal/queue"
	"sdengine/internal/session"
	"sdengine/internal/storage"
	"sdengine/internal/upstream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	sessionRepo := repo.NewSessionRepository(dbpool)
	presetRepo := repo.NewPresetRepository(dbpool)
	if err := sessionRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure session schema")
	}
	if err := presetRepo.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure preset schema")
	}

	sessions := session.NewStore(sessionRepo, logger)
	presets := session.NewPresetStore(presetRepo, logger)

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, logger)
	catalog := upstream.NewCatalog(client)
	if err := catalog.Refresh(ctx); err != nil {
		// The generator may come up after us; KeepFresh keeps retrying
		// and name validation degrades gracefully until a snapshot lands.
		logger.Warn().Err(err).Msg("initial catalog refresh failed")
	}
	go catalog.KeepFresh(ctx, cfg.CatalogRefreshEvery, logger)

	jobs := queue.NewStore()
	jobQueue := queue.New(jobs, queue.Limits{
		MaxGlobal:  cfg.MaxQueuedGlobal,
		MaxPerUser: cfg.MaxQueuedPerUser,
	}, logger)

	var artifacts *storage.FileStore
	if cfg.ArtifactsDir != "" {
		artifacts, err = storage.NewFileStore(cfg.ArtifactsDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare artifacts directory")
		}
	}

	exec := executor.New(jobQueue, jobs, client, logger, executor.Config{
		Concurrency:   cfg.ExecutorConcurrency,
		JobTimeout:    cfg.JobTimeout,
		ProgressEvery: cfg.ProgressPollEvery,
		DequeueEvery:  cfg.DequeuePollEvery,
		Retention:     cfg.JobRetention,
		Artifacts:     artifacts,
	})
	go exec.Run(ctx)

	app := &handlers.App{
		Logger:   logger,
		Sessions: sessions,
		Presets:  presets,
		Builder:  builder.New(sessions, catalog),
		Queue:    jobQueue,
		Jobs:     jobs,
		Catalog:  catalog,
		Upstream: client,
	}

	router := httpapi.NewRouter(app, logger, httpapi.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
