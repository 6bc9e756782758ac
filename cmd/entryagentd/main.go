package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/parcelworks/entryagent/internal/artifacts"
	"github.com/parcelworks/entryagent/internal/common"
	"github.com/parcelworks/entryagent/internal/extract/ollama"
	"github.com/parcelworks/entryagent/internal/jobs"
	"github.com/parcelworks/entryagent/internal/render"
	"github.com/parcelworks/entryagent/internal/server"
	"github.com/parcelworks/entryagent/internal/validate"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	persister, err := artifacts.NewPersister(cfg.Storage.ArtifactDir, logger)
	if err != nil {
		logger.Error("artifact store init failed", "error", err)
		os.Exit(1)
	}

	evidence, err := validate.NewEvidenceValidator(cfg.Jobs.CriticalPaths, logger)
	if err != nil {
		logger.Error("critical path config invalid", "error", err)
		os.Exit(1)
	}

	store := jobs.NewStore(logger, jobs.WithDeleteHook(func(jobID string) {
		if err := persister.Delete(jobID); err != nil {
			logger.Warn("artifact delete failed", "job_id", jobID, "error", err)
		}
	}))

	renderer := render.NewPopplerRenderer(logger)
	extractor := ollama.NewClient(ollama.Config{
		BaseURL:     cfg.Inference.BaseURL,
		Model:       cfg.Inference.Model,
		Temperature: cfg.Inference.Temperature,
		Timeout:     cfg.Inference.Timeout,
	}, renderer, logger)

	worker := jobs.NewWorker(store, extractor, persister, evidence, logger)
	dispatcher := jobs.NewDispatcher(worker, logger,
		jobs.WithWorkers(cfg.Jobs.Workers),
		jobs.WithQueueSize(cfg.Jobs.QueueSize),
		jobs.WithJobTimeout(cfg.Inference.Timeout+cfg.Inference.Timeout/2),
	)

	svc, err := server.NewJobsService(store, dispatcher, persister, cfg.Storage.UploadDir, jobs.Params{
		MaxPages:     cfg.Jobs.MaxPages,
		RenderScale:  cfg.Jobs.RenderScale,
		Model:        cfg.Inference.Model,
		AgentVersion: cfg.Jobs.AgentVersion,
	}, logger)
	if err != nil {
		logger.Error("service init failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: svc.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr, "model", cfg.Inference.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	dispatcher.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
