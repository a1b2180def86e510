// Package app initializes and orchestrates the main components of the
// DiffScope service. It wires together the configuration, reviewer,
// dispatcher and HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/diffscope/diffscope/internal/config"
	"github.com/diffscope/diffscope/internal/github"
	"github.com/diffscope/diffscope/internal/jobs"
	"github.com/diffscope/diffscope/internal/llm"
	"github.com/diffscope/diffscope/internal/server"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	dispatcher jobs.Dispatcher
	logger     *slog.Logger
}

// NewApp sets up the application with all its dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing DiffScope",
		"review_model", cfg.ReviewModel,
		"max_workers", cfg.MaxWorkers,
		"review_concurrency", cfg.ReviewConcurrency)

	reviewer, err := llm.NewMistralReviewer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create reviewer: %w", err)
	}

	newClient := func(ctx context.Context, installationID int64) (github.Client, error) {
		return github.CreateInstallationClient(ctx, cfg, installationID, logger)
	}

	reviewJob := jobs.NewReviewJob(cfg, newClient, reviewer, logger)
	dispatcher := jobs.NewDispatcher(reviewJob, cfg.MaxWorkers, logger)
	httpServer := server.NewServer(cfg, dispatcher, logger)

	return &App{
		cfg:        cfg,
		server:     httpServer,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Start runs the HTTP server and blocks until shutdown or error.
func (a *App) Start() error {
	a.logger.Info("starting DiffScope", "server_port", a.cfg.ServerPort)
	return a.server.Start()
}

// Stop shuts down the application cleanly: the HTTP server first so no new
// deliveries arrive, then the dispatcher so in-flight reviews finish.
func (a *App) Stop() error {
	a.logger.Info("shutting down DiffScope services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.dispatcher.Stop()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("DiffScope stopped successfully")
	return nil
}
