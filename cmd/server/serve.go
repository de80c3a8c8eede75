package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KevinKickass/OpenStudioCore/internal/layout"
	"github.com/KevinKickass/OpenStudioCore/internal/logging"
	"github.com/KevinKickass/OpenStudioCore/internal/system"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the studio service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully")

	lay, err := layout.Load(cfg.Studio.LayoutPath)
	if err != nil {
		return err
	}

	logger.Info("Studio layout loaded",
		zap.String("path", cfg.Studio.LayoutPath),
		zap.Int("robots", len(lay.Robots)),
		zap.Int("targets", len(lay.Targets)))

	lifecycle, err := system.NewLifecycleManager(cfg, lay, logger)
	if err != nil {
		return err
	}

	if err := lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start system: %w", err)
	}

	logger.Info("OpenStudioCore started successfully")

	// Graceful Shutdown auf Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- lifecycle.Wait()
	}()

	var runErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
	case runErr = <-serveErr:
		logger.Error("Server stopped unexpectedly", zap.Error(runErr))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := lifecycle.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("OpenStudioCore stopped successfully")
	return runErr
}
