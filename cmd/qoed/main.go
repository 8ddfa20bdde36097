package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"qoed/internal/config"
	"qoed/internal/daemon"
	"qoed/internal/logging"
	"qoed/internal/store"
	"qoed/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return
	}
	defer st.Close()

	workflowManager := workflow.NewManager(cfg, st, logger, newStageSet(cfg, st, logger))

	d, err := daemon.New(cfg, st, logger, workflowManager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	slog.SetDefault(logger)
	<-ctx.Done()
	logger.Info("qoed shutting down")
	d.Stop()
}
