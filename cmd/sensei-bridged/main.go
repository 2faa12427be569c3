package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/sensei-project/sensei-bridged/internal/config"
	"github.com/sensei-project/sensei-bridged/internal/lifecycle"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the bridge configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	logger.Info("config loaded successfully", zap.String("path", *configPath))

	manager, err := lifecycle.New(*configPath, cfg, logger)
	if err != nil {
		logger.Fatal("failed to construct lifecycle manager", zap.Error(err))
	}

	manager.Start()
	logger.Info("sensei-bridged started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	ctx := context.Background()
	if err := manager.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("sensei-bridged stopped successfully")
}
