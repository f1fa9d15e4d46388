package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/you/bokohub/internal/app"
	"github.com/you/bokohub/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := app.NewLogger(cfg.GinMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := app.Run(context.Background(), cfg, logger); err != nil {
		logger.Fatal("app", zap.Error(err))
	}
}
