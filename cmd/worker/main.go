package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/app"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	worker, err := app.NewWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init worker: %v", err)
	}

	if err := worker.Run(ctx); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}
